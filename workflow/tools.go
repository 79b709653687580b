package workflow

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sodown4thecause/seobot-sub008/types"
)

// ToolOutput is the structured result of a tool call. Success/Error model
// expected tool-level failures; transport-level failures surface as the
// error return of ExecuteTool.
type ToolOutput struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ToolExecutor is the capability the engine consumes to run tools. Every
// tool is a black box behind this contract.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, params map[string]any) (*ToolOutput, error)
}

// Tool is an executable capability registered with a Registry.
type Tool interface {
	Name() string
	Execute(ctx context.Context, params map[string]any) (any, error)
}

// ParamValidator is an optional Tool extension. When implemented, the
// registry validates params before invocation and rejects bad calls with a
// typed error instead of passing them through.
type ParamValidator interface {
	ValidateParams(params map[string]any) error
}

// ToolFunc adapts a function to the Tool interface.
type ToolFunc struct {
	name string
	fn   func(ctx context.Context, params map[string]any) (any, error)
}

// NewToolFunc creates a function-backed tool.
func NewToolFunc(name string, fn func(ctx context.Context, params map[string]any) (any, error)) *ToolFunc {
	return &ToolFunc{name: name, fn: fn}
}

func (t *ToolFunc) Name() string { return t.name }

func (t *ToolFunc) Execute(ctx context.Context, params map[string]any) (any, error) {
	return t.fn(ctx, params)
}

// Registry is a concurrency-safe ToolExecutor backed by named Tool
// implementations. Unknown tool names are rejected with a typed error.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *zap.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger.With(zap.String("component", "tool_registry")),
	}
}

// Register adds a tool. Re-registering a name replaces the previous tool.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// ExecuteTool looks up a tool, validates its params when the tool supports
// validation, and executes it.
func (r *Registry) ExecuteTool(ctx context.Context, name string, params map[string]any) (*ToolOutput, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, types.NewError(types.ErrUnknownTool,
			fmt.Sprintf("tool %q is not registered", name)).WithTool(name)
	}

	if v, ok := tool.(ParamValidator); ok {
		if err := v.ValidateParams(params); err != nil {
			return nil, types.NewError(types.ErrInvalidToolParams,
				fmt.Sprintf("tool %q rejected params", name)).WithTool(name).WithCause(err)
		}
	}

	data, err := tool.Execute(ctx, params)
	if err != nil {
		r.logger.Debug("tool execution failed",
			zap.String("tool", name),
			zap.Error(err),
		)
		return &ToolOutput{Success: false, Error: err.Error()}, nil
	}

	return &ToolOutput{Success: true, Data: data}, nil
}
