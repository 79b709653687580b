package workflow

import (
	"fmt"

	"github.com/sodown4thecause/seobot-sub008/types"
)

// Workflow is an immutable, declarative definition of a step graph.
// Steps reference each other through Dependencies; execution order is
// derived at run time by the Engine.
type Workflow struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Step `json:"steps" yaml:"steps"`
}

// Step is one node in the workflow graph. It owns an ordered list of tool
// invocations and declares its prerequisites via Dependencies.
//
// Dependencies referencing step IDs that do not exist in the same workflow
// are never satisfied; such steps are permanently skipped, not rejected.
type Step struct {
	ID           string           `json:"id" yaml:"id"`
	Name         string           `json:"name" yaml:"name"`
	Agent        string           `json:"agent,omitempty" yaml:"agent,omitempty"`
	Parallel     bool             `json:"parallel,omitempty" yaml:"parallel,omitempty"`
	Dependencies []string         `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Tools        []ToolInvocation `json:"tools,omitempty" yaml:"tools,omitempty"`
	OutputFormat string           `json:"output_format,omitempty" yaml:"output_format,omitempty"`
}

// ToolInvocation describes one tool call owned by a step. When Required is
// true a failed call fails the owning step; otherwise the failure is
// recorded and the step continues with its remaining tools.
type ToolInvocation struct {
	Name     string         `json:"name" yaml:"name"`
	Params   map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Required bool           `json:"required,omitempty" yaml:"required,omitempty"`
}

// Message is one turn of the conversation that produced this workflow run.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Validate checks the structural integrity of the definition. Unresolved
// dependency references are legal (they resolve to a permanent skip at
// execution time); duplicate or empty step IDs are not.
func (w *Workflow) Validate() error {
	if w == nil {
		return types.NewError(types.ErrInvalidWorkflow, "workflow is nil")
	}
	seen := make(map[string]struct{}, len(w.Steps))
	for i, step := range w.Steps {
		if step.ID == "" {
			return types.NewError(types.ErrInvalidWorkflow,
				fmt.Sprintf("step at index %d has empty id", i))
		}
		if _, dup := seen[step.ID]; dup {
			return types.NewError(types.ErrInvalidWorkflow,
				fmt.Sprintf("duplicate step id %q", step.ID))
		}
		seen[step.ID] = struct{}{}
		for j, tool := range step.Tools {
			if tool.Name == "" {
				return types.NewError(types.ErrInvalidWorkflow,
					fmt.Sprintf("step %q tool at index %d has empty name", step.ID, j))
			}
		}
	}
	return nil
}

// StepByID returns the step with the given ID.
func (w *Workflow) StepByID(id string) (*Step, bool) {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i], true
		}
	}
	return nil, false
}

// HasStep reports whether a step with the given ID exists.
func (w *Workflow) HasStep(id string) bool {
	_, ok := w.StepByID(id)
	return ok
}
