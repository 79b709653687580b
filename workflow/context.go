package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
)

// Context carries the caller-supplied state for one workflow run: the user
// query, conversation history, preferences, results of previously completed
// steps, and a per-run memoization cache for tool calls.
//
// A Context belongs to exactly one execution and must not be shared across
// concurrent runs. Parallel steps within one run may touch it concurrently,
// so the mutable maps are guarded internally.
type Context struct {
	UserQuery           string
	ConversationHistory []Message
	UserPreferences     map[string]any

	mu          sync.RWMutex
	stepResults map[string]any
	cache       map[string]any
}

// NewContext creates a Context for a single execution.
func NewContext(userQuery string) *Context {
	return &Context{
		UserQuery:       userQuery,
		UserPreferences: make(map[string]any),
		stepResults:     make(map[string]any),
		cache:           make(map[string]any),
	}
}

// SetStepResult records the output data of a completed step so later steps
// can reference it during parameter interpolation.
func (c *Context) SetStepResult(stepID string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepResults[stepID] = data
}

// StepResult returns the recorded output of a previously completed step.
func (c *Context) StepResult(stepID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.stepResults[stepID]
	return v, ok
}

// PreviousStepResults returns a copy of all recorded step outputs.
func (c *Context) PreviousStepResults() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.stepResults))
	for k, v := range c.stepResults {
		out[k] = v
	}
	return out
}

// CacheGet returns a memoized tool result for the given cache key.
func (c *Context) CacheGet(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.cache[key]
	return v, ok
}

// CacheSet memoizes a tool result for the remainder of this execution.
func (c *Context) CacheSet(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = value
}

// ToolCacheKey derives a stable cache key from a tool name and its resolved
// params. Params are serialized with sorted keys so logically identical
// invocations collide.
func ToolCacheKey(tool string, params map[string]any) string {
	h := sha256.New()
	h.Write([]byte(tool))
	h.Write([]byte{0})
	h.Write(canonicalJSON(params))
	return tool + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// canonicalJSON serializes a params map with deterministic key order.
func canonicalJSON(params map[string]any) []byte {
	if len(params) == 0 {
		return []byte("{}")
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(params[k])
		if err != nil {
			vb = []byte(`"<unserializable>"`)
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	return append(buf, '}')
}
