package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/ecamargo/wabot/pkg/providers"
)

// ToolResult is the outcome of a tool execution. ForLLM is fed back to the
// model as the tool message content.
type ToolResult struct {
	ForLLM string
	Err    error
}

func TextResult(text string) *ToolResult {
	return &ToolResult{ForLLM: text}
}

func ErrorResult(msg string) *ToolResult {
	return &ToolResult{ForLLM: msg, Err: fmt.Errorf("%s", msg)}
}

// Tool is a callable function exposed to the reply-generation capability.
// Handlers are pure request/response: no shared mutable state between
// invocations.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *ToolResult
}

// Registry holds the fixed tool catalog.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; !exists {
		r.order = append(r.order, tool.Name())
	}
	r.tools[tool.Name()] = tool
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.order...)
}

// Specs returns the catalog as provider tool definitions, in registration
// order.
func (r *Registry) Specs() []providers.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]providers.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, providers.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return specs
}

// Execute runs the named tool. An unknown tool yields an error result rather
// than a fault so the model can recover.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) *ToolResult {
	tool, ok := r.Get(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool: %s", name))
	}
	return tool.Execute(ctx, args)
}
