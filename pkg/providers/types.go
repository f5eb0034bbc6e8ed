package providers

import "context"

// Message is a provider-neutral conversation message.
type Message struct {
	Role       string
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ToolCall is a structured request from the model to invoke a named tool.
// Arguments is the raw JSON argument object as produced by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolSpec describes a callable tool exposed to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Response is the model's answer: either final content or tool calls to
// execute before a follow-up round.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// Options tunes a single chat call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// LLMProvider generates a reply given conversation history and a tool
// catalog. Implementations are stateless between calls.
type LLMProvider interface {
	Name() string
	Chat(ctx context.Context, messages []Message, tools []ToolSpec, model string, opts Options) (*Response, error)
}
