// Package llm defines the provider-neutral chat contract the agents run on,
// and the concrete providers behind it.
package llm

import "context"

// Role of a history item
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a function invocation requested by the model
type ToolCall struct {
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// Message is one replayable history item. Agent records which role produced it
// and is never sent to a provider.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
	Agent      string     `json:"agent,omitempty"`
}

// UserMessage builds a user history item
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// ToolResult builds the tool history item answering call id
func ToolResult(id, name, content string, isError bool) Message {
	return Message{Role: RoleTool, ToolCallID: id, ToolName: name, Content: content, IsError: isError}
}

// ToolSpec describes a callable function offered to the model
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// Request is a single completion request
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolSpec
	// Metadata carries structured facts (agent, city, lat, lon ...) for
	// providers that do not read prose. Remote providers ignore it.
	Metadata map[string]string
}

// Response is the assistant output for one completion
type Response struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
}

// Model completes chat requests
type Model interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// LastUserIndex returns the index of the latest user message, or -1
func LastUserIndex(msgs []Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// ObjectSchema builds a JSON schema object with the given properties
func ObjectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	if props == nil {
		props = map[string]interface{}{}
	}
	if required == nil {
		required = []string{}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
