// Package assist is the LLM fallback path: when the deterministic
// interpreter declines a message, an LLM tool-calling run is orchestrated
// against the same tool registry the fast path uses. The LLM itself is
// treated as an opaque run oracle behind the Runtime interface.
package assist

import (
	"context"

	"inspection/pkg/tools"
)

// Role identifies the author of a completion message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// CompletionMessage is one turn of an LLM conversation.
type CompletionMessage struct {
	Role    Role
	Content string
}

// CompletionRequest is one completion call with optional tool exposure.
type CompletionRequest struct {
	Messages  []CompletionMessage
	Tools     []tools.ToolDefinition
	MaxTokens int
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID         string
	Name       string
	Parameters map[string]any
}

// CompletionResponse is the model's reply: free text, tool calls, or both.
type CompletionResponse struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string
}

// LLMClient is one provider-specific completion client.
type LLMClient interface {
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)
	ModelName() string
}
