// Package tools provides the inspection assistant's tool registry: a fixed
// catalog of named, schema-described operations invoked identically by the
// deterministic fast path and the LLM orchestrator. Both call paths must be
// observably equivalent for the same (state, input) pair, which is why all
// business logic lives here and nowhere else.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Property describes one parameter in a tool's input schema.
//
//nolint:govet // Struct layout matches JSON serialization requirements
type Property struct {
	Type        string               `json:"type"`
	Description string               `json:"description,omitempty"`
	Enum        []string             `json:"enum,omitempty"`
	Items       *Property            `json:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
}

// InputSchema is the JSON-Schema-like parameter description for a tool.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDefinition describes a tool for LLM function calling.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// Result is the uniform tool return value. Success is always present; Error
// carries a plain, next-step-oriented message on failure; Data holds
// tool-specific fields flattened into the JSON object.
type Result struct {
	Success bool
	Error   string
	Data    map[string]any
}

// OK builds a successful result.
func OK(data map[string]any) Result {
	if data == nil {
		data = map[string]any{}
	}
	return Result{Success: true, Data: data}
}

// OKMessage builds a successful result carrying just a user-facing message.
func OKMessage(message string) Result {
	return OK(map[string]any{"message": message})
}

// Failf builds a failed result. The message doubles as the user-facing
// prompt, so write it as the next instruction, not a stack trace.
func Failf(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Message returns the user-facing text of the result: the message field on
// success, the error text on failure.
func (r Result) Message() string {
	if !r.Success {
		return r.Error
	}
	if msg, ok := r.Data["message"].(string); ok {
		return msg
	}
	return ""
}

// MarshalJSON flattens Data into the top-level object alongside success and
// error, matching the wire contract both call paths expect.
func (r Result) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(r.Data)+2)
	for k, v := range r.Data {
		obj[k] = v
	}
	obj["success"] = r.Success
	if r.Error != "" {
		obj["error"] = r.Error
	}
	return json.Marshal(obj)
}

// JSON renders the result as its wire form.
func (r Result) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"failed to encode result: %v"}`, err)
	}
	return string(data)
}

// Tool is one registered operation.
type Tool interface {
	// Name returns the tool's wire identifier.
	Name() string
	// Definition returns the tool's schema for LLM function calling.
	Definition() ToolDefinition
	// Exec executes the tool. Expected business failures are expressed in
	// the Result; the error return is reserved for unexpected internal
	// failures and is converted to a failed Result by the registry.
	Exec(ctx context.Context, args map[string]any) (Result, error)
}

type contextKey string

// sessionIDKey carries the conversation's session id through tool execution.
const sessionIDKey contextKey = "session_id"

// WithSessionID returns a context carrying the session id for tool calls.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext extracts the session id set by WithSessionID.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// String argument helpers. Tool arguments arrive as map[string]any decoded
// from JSON, so numbers may be float64 and ordinals may be strings.

func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case float64:
		if v == float64(int(v)) {
			return fmt.Sprintf("%d", int(v))
		}
		return fmt.Sprintf("%v", v)
	case int:
		return fmt.Sprintf("%d", v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func boolArg(args map[string]any, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1" || v == "yes"
	case float64:
		return v != 0
	default:
		return false
	}
}
