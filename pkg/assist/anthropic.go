package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"inspection/pkg/tools"
)

// AnthropicClient implements LLMClient over the Anthropic messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicClient builds a client for the given model.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

func (c *AnthropicClient) ModelName() string { return string(c.model) }

// Complete sends one completion round. System messages are lifted into the
// top-level system parameter; the rest must alternate user/assistant, which
// the orchestrator's transcript shape already guarantees.
func (c *AnthropicClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	systemPrompt, conversation := splitSystem(in.Messages)
	if len(conversation) == 0 {
		return CompletionResponse{}, fmt.Errorf("message list cannot be empty")
	}

	messages := make([]anthropic.MessageParam, 0, len(conversation))
	for _, msg := range conversation {
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: int64(in.MaxTokens),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt, Type: "text"}}
	}

	if len(in.Tools) > 0 {
		toolParams := make([]anthropic.ToolUnionParam, 0, len(in.Tools))
		for i := range in.Tools {
			def := &in.Tools[i]
			schema := anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: schemaProperties(def.InputSchema),
				Required:   def.InputSchema.Required,
			}
			toolParams = append(toolParams, anthropic.ToolUnionParamOfTool(schema, def.Name))
		}
		params.Tools = toolParams
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("anthropic completion failed: %w", err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return CompletionResponse{}, fmt.Errorf("empty response from anthropic API")
	}

	var text strings.Builder
	var calls []ToolCall
	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			use := block.AsToolUse()
			var args map[string]any
			if err := json.Unmarshal(use.Input, &args); err != nil {
				return CompletionResponse{}, fmt.Errorf("failed to parse tool input for %s: %w", use.Name, err)
			}
			calls = append(calls, ToolCall{ID: use.ID, Name: use.Name, Parameters: args})
		}
	}

	return CompletionResponse{
		Content:    text.String(),
		ToolCalls:  calls,
		StopReason: string(resp.StopReason),
	}, nil
}

// splitSystem lifts system messages out of the transcript.
func splitSystem(messages []CompletionMessage) (string, []CompletionMessage) {
	var systemParts []string
	rest := make([]CompletionMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		// Consecutive same-role messages are merged: tool outputs arrive as
		// a run of user messages and Anthropic requires alternation.
		if len(rest) > 0 && rest[len(rest)-1].Role == msg.Role {
			rest[len(rest)-1].Content += "\n\n" + msg.Content
			continue
		}
		rest = append(rest, msg)
	}
	return strings.Join(systemParts, "\n\n"), rest
}

// schemaProperties renders an input schema's properties as the plain maps
// both provider SDKs expect.
func schemaProperties(schema tools.InputSchema) map[string]any {
	if len(schema.Properties) == 0 {
		return map[string]any{}
	}
	props := make(map[string]any, len(schema.Properties))
	for name := range schema.Properties {
		prop := schema.Properties[name]
		props[name] = propertySchema(&prop)
	}
	return props
}

func propertySchema(prop *tools.Property) map[string]any {
	out := map[string]any{"type": prop.Type}
	if prop.Description != "" {
		out["description"] = prop.Description
	}
	if len(prop.Enum) > 0 {
		out["enum"] = prop.Enum
	}
	if prop.Type == "array" && prop.Items != nil {
		out["items"] = propertySchema(prop.Items)
	}
	if prop.Type == "object" && prop.Properties != nil {
		children := make(map[string]any, len(prop.Properties))
		for name, child := range prop.Properties {
			if child != nil {
				children[name] = propertySchema(child)
			}
		}
		out["properties"] = children
	}
	return out
}
