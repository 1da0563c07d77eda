package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// OpenAIClient implements LLMClient over the OpenAI responses API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient builds a client for the given model.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *OpenAIClient) ModelName() string { return c.model }

// Complete sends one completion round. The transcript is flattened into a
// single input string, which is what the responses API expects.
func (c *OpenAIClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	var input strings.Builder
	for _, msg := range in.Messages {
		switch msg.Role {
		case RoleSystem:
			fmt.Fprintf(&input, "System: %s\n\n", msg.Content)
		case RoleAssistant:
			fmt.Fprintf(&input, "Assistant: %s\n\n", msg.Content)
		default:
			input.WriteString(msg.Content)
			input.WriteString("\n\n")
		}
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(int64(in.MaxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(strings.TrimSpace(input.String()))},
	}

	if len(in.Tools) > 0 {
		toolParams := make([]responses.ToolUnionParam, len(in.Tools))
		for i := range in.Tools {
			def := &in.Tools[i]
			toolParams[i] = responses.ToolUnionParam{
				OfFunction: &responses.FunctionToolParam{
					Name:        def.Name,
					Description: openai.String(def.Description),
					Parameters: openai.FunctionParameters(map[string]any{
						"type":       "object",
						"properties": schemaProperties(def.InputSchema),
						"required":   def.InputSchema.Required,
					}),
				},
			}
		}
		params.Tools = toolParams
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("openai completion failed: %w", err)
	}
	if resp == nil {
		return CompletionResponse{}, fmt.Errorf("empty response from openai API")
	}

	var calls []ToolCall
	for i := range resp.Output {
		item := &resp.Output[i]
		if item.Type != "function_call" {
			continue
		}
		call := item.AsFunctionCall()
		var args map[string]any
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				return CompletionResponse{}, fmt.Errorf("failed to parse arguments for %s: %w", call.Name, err)
			}
		}
		calls = append(calls, ToolCall{ID: call.ID, Name: call.Name, Parameters: args})
	}

	return CompletionResponse{
		Content:   resp.OutputText(),
		ToolCalls: calls,
	}, nil
}
