package assist

import (
	"context"
	"fmt"

	"inspection/pkg/tools"
)

// RunState is the lifecycle of one LLM run.
type RunState string

const (
	RunQueued         RunState = "queued"
	RunInProgress     RunState = "in_progress"
	RunRequiresAction RunState = "requires_action"
	RunCompleted      RunState = "completed"
	RunFailed         RunState = "failed"
)

// RunStatus is one poll observation.
type RunStatus struct {
	State     RunState
	ToolCalls []ToolCall
}

// ToolOutput is the result of one executed tool call, keyed back to the
// call that requested it.
type ToolOutput struct {
	CallID string
	Output string
}

// RunRequest starts one run.
type RunRequest struct {
	SessionID    string
	SystemPrompt string
	UserText     string
	Tools        []tools.ToolDefinition
}

// RunHandle is one in-flight run.
type RunHandle interface {
	// Poll observes the run's current state, advancing it where the
	// underlying runtime is pull-driven.
	Poll(ctx context.Context) (RunStatus, error)
	// SubmitToolOutputs feeds executed tool results back into the run.
	SubmitToolOutputs(ctx context.Context, outputs []ToolOutput) error
	// FinalText returns the run's final assistant message.
	FinalText(ctx context.Context) (string, error)
}

// Runtime starts runs. Implementations may be thread-based remote APIs or
// the local CompletionRuntime below.
type Runtime interface {
	StartRun(ctx context.Context, req RunRequest) (RunHandle, error)
}

// CompletionRuntime adapts a plain completion client into the run model: a
// completion round that returns tool calls is a run in requires_action;
// one without is a completed run.
type CompletionRuntime struct {
	client    LLMClient
	maxTokens int
}

// NewCompletionRuntime wraps a completion client.
func NewCompletionRuntime(client LLMClient, maxTokens int) *CompletionRuntime {
	return &CompletionRuntime{client: client, maxTokens: maxTokens}
}

// StartRun begins a local run; the first completion happens on the first
// Poll.
func (r *CompletionRuntime) StartRun(_ context.Context, req RunRequest) (RunHandle, error) {
	return &completionRun{
		runtime: r,
		tools:   req.Tools,
		messages: []CompletionMessage{
			{Role: RoleSystem, Content: req.SystemPrompt},
			{Role: RoleUser, Content: req.UserText},
		},
		state: RunQueued,
	}, nil
}

// completionRun is one in-flight local run: the growing transcript plus the
// last observed model response.
type completionRun struct {
	runtime  *CompletionRuntime
	tools    []tools.ToolDefinition
	messages []CompletionMessage
	state    RunState
	last     CompletionResponse
}

func (c *completionRun) Poll(ctx context.Context) (RunStatus, error) {
	if c.state == RunQueued {
		resp, err := c.runtime.client.Complete(ctx, CompletionRequest{
			Messages:  c.messages,
			Tools:     c.tools,
			MaxTokens: c.runtime.maxTokens,
		})
		if err != nil {
			c.state = RunFailed
			return RunStatus{State: RunFailed}, fmt.Errorf("completion failed: %w", err)
		}
		c.last = resp
		c.messages = append(c.messages, CompletionMessage{Role: RoleAssistant, Content: resp.Content})
		if len(resp.ToolCalls) > 0 {
			c.state = RunRequiresAction
		} else {
			c.state = RunCompleted
		}
	}
	return RunStatus{State: c.state, ToolCalls: c.last.ToolCalls}, nil
}

func (c *completionRun) SubmitToolOutputs(_ context.Context, outputs []ToolOutput) error {
	if c.state != RunRequiresAction {
		return fmt.Errorf("run is %s, not awaiting tool outputs", c.state)
	}
	for _, out := range outputs {
		c.messages = append(c.messages, CompletionMessage{
			Role:    RoleUser,
			Content: fmt.Sprintf("Tool result %s: %s", out.CallID, out.Output),
		})
	}
	c.state = RunQueued
	return nil
}

func (c *completionRun) FinalText(_ context.Context) (string, error) {
	return c.last.Content, nil
}
