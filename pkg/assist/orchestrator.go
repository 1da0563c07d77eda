package assist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inspection/pkg/logx"
	"inspection/pkg/tools"
)

// ErrRunTimeout is returned when a run exceeds the poll-attempt ceiling.
// The turn fails; session state is untouched, so the user can re-send.
var ErrRunTimeout = errors.New("llm run timed out")

// Options tunes the orchestration loop.
type Options struct {
	PollInterval  time.Duration
	MaxPolls      int
	MaxToolRounds int
	// OnToolRound, when set, observes each executed tool-calling round.
	OnToolRound func()
}

func (o *Options) applyDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.MaxPolls <= 0 {
		o.MaxPolls = 60
	}
	if o.MaxToolRounds <= 0 {
		o.MaxToolRounds = 5
	}
}

// Orchestrator drives one LLM run per declined turn: poll, execute the
// requested tool calls through the shared registry, submit, repeat. Tool
// failures never abort a turn; they are fed back to the model as structured
// failure payloads.
type Orchestrator struct {
	runtime  Runtime
	registry *tools.Registry
	opts     Options
	logger   *logx.Logger
}

// NewOrchestrator builds an orchestrator over a runtime and the shared
// registry.
func NewOrchestrator(runtime Runtime, registry *tools.Registry, opts Options) *Orchestrator {
	opts.applyDefaults()
	return &Orchestrator{
		runtime:  runtime,
		registry: registry,
		opts:     opts,
		logger:   logx.NewLogger("assist"),
	}
}

// SetToolRoundObserver installs a hook that observes each executed
// tool-calling round. Must be called before the orchestrator serves turns.
func (o *Orchestrator) SetToolRoundObserver(fn func()) {
	o.opts.OnToolRound = fn
}

// HandleTurn runs one user message through the LLM path and returns the
// final assistant text.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, text string) (string, error) {
	handle, err := o.runtime.StartRun(ctx, RunRequest{
		SessionID:    sessionID,
		SystemPrompt: SystemPrompt,
		UserText:     text,
		Tools:        o.registry.Definitions(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}

	toolRounds := 0
	for polls := 0; polls < o.opts.MaxPolls; polls++ {
		status, pollErr := handle.Poll(ctx)
		if pollErr != nil {
			return "", fmt.Errorf("run poll failed: %w", pollErr)
		}

		switch status.State {
		case RunCompleted:
			return handle.FinalText(ctx)

		case RunFailed:
			return "", fmt.Errorf("run failed for session %s", sessionID)

		case RunRequiresAction:
			toolRounds++
			if toolRounds > o.opts.MaxToolRounds {
				// Stop looping; surface whatever the model last said.
				o.logger.Warn("session %s exceeded %d tool rounds", sessionID, o.opts.MaxToolRounds)
				return handle.FinalText(ctx)
			}
			if o.opts.OnToolRound != nil {
				o.opts.OnToolRound()
			}
			if submitErr := handle.SubmitToolOutputs(ctx, o.executeCalls(ctx, sessionID, status.ToolCalls)); submitErr != nil {
				return "", fmt.Errorf("failed to submit tool outputs: %w", submitErr)
			}

		case RunQueued, RunInProgress:
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(o.opts.PollInterval):
			}
		}
	}

	o.logger.Warn("session %s run exceeded %d polls", sessionID, o.opts.MaxPolls)
	return "", ErrRunTimeout
}

// executeCalls fans the requested tool calls out through the registry.
// Invoke already converts tool errors and panics into failed Results, so
// every call produces an output payload.
func (o *Orchestrator) executeCalls(ctx context.Context, sessionID string, calls []ToolCall) []ToolOutput {
	outputs := make([]ToolOutput, len(calls))
	for i, call := range calls {
		o.logger.Debug("session %s tool call %s(%v)", sessionID, call.Name, call.Parameters)
		outputs[i] = ToolOutput{
			CallID: call.ID,
			Output: o.registry.InvokeJSON(ctx, sessionID, call.Name, call.Parameters),
		}
	}
	return outputs
}
