package assist

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspection/pkg/session"
	"inspection/pkg/tools"
)

// scriptedClient returns canned completion responses in order.
type scriptedClient struct {
	responses []CompletionResponse
	requests  []CompletionRequest
	err       error
}

func (s *scriptedClient) Complete(_ context.Context, in CompletionRequest) (CompletionResponse, error) {
	s.requests = append(s.requests, in)
	if s.err != nil {
		return CompletionResponse{}, s.err
	}
	if len(s.responses) == 0 {
		return CompletionResponse{Content: "done"}, nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func (s *scriptedClient) ModelName() string { return "scripted" }

// echoTool records invocations and returns a fixed payload.
type echoTool struct {
	calls *[]map[string]any
	fail  bool
}

func (e echoTool) Name() string { return "echo" }
func (e echoTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "echo",
		Description: "Echo the arguments back",
		InputSchema: tools.InputSchema{Type: "object", Properties: map[string]tools.Property{}},
	}
}

func (e echoTool) Exec(_ context.Context, args map[string]any) (tools.Result, error) {
	*e.calls = append(*e.calls, args)
	if e.fail {
		return tools.Result{}, fmt.Errorf("backend unavailable")
	}
	return tools.OKMessage("echoed"), nil
}

func newOrchestrator(client LLMClient, reg *tools.Registry, opts Options) *Orchestrator {
	return NewOrchestrator(NewCompletionRuntime(client, 512), reg, opts)
}

func TestHandleTurnPlainText(t *testing.T) {
	client := &scriptedClient{responses: []CompletionResponse{{Content: "Hello there"}}}
	o := newOrchestrator(client, tools.NewRegistry(), Options{})

	out, err := o.HandleTurn(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", out)

	require.Len(t, client.requests, 1)
	assert.Equal(t, RoleSystem, client.requests[0].Messages[0].Role)
	assert.Equal(t, "hi", client.requests[0].Messages[1].Content)
}

func TestHandleTurnExecutesToolCalls(t *testing.T) {
	var calls []map[string]any
	reg := tools.NewRegistry()
	reg.MustRegister(echoTool{calls: &calls})

	client := &scriptedClient{responses: []CompletionResponse{
		{ToolCalls: []ToolCall{{ID: "c1", Name: "echo", Parameters: map[string]any{"x": "1"}}}},
		{Content: "All set"},
	}}
	o := newOrchestrator(client, reg, Options{})

	out, err := o.HandleTurn(context.Background(), "s1", "do the thing")
	require.NoError(t, err)
	assert.Equal(t, "All set", out)
	require.Len(t, calls, 1)
	assert.Equal(t, "1", calls[0]["x"])

	// The tool output round-trips back into the next completion.
	require.Len(t, client.requests, 2)
	last := client.requests[1].Messages[len(client.requests[1].Messages)-1]
	assert.Contains(t, last.Content, `"success":true`)
	assert.Contains(t, last.Content, "c1")
}

// A failing tool becomes a structured failure payload for the model, never
// an aborted turn.
func TestToolFailureFedBackAsPayload(t *testing.T) {
	var calls []map[string]any
	reg := tools.NewRegistry()
	reg.MustRegister(echoTool{calls: &calls, fail: true})

	client := &scriptedClient{responses: []CompletionResponse{
		{ToolCalls: []ToolCall{{ID: "c1", Name: "echo"}}},
		{Content: "Sorry, that failed"},
	}}
	o := newOrchestrator(client, reg, Options{})

	out, err := o.HandleTurn(context.Background(), "s1", "go")
	require.NoError(t, err)
	assert.Equal(t, "Sorry, that failed", out)

	last := client.requests[1].Messages[len(client.requests[1].Messages)-1]
	assert.Contains(t, last.Content, `"success":false`)
}

func TestUnknownToolCallFedBackAsFailure(t *testing.T) {
	client := &scriptedClient{responses: []CompletionResponse{
		{ToolCalls: []ToolCall{{ID: "c1", Name: "no_such_tool"}}},
		{Content: "ok"},
	}}
	o := newOrchestrator(client, tools.NewRegistry(), Options{})

	out, err := o.HandleTurn(context.Background(), "s1", "go")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Contains(t, client.requests[1].Messages[len(client.requests[1].Messages)-1].Content, `"success":false`)
}

// Endless tool-calling is cut off at the round ceiling; the last known text
// is surfaced instead of looping forever.
func TestToolRoundCeiling(t *testing.T) {
	var calls []map[string]any
	reg := tools.NewRegistry()
	reg.MustRegister(echoTool{calls: &calls})

	loop := CompletionResponse{
		Content:   "still working",
		ToolCalls: []ToolCall{{ID: "c", Name: "echo"}},
	}
	client := &scriptedClient{responses: []CompletionResponse{loop, loop, loop, loop, loop, loop, loop, loop}}
	o := newOrchestrator(client, reg, Options{MaxToolRounds: 2})

	out, err := o.HandleTurn(context.Background(), "s1", "go")
	require.NoError(t, err)
	assert.Equal(t, "still working", out)
	assert.Len(t, calls, 2, "tool execution stops at the ceiling")
}

func TestRunTimeoutLeavesSessionUntouched(t *testing.T) {
	sessions := session.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, sessions.Merge(ctx, "s1", session.Patch{session.FieldInspectorID: "insp-1"}))

	o := NewOrchestrator(stuckRuntime{}, tools.NewRegistry(), Options{
		PollInterval: time.Millisecond,
		MaxPolls:     3,
	})

	_, err := o.HandleTurn(ctx, "s1", "hello")
	assert.ErrorIs(t, err, ErrRunTimeout)

	st, err := sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "insp-1", st.InspectorID)
}

// stuckRuntime never leaves in_progress.
type stuckRuntime struct{}

func (stuckRuntime) StartRun(context.Context, RunRequest) (RunHandle, error) {
	return stuckRun{}, nil
}

type stuckRun struct{}

func (stuckRun) Poll(context.Context) (RunStatus, error) {
	return RunStatus{State: RunInProgress}, nil
}
func (stuckRun) SubmitToolOutputs(context.Context, []ToolOutput) error { return nil }
func (stuckRun) FinalText(context.Context) (string, error)            { return "", nil }

func TestCompletionRuntimeStateMachine(t *testing.T) {
	client := &scriptedClient{responses: []CompletionResponse{
		{ToolCalls: []ToolCall{{ID: "c1", Name: "echo"}}},
		{Content: "final"},
	}}
	rt := NewCompletionRuntime(client, 128)
	ctx := context.Background()

	handle, err := rt.StartRun(ctx, RunRequest{SystemPrompt: "sys", UserText: "hi"})
	require.NoError(t, err)

	status, err := handle.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunRequiresAction, status.State)
	require.Len(t, status.ToolCalls, 1)

	// Submitting out of order is rejected once completed.
	require.NoError(t, handle.SubmitToolOutputs(ctx, []ToolOutput{{CallID: "c1", Output: `{"success":true}`}}))

	status, err = handle.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, status.State)

	text, err := handle.FinalText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "final", text)

	assert.Error(t, handle.SubmitToolOutputs(ctx, nil))
}

func TestSplitSystemMergesConsecutiveUserMessages(t *testing.T) {
	system, rest := splitSystem([]CompletionMessage{
		{Role: RoleSystem, Content: "be helpful"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "tool result a"},
		{Role: RoleUser, Content: "tool result b"},
	})
	assert.Equal(t, "be helpful", system)
	require.Len(t, rest, 3)
	assert.Equal(t, "tool result a\n\ntool result b", rest[2].Content)
}
