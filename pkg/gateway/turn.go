// Package gateway exposes the conversational core over HTTP: a JSON chat
// endpoint for demos and tests, and a Twilio WhatsApp webhook for production.
// Both transports normalize into the same turn pipeline.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inspection/pkg/ack"
	"inspection/pkg/assist"
	"inspection/pkg/fastpath"
	"inspection/pkg/logx"
	"inspection/pkg/metrics"
)

// FastPath classifies a message deterministically. A false second return
// means the message was declined and should fall through to the assistant.
type FastPath interface {
	Handle(ctx context.Context, sessionID string, msg fastpath.Inbound) (string, bool)
}

// Assistant handles turns the fast path declined.
type Assistant interface {
	HandleTurn(ctx context.Context, sessionID, text string) (string, error)
}

// Replies used when the assistant cannot produce one.
const (
	timeoutReply     = "Sorry, that's taking longer than expected. Please try again."
	unavailableReply = "I didn't catch that. Send \"jobs\" to see today's jobs, or reply with a number from the menu."
)

// Turn routes one inbound message: fast path first, assistant on decline,
// with an early acknowledgement scheduled while the assistant works.
type Turn struct {
	fast       FastPath
	assistant  Assistant
	acks       *ack.Controller
	ackMessage string
	sender     Sender
	recorder   *metrics.Recorder
	logger     *logx.Logger
}

// NewTurn builds the turn service. assistant may be nil when no LLM is
// configured; declined messages then get a static hint. recorder may be nil.
func NewTurn(fast FastPath, assistant Assistant, acks *ack.Controller, ackMessage string, sender Sender, recorder *metrics.Recorder) *Turn {
	return &Turn{
		fast:       fast,
		assistant:  assistant,
		acks:       acks,
		ackMessage: ackMessage,
		sender:     sender,
		recorder:   recorder,
		logger:     logx.NewLogger("gateway"),
	}
}

// Handle processes one inbound message and returns the reply text. The reply
// is always usable even when err is non-nil.
func (t *Turn) Handle(ctx context.Context, sessionID string, msg fastpath.Inbound) (string, error) {
	start := time.Now()

	if reply, matched := t.fast.Handle(ctx, sessionID, msg); matched {
		t.recorder.Turn(metrics.PathFast, metrics.OutcomeOK, time.Since(start).Seconds())
		return reply, nil
	}

	if t.assistant == nil {
		t.logger.Debug("session %s: no assistant configured, declining", sessionID)
		t.recorder.Turn(metrics.PathLLM, metrics.OutcomeError, time.Since(start).Seconds())
		return unavailableReply, nil
	}

	pending := t.acks.Schedule(func() error {
		t.recorder.AckSent()
		return t.sender.Send(ctx, sessionID, t.ackMessage)
	})

	reply, err := t.assistant.HandleTurn(ctx, sessionID, assistantText(msg))
	if err != nil {
		pending.Cancel()
		if errors.Is(err, assist.ErrRunTimeout) {
			t.recorder.RunTimeout()
		}
		t.logger.Error("session %s: assistant turn failed: %v", sessionID, err)
		t.recorder.Turn(metrics.PathLLM, metrics.OutcomeError, time.Since(start).Seconds())
		return timeoutReply, err
	}

	// If the ack already went out, hold the reply briefly so the two
	// messages arrive in order.
	pending.Wait()
	t.recorder.Turn(metrics.PathLLM, metrics.OutcomeOK, time.Since(start).Seconds())
	return reply, nil
}

// assistantText folds a media attachment into the turn text so the model can
// store it through add_task_media.
func assistantText(msg fastpath.Inbound) string {
	if msg.MediaURL == "" {
		return msg.Text
	}
	mediaType := msg.MediaType
	if mediaType == "" {
		mediaType = "photo"
	}
	attachment := fmt.Sprintf("[attached %s: %s]", mediaType, msg.MediaURL)
	if msg.Text == "" {
		return attachment
	}
	return msg.Text + "\n" + attachment
}
