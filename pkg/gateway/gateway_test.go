package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"inspection/pkg/ack"
	"inspection/pkg/assist"
	"inspection/pkg/fastpath"
)

type fakeFast struct {
	reply   string
	matched bool
	last    fastpath.Inbound
}

func (f *fakeFast) Handle(_ context.Context, _ string, msg fastpath.Inbound) (string, bool) {
	f.last = msg
	return f.reply, f.matched
}

type fakeAssistant struct {
	reply    string
	err      error
	delay    time.Duration
	calls    int
	lastText string
}

func (f *fakeAssistant) HandleTurn(_ context.Context, _, text string) (string, error) {
	f.calls++
	f.lastText = text
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.reply, f.err
}

type recordSender struct {
	mu    sync.Mutex
	sends []string // "to|body"
}

func (s *recordSender) Send(_ context.Context, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, to+"|"+body)
	return nil
}

func (s *recordSender) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sends...)
}

func noAck() *ack.Controller {
	return ack.New(false, time.Hour, 0)
}

func TestTurnFastPathShortCircuitsAssistant(t *testing.T) {
	assistant := &fakeAssistant{reply: "llm reply"}
	sender := &recordSender{}
	turn := NewTurn(&fakeFast{reply: "menu", matched: true}, assistant, noAck(), "one sec", sender, nil)

	reply, err := turn.Handle(context.Background(), "+6591234567", fastpath.Inbound{Text: "jobs"})
	require.NoError(t, err)
	require.Equal(t, "menu", reply)
	require.Zero(t, assistant.calls)
	require.Empty(t, sender.all())
}

func TestTurnDeclineFallsThroughToAssistant(t *testing.T) {
	assistant := &fakeAssistant{reply: "llm reply"}
	turn := NewTurn(&fakeFast{}, assistant, noAck(), "one sec", &recordSender{}, nil)

	reply, err := turn.Handle(context.Background(), "+6591234567", fastpath.Inbound{Text: "what's left in the kitchen?"})
	require.NoError(t, err)
	require.Equal(t, "llm reply", reply)
	require.Equal(t, 1, assistant.calls)
}

func TestTurnSlowAssistantTriggersAck(t *testing.T) {
	assistant := &fakeAssistant{reply: "llm reply", delay: 80 * time.Millisecond}
	sender := &recordSender{}
	acks := ack.New(true, 10*time.Millisecond, time.Millisecond)
	turn := NewTurn(&fakeFast{}, assistant, acks, "one sec", sender, nil)

	reply, err := turn.Handle(context.Background(), "+6591234567", fastpath.Inbound{Text: "hmm"})
	require.NoError(t, err)
	require.Equal(t, "llm reply", reply)
	require.Equal(t, []string{"+6591234567|one sec"}, sender.all())
}

func TestTurnFastAssistantCancelsAck(t *testing.T) {
	assistant := &fakeAssistant{reply: "llm reply"}
	sender := &recordSender{}
	acks := ack.New(true, 200*time.Millisecond, time.Millisecond)
	turn := NewTurn(&fakeFast{}, assistant, acks, "one sec", sender, nil)

	_, err := turn.Handle(context.Background(), "+6591234567", fastpath.Inbound{Text: "hmm"})
	require.NoError(t, err)
	time.Sleep(250 * time.Millisecond)
	require.Empty(t, sender.all())
}

func TestTurnCarriesMediaIntoAssistantText(t *testing.T) {
	assistant := &fakeAssistant{reply: "stored"}
	turn := NewTurn(&fakeFast{}, assistant, noAck(), "one sec", &recordSender{}, nil)

	_, err := turn.Handle(context.Background(), "+6591234567", fastpath.Inbound{
		Text:     "leaky pipe",
		MediaURL: "https://cdn.example.com/pipe.jpg",
	})
	require.NoError(t, err)
	require.Equal(t, "leaky pipe\n[attached photo: https://cdn.example.com/pipe.jpg]", assistant.lastText)

	_, err = turn.Handle(context.Background(), "+6591234567", fastpath.Inbound{
		MediaURL:  "https://cdn.example.com/clip.mp4",
		MediaType: "video",
	})
	require.NoError(t, err)
	require.Equal(t, "[attached video: https://cdn.example.com/clip.mp4]", assistant.lastText)
}

func TestTurnTimeoutReturnsFallbackReply(t *testing.T) {
	assistant := &fakeAssistant{err: assist.ErrRunTimeout}
	turn := NewTurn(&fakeFast{}, assistant, noAck(), "one sec", &recordSender{}, nil)

	reply, err := turn.Handle(context.Background(), "+6591234567", fastpath.Inbound{Text: "hmm"})
	require.ErrorIs(t, err, assist.ErrRunTimeout)
	require.Equal(t, timeoutReply, reply)
}

func TestTurnWithoutAssistantReturnsHint(t *testing.T) {
	turn := NewTurn(&fakeFast{}, nil, noAck(), "one sec", &recordSender{}, nil)

	reply, err := turn.Handle(context.Background(), "+6591234567", fastpath.Inbound{Text: "hmm"})
	require.NoError(t, err)
	require.Equal(t, unavailableReply, reply)
}

func TestChatHandlerRoundTrip(t *testing.T) {
	fast := &fakeFast{reply: "menu", matched: true}
	turn := NewTurn(fast, nil, noAck(), "one sec", &recordSender{}, nil)
	handler := NewChatHandler(turn)

	body := `{"sessionId":"+6591234567","text":"jobs"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "menu", resp.Reply)
}

func TestChatHandlerRejectsBadRequests(t *testing.T) {
	turn := NewTurn(&fakeFast{}, nil, noAck(), "one sec", &recordSender{}, nil)
	handler := NewChatHandler(turn)

	req := httptest.NewRequest(http.MethodGet, "/v1/chat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"text":"jobs"}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandlerPassesMedia(t *testing.T) {
	fast := &fakeFast{reply: "ok", matched: true}
	turn := NewTurn(fast, nil, noAck(), "one sec", &recordSender{}, nil)
	handler := NewChatHandler(turn)

	body := `{"sessionId":"+6591234567","text":"","media":{"url":"https://cdn/x.jpg","type":"photo"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "https://cdn/x.jpg", fast.last.MediaURL)
	require.Equal(t, "photo", fast.last.MediaType)
}

func TestWhatsAppHandlerSendsReplyThroughSender(t *testing.T) {
	fast := &fakeFast{reply: "menu", matched: true}
	sender := &recordSender{}
	turn := NewTurn(fast, nil, noAck(), "one sec", sender, nil)
	handler := NewWhatsAppHandler(turn, sender)

	form := url.Values{}
	form.Set("From", "whatsapp:+6591234567")
	form.Set("Body", "jobs")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, []string{"+6591234567|menu"}, sender.all())
}

func TestWhatsAppHandlerMapsMedia(t *testing.T) {
	fast := &fakeFast{reply: "ok", matched: true}
	sender := &recordSender{}
	turn := NewTurn(fast, nil, noAck(), "one sec", sender, nil)
	handler := NewWhatsAppHandler(turn, sender)

	form := url.Values{}
	form.Set("From", "whatsapp:+6591234567")
	form.Set("Body", "")
	form.Set("MediaUrl0", "https://api.twilio.com/media/abc")
	form.Set("MediaContentType0", "video/mp4")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://api.twilio.com/media/abc", fast.last.MediaURL)
	require.Equal(t, "video", fast.last.MediaType)
}

func TestWhatsAppHandlerRejectsMissingFrom(t *testing.T) {
	turn := NewTurn(&fakeFast{}, nil, noAck(), "one sec", &recordSender{}, nil)
	handler := NewWhatsAppHandler(turn, &recordSender{})

	form := url.Values{}
	form.Set("Body", "jobs")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMediaTypeMapping(t *testing.T) {
	require.Equal(t, "video", mediaType("video/mp4"))
	require.Equal(t, "photo", mediaType("image/jpeg"))
	require.Equal(t, "photo", mediaType(""))
}
