package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"inspection/pkg/fastpath"
	"inspection/pkg/logx"
)

// ChatRequest is the JSON body of POST /v1/chat.
type ChatRequest struct {
	SessionID string     `json:"sessionId"`
	Text      string     `json:"text"`
	Media     *ChatMedia `json:"media,omitempty"`
}

// ChatMedia is an optional media attachment on a chat message.
type ChatMedia struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"` // "photo" or "video"
}

// ChatResponse is the JSON reply of POST /v1/chat.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// ChatHandler serves POST /v1/chat, the synchronous JSON transport.
type ChatHandler struct {
	turn   *Turn
	logger *logx.Logger
}

// NewChatHandler builds the chat endpoint.
func NewChatHandler(turn *Turn) *ChatHandler {
	return &ChatHandler{turn: turn, logger: logx.NewLogger("chat")}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	msg := fastpath.Inbound{Text: req.Text}
	if req.Media != nil {
		msg.MediaURL = req.Media.URL
		msg.MediaType = req.Media.Type
	}

	reply, err := h.turn.Handle(r.Context(), req.SessionID, msg)
	if err != nil {
		h.logger.Warn("session %s: turn error: %v", req.SessionID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ChatResponse{Reply: reply}); err != nil {
		h.logger.Error("failed to write chat response: %v", err)
	}
}

// WhatsAppHandler serves POST /webhooks/whatsapp, the Twilio inbound webhook.
// The reply goes out through the configured Sender rather than the webhook
// response, so slow assistant turns never hit Twilio's webhook timeout.
// Duplicate deliveries are safe: replayed selections re-render the current
// prompt instead of re-applying state changes.
type WhatsAppHandler struct {
	turn   *Turn
	sender Sender
	logger *logx.Logger
}

// NewWhatsAppHandler builds the webhook endpoint.
func NewWhatsAppHandler(turn *Turn, sender Sender) *WhatsAppHandler {
	return &WhatsAppHandler{turn: turn, sender: sender, logger: logx.NewLogger("whatsapp")}
}

func (h *WhatsAppHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	from := strings.TrimPrefix(r.PostFormValue("From"), "whatsapp:")
	if from == "" {
		http.Error(w, "From is required", http.StatusBadRequest)
		return
	}

	msg := fastpath.Inbound{Text: r.PostFormValue("Body")}
	if url := r.PostFormValue("MediaUrl0"); url != "" {
		msg.MediaURL = url
		msg.MediaType = mediaType(r.PostFormValue("MediaContentType0"))
	}

	reply, err := h.turn.Handle(r.Context(), from, msg)
	if err != nil {
		h.logger.Warn("session %s: turn error: %v", from, err)
	}
	if reply != "" {
		if err := h.sender.Send(r.Context(), from, reply); err != nil {
			h.logger.Error("session %s: reply send failed: %v", from, err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func mediaType(contentType string) string {
	if strings.HasPrefix(contentType, "video/") {
		return "video"
	}
	return "photo"
}
