package chat

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/logger"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/metrics"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/responder"
)

const maxBodyBytes = 64 << 10

type HandlerOptions struct {
	// Secret, when set, must match the X-Webhook-Secret header.
	Secret string
	// RateRPS and RateBurst bound requests per sender. RateRPS <= 0 disables the limit.
	RateRPS   float64
	RateBurst int
}

type Handler struct {
	svc     Service
	secret  string
	limiter *limiterPool
}

func NewHandler(svc Service, opts HandlerOptions) *Handler {
	return &Handler{
		svc:     svc,
		secret:  opts.Secret,
		limiter: newLimiterPool(opts.RateRPS, opts.RateBurst),
	}
}

type webhookRequest struct {
	Message   string `json:"message"`
	Text      string `json:"text"`
	Sender    string `json:"sender"`
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
}

type webhookResponse struct {
	Reply  string `json:"reply"`
	Source string `json:"source"`
}

type historyMessage struct {
	ID         string    `json:"message_id"`
	Sender     string    `json:"sender"`
	SenderName string    `json:"sender_name,omitempty"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

type historyResponse struct {
	ChatID   string           `json:"chat_id"`
	Messages []historyMessage `json:"messages"`
}

// HandleWebhook receives one pushed chat message and answers with the reply.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	var payload webhookRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	text := payload.Message
	if text == "" {
		text = payload.Text
	}
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, "missing message")
		return
	}

	if !h.limiter.Allow(limitKey(payload.Sender, r)) {
		writeError(w, http.StatusTooManyRequests, "too many messages")
		return
	}

	chatID := payload.ChatID
	if chatID == "" {
		chatID = "default"
	}

	metrics.MessagesReceived.WithLabelValues("webhook").Inc()

	reply, err := h.svc.HandleIncoming(r.Context(), &Message{
		ID:         payload.MessageID,
		ChatID:     chatID,
		Sender:     SenderAttendee,
		SenderName: payload.Sender,
		Text:       text,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusConflict {
			metrics.DuplicatesDropped.WithLabelValues("webhook").Inc()
		} else {
			logger.Log.Error("webhook_processing_failed", zap.String("chat_id", chatID), zap.Error(err))
		}
		writeError(w, status, http.StatusText(status))
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{Reply: reply.Text, Source: string(reply.Source)})
}

// HandleHistory lists what the bot logged for one chat, questions and
// replies alike, so the host can review the conversation.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	chatID := chi.URLParam(r, "chatID")
	msgs, err := h.svc.History(r.Context(), chatID)
	if err != nil {
		logger.Log.Error("history_failed", zap.String("chat_id", chatID), zap.Error(err))
		status := statusFor(err)
		writeError(w, status, http.StatusText(status))
		return
	}

	out := historyResponse{ChatID: chatID, Messages: make([]historyMessage, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, historyMessage{
			ID:         m.ID,
			Sender:     string(m.Sender),
			SenderName: m.SenderName,
			Text:       m.Text,
			CreatedAt:  m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) authorized(w http.ResponseWriter, r *http.Request) bool {
	if h.secret == "" {
		return true
	}
	got := r.Header.Get("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid webhook secret")
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrEmptyText):
		return http.StatusBadRequest
	case errors.Is(err, responder.ErrGeneration):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func limitKey(sender string, r *http.Request) string {
	if sender != "" {
		return "sender:" + sender
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
