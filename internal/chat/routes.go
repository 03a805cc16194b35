package chat

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/webhook", h.HandleWebhook)
	r.Get("/chats/{chatID}/messages", h.HandleHistory)
}
