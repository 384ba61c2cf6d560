package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"recruit-agent/internal/domain"
)

// NewRouter mounts every route on a chi router.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(h.recoverMiddleware)
	r.Use(h.loggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ok") })

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/email", h.inboundEmail)
		r.Post("/sms", h.inboundTwilio(domain.CampaignSMSInterview))
		r.Post("/whatsapp", h.inboundTwilio(domain.CampaignWhatsAppInterview))
		r.Post("/voice", h.inboundVoice)
	})

	r.Post("/interviews", h.startInterview)
	r.Post("/campaigns/{campaign}/scan", h.triggerScan)

	r.Route("/reports", func(r chi.Router) {
		r.Get("/{campaign}", h.getReport)
		r.Get("/{campaign}/export", h.exportReport)
	})

	return r
}
