// Package handler exposes the HTTP surface: provider webhooks that feed
// the job queue, campaign reports, and manual triggers.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"recruit-agent/internal/campaign"
	"recruit-agent/internal/domain"
	"recruit-agent/internal/integrations/sendgrid"
	"recruit-agent/internal/integrations/twilio"
	"recruit-agent/internal/queue"
	"recruit-agent/internal/report"
	"recruit-agent/internal/usecase"
)

// Enqueuer accepts jobs for the worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// ReportBuilder assembles campaign reports.
type ReportBuilder interface {
	Build(ctx context.Context, kind domain.CampaignKind, orgID int64) (report.Report, error)
	WriteExcel(ctx context.Context, kind domain.CampaignKind, orgID int64, w io.Writer) error
}

// Handler holds the route dependencies.
type Handler struct {
	jobs    Enqueuer
	reports ReportBuilder
	log     *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(jobs Enqueuer, reports ReportBuilder, log *slog.Logger) (*Handler, error) {
	if jobs == nil {
		return nil, errors.New("handler: enqueuer must not be nil")
	}
	if reports == nil {
		return nil, errors.New("handler: report builder must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{jobs: jobs, reports: reports, log: log}, nil
}

// inboundEmail handles the SendGrid inbound parse webhook. The reply
// subject carries the organization token; a payload without a decodable
// token or sender is rejected so SendGrid surfaces the misconfiguration.
func (h *Handler) inboundEmail(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed form payload")
			return
		}
	}
	msg, err := sendgrid.ParseInbound(r.Form)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "missing sender or body")
		return
	}
	orgID, err := campaign.OrgIDFromSubject(msg.Subject)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "missing or invalid organization token")
		return
	}

	// The email channel serves both email campaigns; the reply itself does
	// not say which one it belongs to, so a job is queued for each and the
	// one without a matching conversation is a no-op.
	for _, kind := range []domain.CampaignKind{domain.CampaignGDPREmail, domain.CampaignAWREmail} {
		if err := h.enqueueInbound(r.Context(), kind, orgID, msg.From, msg.Body); err != nil {
			h.log.Error("enqueue inbound email failed", "campaign", kind, "err", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			return
		}
	}
	writeMessage(w, http.StatusOK, "accepted")
}

// inboundTwilio handles the Twilio message webhooks for one campaign kind.
// Twilio retries on non-2xx and reads the body as TwiML, so the response is
// always an empty TwiML document, whatever happened.
func (h *Handler) inboundTwilio(kind domain.CampaignKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer h.writeTwiML(w)
		if err := r.ParseForm(); err != nil {
			h.log.Error("malformed twilio payload", "campaign", kind, "err", err)
			return
		}
		msg, err := twilio.ParseInbound(r.Form)
		if err != nil {
			h.log.Error("malformed twilio payload", "campaign", kind, "err", err)
			return
		}
		if err := h.enqueueInbound(r.Context(), kind, 0, msg.From, msg.Body); err != nil {
			h.log.Error("enqueue inbound message failed", "campaign", kind, "err", err)
		}
	}
}

// inboundVoice handles the transcription callback of the phone interview
// channel: each transcribed utterance enters the engine as one inbound
// message, keyed by the caller's number like the SMS channel.
func (h *Handler) inboundVoice(w http.ResponseWriter, r *http.Request) {
	defer h.writeTwiML(w)
	if err := r.ParseForm(); err != nil {
		h.log.Error("malformed transcription payload", "err", err)
		return
	}
	msg, err := twilio.ParseTranscript(r.Form)
	if err != nil {
		h.log.Error("malformed transcription payload", "err", err)
		return
	}
	if err := h.enqueueInbound(r.Context(), domain.CampaignPhoneInterview, 0, msg.From, msg.Body); err != nil {
		h.log.Error("enqueue inbound transcript failed", "err", err)
	}
}

func (h *Handler) writeTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(twilio.EmptyTwiML))
}

func (h *Handler) enqueueInbound(ctx context.Context, kind domain.CampaignKind, orgID int64, identity, message string) error {
	job, err := queue.NewJob(queue.KindInbound, identity, usecase.InboundPayload{
		Campaign: kind,
		OrgID:    orgID,
		Identity: identity,
		Message:  message,
	})
	if err != nil {
		return err
	}
	return h.jobs.Enqueue(ctx, job)
}

// startInterviewRequest is the body of POST /interviews.
type startInterviewRequest struct {
	Campaign string        `json:"campaign"`
	Seed     campaign.Seed `json:"seed"`
}

// startInterview queues an initiate job for one application.
func (h *Handler) startInterview(w http.ResponseWriter, r *http.Request) {
	var req startInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return
	}
	kind := domain.CampaignKind(req.Campaign)
	if _, ok := campaign.ByKind(kind); !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown campaign")
		return
	}
	if req.Seed.TargetIdentity == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "missing target identity")
		return
	}
	job, err := queue.NewJob(queue.KindInitiate, req.Seed.TargetIdentity, usecase.InitiatePayload{
		Campaign: kind,
		Seed:     req.Seed,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	if err := h.jobs.Enqueue(r.Context(), job); err != nil {
		h.log.Error("enqueue initiate failed", "campaign", kind, "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	writeMessage(w, http.StatusAccepted, "queued")
}

// triggerScan queues a bulk eligibility scan for one campaign.
func (h *Handler) triggerScan(w http.ResponseWriter, r *http.Request) {
	kind, ok := campaignParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown campaign")
		return
	}
	job, err := queue.NewJob(queue.KindScan, "scan:"+string(kind), usecase.ScanPayload{Campaign: kind})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	if err := h.jobs.Enqueue(r.Context(), job); err != nil {
		h.log.Error("enqueue scan failed", "campaign", kind, "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	writeMessage(w, http.StatusAccepted, "queued")
}

// getReport returns the JSON campaign report for one organization.
func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	kind, orgID, ok := h.reportParams(w, r)
	if !ok {
		return
	}
	rep, err := h.reports.Build(r.Context(), kind, orgID)
	if err != nil {
		h.log.Error("build report failed", "campaign", kind, "org", orgID, "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// exportReport streams the campaign report as an xlsx workbook.
func (h *Handler) exportReport(w http.ResponseWriter, r *http.Request) {
	kind, orgID, ok := h.reportParams(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+string(kind)+`-report.xlsx"`)
	if err := h.reports.WriteExcel(r.Context(), kind, orgID, w); err != nil {
		// Headers are already gone; all that is left is the log line.
		h.log.Error("export report failed", "campaign", kind, "org", orgID, "err", err)
	}
}

func (h *Handler) reportParams(w http.ResponseWriter, r *http.Request) (domain.CampaignKind, int64, bool) {
	kind, ok := campaignParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown campaign")
		return "", 0, false
	}
	orgID, err := strconv.ParseInt(r.URL.Query().Get("org"), 10, 64)
	if err != nil || orgID <= 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "missing or invalid org parameter")
		return "", 0, false
	}
	return kind, orgID, true
}

func campaignParam(r *http.Request) (domain.CampaignKind, bool) {
	kind := domain.CampaignKind(chi.URLParam(r, "campaign"))
	if _, ok := campaign.ByKind(kind); !ok {
		return "", false
	}
	return kind, true
}
