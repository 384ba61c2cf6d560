package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"recruit-agent/internal/campaign"
	"recruit-agent/internal/convo"
	"recruit-agent/internal/domain"
	"recruit-agent/internal/repository"
)

// TrackerStore is the conversation persistence surface the engine needs.
type TrackerStore interface {
	GetOrNone(ctx context.Context, kind domain.CampaignKind, orgID int64, identity string) (*domain.Tracker, error)
	FindActive(ctx context.Context, kind domain.CampaignKind, identity string) (*domain.Tracker, error)
	Upsert(ctx context.Context, t *domain.Tracker) (bool, error)
	AppendTurn(ctx context.Context, t *domain.Tracker, turn domain.Turn) error
	Complete(ctx context.Context, t *domain.Tracker, finalTurn domain.Turn, decision string, outbox *repository.OutboxRow) error
}

// ConfigStore resolves campaign configurations.
type ConfigStore interface {
	Get(ctx context.Context, kind domain.CampaignKind, orgID int64) (domain.CampaignConfig, error)
}

// Responder produces the next system message for a conversation.
type Responder interface {
	Respond(ctx context.Context, instructions string, log []domain.Turn, inbound, fallback string, tags convo.TagSet) convo.Reply
}

// EmailSender delivers one email and returns a provider reference.
type EmailSender interface {
	Send(ctx context.Context, from, to, subject, body string) (string, error)
}

// Messenger delivers SMS and WhatsApp messages.
type Messenger interface {
	SendSMS(ctx context.Context, from, to, body string) (string, error)
	SendWhatsApp(ctx context.Context, from, to, body string) (string, error)
	SendWhatsAppTemplate(ctx context.Context, from, to, contentSID string, variables map[string]string) (string, error)
}

// OutboxWriter records pending external side effects outside a tracker
// transaction.
type OutboxWriter interface {
	Create(ctx context.Context, row *repository.OutboxRow) error
}

// Engine runs the conversational consent/decision state machine shared by
// every campaign: initiate a cycle, take one inbound turn, and translate a
// parsed decision into its external side effect.
type Engine struct {
	trackers  TrackerStore
	configs   ConfigStore
	responder Responder
	email     EmailSender
	messenger Messenger
	outbox    OutboxWriter
	log       *slog.Logger
	now       func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(trackers TrackerStore, configs ConfigStore, responder Responder, email EmailSender, messenger Messenger, outbox OutboxWriter, log *slog.Logger) (*Engine, error) {
	if trackers == nil {
		return nil, errors.New("usecase: tracker store must not be nil")
	}
	if configs == nil {
		return nil, errors.New("usecase: config store must not be nil")
	}
	if responder == nil {
		return nil, errors.New("usecase: responder must not be nil")
	}
	if email == nil {
		return nil, errors.New("usecase: email sender must not be nil")
	}
	if messenger == nil {
		return nil, errors.New("usecase: messenger must not be nil")
	}
	if outbox == nil {
		return nil, errors.New("usecase: outbox writer must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		trackers:  trackers,
		configs:   configs,
		responder: responder,
		email:     email,
		messenger: messenger,
		outbox:    outbox,
		log:       log,
		now:       time.Now,
	}, nil
}

// Initiate starts a new conversation cycle for a target: builds the
// campaign instructions and opening message, upserts the tracker at
// INITIATED with a one-entry log, and delivers the opening. A delivery
// failure is recorded on the turn, not retried.
func (e *Engine) Initiate(ctx context.Context, kind domain.CampaignKind, seed campaign.Seed) error {
	def, ok := campaign.ByKind(kind)
	if !ok {
		return newError(ErrorInvalidInput, "unknown_campaign", nil)
	}
	if strings.TrimSpace(seed.TargetIdentity) == "" {
		return newError(ErrorInvalidInput, "empty_target_identity", nil)
	}

	cfg, err := e.configs.Get(ctx, kind, seed.OrgID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newError(ErrorNotFound, "campaign_config_missing", err)
		}
		return newError(ErrorInternal, "config_load_error", err)
	}
	if seed.OrgName == "" {
		seed.OrgName = cfg.OrgName
	}
	if len(seed.Questions) == 0 {
		seed.Questions = cfg.PrimaryPrompts
	}

	opening := def.Opening(cfg, seed)
	ref, delivery := e.deliver(ctx, def, cfg, seed.TargetIdentity, opening.Subject, opening.Body, &opening)

	tracker := &domain.Tracker{
		Campaign:       kind,
		OrgID:          seed.OrgID,
		TargetIdentity: seed.TargetIdentity,
		ExternalRef:    seed.Ref,
		Instructions:   def.Instructions(seed),
		Log: []domain.Turn{{
			Sender:    domain.SenderSystem,
			Message:   opening.Body,
			Timestamp: e.now().UTC(),
			Delivery:  delivery,
		}},
		MessageCount: 1,
		Status:       domain.StatusInitiated,
	}
	if _, err := e.trackers.Upsert(ctx, tracker); err != nil {
		return newError(ErrorInternal, "tracker_upsert_error", err)
	}

	// Interview campaigns tell the platform an invitation went out.
	if delivery == domain.DeliverySent && cfg.StatusWhenSent != 0 && seed.Ref.ApplicationID != 0 {
		row := &repository.OutboxRow{
			Campaign:      string(kind),
			OrgID:         seed.OrgID,
			TrackerID:     tracker.ID,
			ApplicationID: seed.Ref.ApplicationID,
			StatusID:      cfg.StatusWhenSent,
		}
		if err := e.outbox.Create(ctx, row); err != nil {
			return newError(ErrorInternal, "outbox_write_error", err)
		}
	}

	e.log.Info("conversation initiated",
		"campaign", kind, "target", seed.TargetIdentity, "delivery", delivery, "ref", ref)
	return nil
}

// ProcessInbound takes one inbound message from a target: appends it,
// generates the reply, appends that too, and when the reply carries a
// decision, completes the tracker and records the pending external status
// update in the same transaction. The follow-up reply is always sent,
// completed or not. orgID zero means the channel carries no organization
// token and the tracker is resolved by identity alone.
func (e *Engine) ProcessInbound(ctx context.Context, kind domain.CampaignKind, orgID int64, identity, message string) error {
	def, ok := campaign.ByKind(kind)
	if !ok {
		return newError(ErrorInvalidInput, "unknown_campaign", nil)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return newError(ErrorInvalidInput, "empty_message", nil)
	}

	tracker, err := e.loadTracker(ctx, kind, orgID, identity)
	if err != nil {
		return err
	}
	if tracker == nil {
		return newError(ErrorNotFound, "tracker_missing", nil)
	}
	if tracker.Completed() {
		// Terminal until the eligibility gate resets it; a late reply does
		// not reopen a decided conversation.
		e.log.Info("ignoring inbound for completed tracker", "campaign", kind, "target", identity)
		return nil
	}

	cfg, err := e.configs.Get(ctx, kind, tracker.OrgID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newError(ErrorNotFound, "campaign_config_missing", err)
		}
		return newError(ErrorInternal, "config_load_error", err)
	}

	if tracker.Status != domain.StatusInProgress {
		if !tracker.Status.CanTransition(domain.StatusInProgress) {
			return newError(ErrorConflict, "invalid_status_transition", nil)
		}
		tracker.Status = domain.StatusInProgress
	}

	history := append([]domain.Turn(nil), tracker.Log...)
	inboundTurn := domain.Turn{
		Sender:    domain.SenderTarget,
		Message:   message,
		Timestamp: e.now().UTC(),
	}
	if err := e.appendWithRetry(ctx, tracker, inboundTurn); err != nil {
		return err
	}

	reply := e.responder.Respond(ctx, tracker.Instructions, history, message, def.Fallback, def.Tags)

	subject := ""
	if def.ReplySubject != nil {
		subject = def.ReplySubject(tracker.OrgID)
	}
	ref, delivery := e.deliver(ctx, def, cfg, identity, subject, reply.Text, nil)

	outboundTurn := domain.Turn{
		Sender:    domain.SenderSystem,
		Message:   reply.Text,
		Timestamp: e.now().UTC(),
		Delivery:  delivery,
	}

	if reply.Decision == nil {
		if err := e.appendWithRetry(ctx, tracker, outboundTurn); err != nil {
			return err
		}
		e.log.Info("conversation continues",
			"campaign", kind, "target", identity, "messages", tracker.MessageCount, "ref", ref)
		return nil
	}

	var row *repository.OutboxRow
	if statusID, ok := def.StatusForDecision(cfg, *reply.Decision); ok && tracker.ExternalRef.ApplicationID != 0 {
		row = &repository.OutboxRow{
			Campaign:      string(kind),
			OrgID:         tracker.OrgID,
			ApplicationID: tracker.ExternalRef.ApplicationID,
			StatusID:      statusID,
		}
	}
	if err := e.trackers.Complete(ctx, tracker, outboundTurn, *reply.Decision, row); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return newError(ErrorConflict, "tracker_version_conflict", err)
		}
		return newError(ErrorInternal, "tracker_complete_error", err)
	}

	e.log.Info("conversation completed",
		"campaign", kind, "target", identity, "decision", *reply.Decision)
	return nil
}

func (e *Engine) loadTracker(ctx context.Context, kind domain.CampaignKind, orgID int64, identity string) (*domain.Tracker, error) {
	var (
		tracker *domain.Tracker
		err     error
	)
	if orgID != 0 {
		tracker, err = e.trackers.GetOrNone(ctx, kind, orgID, identity)
	} else {
		tracker, err = e.trackers.FindActive(ctx, kind, identity)
	}
	if err != nil {
		return nil, newError(ErrorInternal, "tracker_load_error", err)
	}
	return tracker, nil
}

// appendWithRetry retries a lost version race once with a fresh read. The
// per-identity queue partition should make conflicts rare; this covers
// out-of-band writers.
func (e *Engine) appendWithRetry(ctx context.Context, t *domain.Tracker, turn domain.Turn) error {
	err := e.trackers.AppendTurn(ctx, t, turn)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrVersionConflict) {
		return newError(ErrorInternal, "tracker_append_error", err)
	}

	fresh, loadErr := e.trackers.GetOrNone(ctx, t.Campaign, t.OrgID, t.TargetIdentity)
	if loadErr != nil || fresh == nil {
		return newError(ErrorConflict, "tracker_version_conflict", err)
	}
	if t.Status == domain.StatusInProgress && fresh.Status == domain.StatusInitiated {
		fresh.Status = domain.StatusInProgress
	}
	*t = *fresh
	// Drop the failed in-memory append; AppendTurn re-applies it.
	if err := e.trackers.AppendTurn(ctx, t, turn); err != nil {
		return newError(ErrorConflict, "tracker_version_conflict", err)
	}
	return nil
}

// deliver sends one outbound message over the campaign's channel and
// reports the delivery outcome. Transport errors are logged and recorded,
// never retried here.
func (e *Engine) deliver(ctx context.Context, def campaign.Definition, cfg domain.CampaignConfig, identity, subject, body string, opening *campaign.Opening) (string, string) {
	var (
		ref string
		err error
	)
	switch def.Channel {
	case domain.ChannelEmail:
		ref, err = e.email.Send(ctx, cfg.SenderEmail, identity, subject, body)
	case domain.ChannelSMS:
		ref, err = e.messenger.SendSMS(ctx, cfg.SenderPhone, identity, body)
	case domain.ChannelWhatsApp:
		if opening != nil && opening.TemplateSID != "" {
			ref, err = e.messenger.SendWhatsAppTemplate(ctx, cfg.SenderPhone, identity, opening.TemplateSID, opening.TemplateVars)
		} else {
			ref, err = e.messenger.SendWhatsApp(ctx, cfg.SenderPhone, identity, body)
		}
	default:
		err = errors.New("usecase: unsupported channel " + string(def.Channel))
	}
	if err != nil {
		e.log.Error("outbound delivery failed", "campaign", def.Kind, "target", identity, "err", err)
		return "", domain.DeliveryFailed
	}
	return ref, domain.DeliverySent
}
