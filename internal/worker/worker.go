// Package worker drains the job queue: it promotes scheduled jobs, leases
// ready partitions, and dispatches each job to the conversation engine or
// the bulk scanner.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"recruit-agent/internal/campaign"
	"recruit-agent/internal/domain"
	"recruit-agent/internal/queue"
	"recruit-agent/internal/usecase"
)

const defaultPollInterval = time.Second

// JobQueue is the queue surface the worker consumes.
type JobQueue interface {
	PromoteDue(ctx context.Context) (int, error)
	ReadyPartitions(ctx context.Context) ([]string, error)
	Lease(ctx context.Context, partition string) (func(), bool, error)
	Pop(ctx context.Context, partition string) (*queue.Job, error)
}

// ConversationEngine handles initiate and inbound jobs.
type ConversationEngine interface {
	Initiate(ctx context.Context, kind domain.CampaignKind, seed campaign.Seed) error
	ProcessInbound(ctx context.Context, kind domain.CampaignKind, orgID int64, identity, message string) error
}

// CampaignScanner handles scan jobs.
type CampaignScanner interface {
	Scan(ctx context.Context, kind domain.CampaignKind) error
}

// OutboxDrainer propagates pending decision side effects.
type OutboxDrainer interface {
	Drain(ctx context.Context) (int, error)
}

// Worker is the long-running queue consumer.
type Worker struct {
	queue   JobQueue
	engine  ConversationEngine
	scanner CampaignScanner
	drainer OutboxDrainer
	log     *slog.Logger
	poll    time.Duration
}

// New creates a Worker.
func New(q JobQueue, engine ConversationEngine, scanner CampaignScanner, drainer OutboxDrainer, log *slog.Logger) (*Worker, error) {
	if q == nil {
		return nil, errors.New("worker: queue must not be nil")
	}
	if engine == nil {
		return nil, errors.New("worker: engine must not be nil")
	}
	if scanner == nil {
		return nil, errors.New("worker: scanner must not be nil")
	}
	if drainer == nil {
		return nil, errors.New("worker: drainer must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		queue:   q,
		engine:  engine,
		scanner: scanner,
		drainer: drainer,
		log:     log,
		poll:    defaultPollInterval,
	}, nil
}

// Run loops until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one pass: promote due scheduled jobs, drain every leasable
// partition, then push due outbox rows.
func (w *Worker) Tick(ctx context.Context) {
	if _, err := w.queue.PromoteDue(ctx); err != nil {
		w.log.Error("promote scheduled jobs failed", "err", err)
	}

	partitions, err := w.queue.ReadyPartitions(ctx)
	if err != nil {
		w.log.Error("list ready partitions failed", "err", err)
		return
	}
	for _, partition := range partitions {
		w.drainPartition(ctx, partition)
	}

	if _, err := w.drainer.Drain(ctx); err != nil {
		w.log.Error("outbox drain failed", "err", err)
	}
}

// drainPartition empties one partition under its lease. Another worker
// holding the lease is not an error; the partition stays ready.
func (w *Worker) drainPartition(ctx context.Context, partition string) {
	release, ok, err := w.queue.Lease(ctx, partition)
	if err != nil {
		w.log.Error("lease partition failed", "partition", partition, "err", err)
		return
	}
	if !ok {
		return
	}
	defer release()

	for {
		job, err := w.queue.Pop(ctx, partition)
		if err != nil {
			w.log.Error("pop job failed", "partition", partition, "err", err)
			return
		}
		if job == nil {
			return
		}
		if err := w.handle(ctx, *job); err != nil {
			// The email webhook queues an inbound job per email campaign, so
			// one of the pair routinely finds no conversation.
			var uerr *usecase.Error
			if errors.As(err, &uerr) && uerr.Code == usecase.ErrorNotFound {
				w.log.Info("job skipped", "job", job.ID, "kind", job.Kind, "partition", partition, "reason", uerr.Reason)
				continue
			}
			// The job is already consumed; per-identity ordering matters more
			// than redelivery, so failures are logged and the partition moves
			// on.
			w.log.Error("job failed", "job", job.ID, "kind", job.Kind, "partition", partition, "err", err)
		}
	}
}

func (w *Worker) handle(ctx context.Context, job queue.Job) error {
	switch job.Kind {
	case queue.KindInitiate:
		var payload usecase.InitiatePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return errors.New("worker: malformed initiate payload: " + err.Error())
		}
		return w.engine.Initiate(ctx, payload.Campaign, payload.Seed)
	case queue.KindInbound:
		var payload usecase.InboundPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return errors.New("worker: malformed inbound payload: " + err.Error())
		}
		return w.engine.ProcessInbound(ctx, payload.Campaign, payload.OrgID, payload.Identity, payload.Message)
	case queue.KindScan:
		var payload usecase.ScanPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return errors.New("worker: malformed scan payload: " + err.Error())
		}
		return w.scanner.Scan(ctx, payload.Campaign)
	default:
		return errors.New("worker: unknown job kind " + job.Kind)
	}
}
