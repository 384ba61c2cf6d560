package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"recruit-agent/internal/config"
	"recruit-agent/internal/convo"
	"recruit-agent/internal/domain"
	"recruit-agent/internal/integrations/openai"
	"recruit-agent/internal/integrations/paramstore"
	"recruit-agent/internal/integrations/platform"
	"recruit-agent/internal/integrations/sendgrid"
	"recruit-agent/internal/integrations/twilio"
	"recruit-agent/internal/outbox"
	"recruit-agent/internal/queue"
	"recruit-agent/internal/repository"
	"recruit-agent/internal/usecase"
	"recruit-agent/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load(envOrDefault("CONFIG_PATH", "configs/default.yaml"))
	if err != nil {
		log.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Error("failed to connect to postgres", "err", err)
		os.Exit(1)
	}
	if err := repository.AutoMigrate(db); err != nil {
		log.Error("failed to migrate schema", "err", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("failed to parse redis url", "err", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	jobs, err := queue.New(rdb)
	if err != nil {
		log.Error("failed to create queue", "err", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}
	secrets, err := paramstore.New(awsssm.NewFromConfig(awsCfg), cfg.ParamPrefix)
	if err != nil {
		log.Error("failed to create paramstore client", "err", err)
		os.Exit(1)
	}

	openaiClient, err := openai.NewClient(secrets, cfg.OpenAISecretName)
	if err != nil {
		log.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}
	responder, err := convo.NewResponder(openaiClient, cfg.OpenAIModel, log)
	if err != nil {
		log.Error("failed to create responder", "err", err)
		os.Exit(1)
	}
	emailClient, err := sendgrid.NewClient(secrets, cfg.SendGridSecret)
	if err != nil {
		log.Error("failed to create SendGrid client", "err", err)
		os.Exit(1)
	}
	messenger, err := twilio.NewClient(secrets, cfg.TwilioAccountSID, cfg.TwilioSecretName)
	if err != nil {
		log.Error("failed to create Twilio client", "err", err)
		os.Exit(1)
	}

	trackers, err := repository.NewTrackerStore(db)
	if err != nil {
		log.Error("failed to create tracker store", "err", err)
		os.Exit(1)
	}
	configs, err := repository.NewConfigStore(db)
	if err != nil {
		log.Error("failed to create config store", "err", err)
		os.Exit(1)
	}
	outboxStore, err := repository.NewOutboxStore(db)
	if err != nil {
		log.Error("failed to create outbox store", "err", err)
		os.Exit(1)
	}

	engine, err := usecase.NewEngine(trackers, configs, responder, emailClient, messenger, outboxStore, log)
	if err != nil {
		log.Error("failed to create engine", "err", err)
		os.Exit(1)
	}

	// Platform clients carry per-organization oauth2 credentials, so both
	// the scanner and the drainer build them on demand.
	newPlatform := func(ctx context.Context, orgID int64) (*platform.Client, error) {
		creds, err := platform.LoadCredentials(ctx, secrets, orgID, cfg.PlatformTokenURL)
		if err != nil {
			return nil, err
		}
		return platform.NewClient(ctx, cfg.PlatformBaseURL, creds)
	}

	scanner, err := usecase.NewScanner(configs, trackers, jobs,
		func(ctx context.Context, orgID int64) (usecase.PlatformAPI, error) {
			return newPlatform(ctx, orgID)
		}, log)
	if err != nil {
		log.Error("failed to create scanner", "err", err)
		os.Exit(1)
	}

	drainer, err := outbox.NewDrainer(outboxStore,
		func(ctx context.Context, orgID int64) (outbox.StatusUpdater, error) {
			return newPlatform(ctx, orgID)
		}, log)
	if err != nil {
		log.Error("failed to create outbox drainer", "err", err)
		os.Exit(1)
	}

	w, err := worker.New(jobs, engine, scanner, drainer, log)
	if err != nil {
		log.Error("failed to create worker", "err", err)
		os.Exit(1)
	}

	go scheduleScans(ctx, jobs, cfg.ScanInterval, log)

	log.Info("worker started", "poll", cfg.WorkerPoll, "scan_interval", cfg.ScanInterval)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker stopped", "err", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}

// scheduleScans enqueues the periodic bulk eligibility scans for the email
// campaigns.
func scheduleScans(ctx context.Context, jobs *queue.Queue, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, kind := range []domain.CampaignKind{domain.CampaignGDPREmail, domain.CampaignAWREmail} {
				job, err := queue.NewJob(queue.KindScan, "scan:"+string(kind), usecase.ScanPayload{Campaign: kind})
				if err != nil {
					log.Error("failed to build scan job", "campaign", kind, "err", err)
					continue
				}
				if err := jobs.Enqueue(ctx, job); err != nil {
					log.Error("failed to enqueue scan job", "campaign", kind, "err", err)
				}
			}
		}
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
