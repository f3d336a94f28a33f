package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Jeffreasy/tenantcore/internal/audit"
	"github.com/Jeffreasy/tenantcore/internal/cache"
	"github.com/Jeffreasy/tenantcore/internal/config"
	"github.com/Jeffreasy/tenantcore/internal/crypto"
	"github.com/Jeffreasy/tenantcore/internal/messaging"
	"github.com/Jeffreasy/tenantcore/internal/outbox"
	"github.com/Jeffreasy/tenantcore/internal/ratelimit"
	"github.com/Jeffreasy/tenantcore/internal/storage"
	"github.com/Jeffreasy/tenantcore/pkg/logger"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// main runs the transactional outbox's polling worker: it leases due rows
// with FOR UPDATE SKIP LOCKED, hands each to the handler below, and
// reschedules failures with exponential backoff.
func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	log := logger.Setup(env)
	log.Info("outbox_worker_startup", "env", env)

	cfg := config.Load()

	ctx := context.Background()

	pool, err := storage.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Error("database_pool_create_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.NewClient(ctx, cache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		log.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKeyHex)
	if err != nil {
		log.Error("encryptor_init_failed", "error", err)
		os.Exit(1)
	}

	auditLogger := audit.Multi{audit.NewPostgresLogger(pool, log), audit.NewJSONAuditLogger()}
	limiter := ratelimit.NewLimiter(redisClient)
	providerClient := messaging.NoopProviderClient{Logger: log}
	messagingSvc := messaging.NewService(pool, encryptor, limiter, redisClient, providerClient, auditLogger)

	worker := outbox.NewWorker(pool, dispatchEvent(log, messagingSvc), log, cfg.OutboxPollInterval)

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-quit
		log.Info("shutdown_signal_received", "signal", sig)
		cancel()
	}()

	worker.Run(workerCtx)
}

// dispatchEvent builds the outbox.Handler. A messaging.message_send_requested
// event (spec §4.10 step 7) is routed to messaging.Service.DispatchQueuedMessage,
// the one event type with a concrete downstream consumer; every other event
// type currently raised (user.*, auth.*) is fire-and-forget logged — wiring
// a consumer for those is future work, not a gap in the outbox itself.
func dispatchEvent(log *slog.Logger, messagingSvc *messaging.Service) outbox.Handler {
	return func(ctx context.Context, row outbox.Row) error {
		if row.EventType == "messaging.message_send_requested" {
			return dispatchMessageSend(ctx, messagingSvc, row)
		}

		log.Info("outbox event dispatched",
			"event_id", row.ID,
			"event_type", row.EventType,
			"aggregate_type", row.AggregateType,
			"aggregate_id", row.AggregateID,
			"attempts", row.Attempts,
		)
		return nil
	}
}

// dispatchMessageSend decodes the event payload for its organization_id
// (outbox.Row itself carries no tenant context) and hands off to
// DispatchQueuedMessage. finalAttempt comes from the outbox row's own
// attempt counter, so the message only transitions to failed once the
// worker is about to park the row for good.
func dispatchMessageSend(ctx context.Context, svc *messaging.Service, row outbox.Row) error {
	var payload struct {
		OrganizationID uuid.UUID
	}
	if err := json.Unmarshal(row.Payload, &payload); err != nil {
		return fmt.Errorf("outbox: decode message.send_requested payload: %w", err)
	}

	finalAttempt := row.Attempts+1 >= outbox.MaxAttempts
	return svc.DispatchQueuedMessage(ctx, payload.OrganizationID, row.AggregateID, finalAttempt)
}
