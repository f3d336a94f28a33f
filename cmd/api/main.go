package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Jeffreasy/tenantcore/internal/audit"
	"github.com/Jeffreasy/tenantcore/internal/auth"
	"github.com/Jeffreasy/tenantcore/internal/cache"
	"github.com/Jeffreasy/tenantcore/internal/config"
	"github.com/Jeffreasy/tenantcore/internal/crypto"
	"github.com/Jeffreasy/tenantcore/internal/httpguard"
	"github.com/Jeffreasy/tenantcore/internal/messaging"
	"github.com/Jeffreasy/tenantcore/internal/notify"
	"github.com/Jeffreasy/tenantcore/internal/ratelimit"
	"github.com/Jeffreasy/tenantcore/internal/storage"
	"github.com/Jeffreasy/tenantcore/pkg/logger"
	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// main wires the identity and messaging services together and serves a
// minimal liveness surface. The wire-protocol HTTP routing the teacher's
// internal/api implements is out of narrative scope (see SPEC_FULL.md §12);
// what matters here is that every service is constructed the way a real
// deployment would construct it.
func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	log := logger.Setup(env)
	log.Info("application_startup", "env", env)

	if sentryDSN := os.Getenv("SENTRY_DSN"); sentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              sentryDSN,
			TracesSampleRate: 1.0,
			Environment:      env,
		}); err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry_initialized")
		}
	} else {
		log.Warn("sentry_dsn_missing", "details", "skipping_init")
	}

	cfg := config.Load()

	ctx := context.Background()
	pool, err := storage.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Error("database_pool_create_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Error("database_ping_failed", "error", err)
		os.Exit(1)
	}
	log.Info("database_connected")

	redisClient, err := cache.NewClient(ctx, cache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		log.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info("redis_connected", "addr", cfg.RedisAddr)

	if cfg.JWTPrivateKeyPEM == "" {
		if env == "production" {
			log.Error("jwt_private_key_missing", "details", "fatal_in_production")
			os.Exit(1)
		}
		log.Warn("jwt_private_key_missing", "details", "dev_mode_unsafe")
	}

	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKeyHex)
	if err != nil {
		log.Error("encryptor_init_failed", "error", err)
		os.Exit(1)
	}

	hasher := auth.NewBcryptHasher()
	tokenProvider := auth.NewJWTProvider(cfg.JWTPrivateKeyPEM, cfg.JWTIssuer, cfg.JWTAudience)
	auditLogger := audit.Multi{audit.NewPostgresLogger(pool, log), audit.NewJSONAuditLogger()}
	mailer := &notify.DevMailer{Logger: log}

	authConfig := auth.Config{
		AllowPublicRegistration: cfg.AllowPublicRegistration,
		DefaultAppURL:           cfg.DefaultAppURL,
	}
	// Command/query routing for authService and messagingService is out of
	// narrative scope for this binary; both are constructed here the way a
	// real deployment would wire them for a future transport layer.
	_ = auth.NewService(authConfig, pool, hasher, tokenProvider, auditLogger, mailer)

	limiter := ratelimit.NewLimiter(redisClient)
	providerClient := messaging.NoopProviderClient{Logger: log}
	_ = messaging.NewService(pool, encryptor, limiter, redisClient, providerClient, auditLogger)

	ipGuard := httpguard.NewIPRateLimiter(10, 20)

	mux := http.NewServeMux()
	mux.Handle("/healthz", ipGuard.Middleware(healthHandler(pool, log)))
	mux.Handle("/.well-known/jwks.json", ipGuard.Middleware(jwksHandler(tokenProvider, log)))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server_listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server_startup_failed", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		log.Info("shutdown_signal_received", "signal", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful_shutdown_failed", "error", err)
			if err := srv.Close(); err != nil {
				log.Error("server_force_close_failed", "error", err)
			}
		}
		log.Info("server_shutdown_complete")
	}
}

func jwksHandler(tokens *auth.JWTProvider, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := tokens.GetJWKS()
		if err != nil {
			log.Error("jwks_export_failed", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jwks)
	}
}

func healthHandler(pool *pgxpool.Pool, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			log.Error("health_check_failed", "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}
}
