// Command webhookd serves the Stripe webhook endpoint that keeps premium
// entitlements on user-directory records in sync with payment events.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sourcebox-llc/entitlements/pkg/api"
	"github.com/sourcebox-llc/entitlements/pkg/billing"
	zlog "github.com/sourcebox-llc/entitlements/pkg/billing/logger/zerolog"
	prommetrics "github.com/sourcebox-llc/entitlements/pkg/billing/metrics/prometheus"
	stripeprovider "github.com/sourcebox-llc/entitlements/pkg/billing/stripe"
	"github.com/sourcebox-llc/entitlements/pkg/directory"
	"github.com/sourcebox-llc/entitlements/storage/memory"
	pgstore "github.com/sourcebox-llc/entitlements/storage/postgres"
	redisstore "github.com/sourcebox-llc/entitlements/storage/redis"
)

type config struct {
	ListenAddr          string
	StripeAPIKey        string
	StripeWebhookSecret string
	UserAPIURL          string
	UserAPIToken        string
	RedisAddr           string
	PostgresDSN         string
}

// loadConfig reads configuration from the environment. A missing webhook
// signing secret or directory base URL is startup-fatal.
func loadConfig() (config, error) {
	cfg := config{
		ListenAddr:          os.Getenv("LISTEN_ADDR"),
		StripeAPIKey:        os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		UserAPIURL:          os.Getenv("USER_API_URL"),
		UserAPIToken:        os.Getenv("USER_API_TOKEN"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		PostgresDSN:         os.Getenv("POSTGRES_DSN"),
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.StripeWebhookSecret == "" {
		return cfg, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}
	if cfg.UserAPIURL == "" {
		return cfg, fmt.Errorf("USER_API_URL is required")
	}
	return cfg, nil
}

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "webhookd").Logger()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	dir, err := directory.NewClient(directory.Config{
		BaseURL:   cfg.UserAPIURL,
		AuthToken: cfg.UserAPIToken,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create directory client")
	}

	events, err := newEventStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create event store")
	}

	metrics := prommetrics.NewMetrics(prometheus.DefaultRegisterer, "sourcebox")

	provider, err := stripeprovider.NewProvider(stripeprovider.Config{
		Config: billing.Config{
			Directory: dir,
			Events:    events,
			Logger:    zlog.NewLogger(logger),
			Metrics:   metrics,
		},
		StripeAPIKey:        cfg.StripeAPIKey,
		StripeWebhookSecret: cfg.StripeWebhookSecret,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create stripe provider")
	}

	// The billing API trusts the X-User-ID header set by the fronting proxy
	// after it has authenticated the session.
	billingAPI, err := api.NewHandler(api.Config{
		Billing:   provider,
		GetUserID: api.FromHeader("X-User-ID"),
		Logger:    zlog.NewLogger(logger),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create billing api handler")
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Method(http.MethodPost, "/stripe/webhook", provider.WebhookHandler())
	router.Post("/billing/checkout", billingAPI.CreateCheckout)
	router.Post("/billing/cancel", billingAPI.CancelSubscription)
	router.Post("/billing/sync", billingAPI.SyncEntitlement)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// newEventStore picks the webhook dedup backend: Postgres when a DSN is
// configured, then Redis, otherwise in-process memory.
func newEventStore(cfg config, logger zerolog.Logger) (billing.EventStore, error) {
	if cfg.PostgresDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pgConfig := pgstore.DefaultConfig()
		pgConfig.ConnectionString = cfg.PostgresDSN
		store, err := pgstore.New(ctx, pgConfig)
		if err != nil {
			return nil, fmt.Errorf("postgres event store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("postgres event store schema: %w", err)
		}
		logger.Info().Msg("using postgres event dedup store")
		return store, nil
	}

	if cfg.RedisAddr == "" {
		logger.Info().Msg("using in-memory event dedup store")
		return memory.New(), nil
	}

	client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis at %s unreachable: %w", cfg.RedisAddr, err)
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("using redis event dedup store")
	return redisstore.New(client, redisstore.DefaultConfig())
}
