// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"listing-assistant/internal/config"
	"listing-assistant/internal/domain/ports/adapter"
	"listing-assistant/internal/domain/ports/repository"
	aiAdapters "listing-assistant/internal/infra/adapters/ai"
	imgAdapters "listing-assistant/internal/infra/adapters/image"
	"listing-assistant/internal/infra/api"
	pg "listing-assistant/internal/infra/db/postgres"
	"listing-assistant/internal/infra/logging"
	"listing-assistant/internal/infra/metrics"
	red "listing-assistant/internal/infra/redis"
	"listing-assistant/internal/infra/sched"
	"listing-assistant/internal/usecase"

	"github.com/rs/zerolog"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop providers, X-Dev-User sessions)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	cfg.Runtime.Version, cfg.Runtime.Commit = version, commit

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if cfg.Database.MigrateOnStart {
		if err := pg.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
	}

	// ---- Redis (optional) ----
	var (
		limiter api.Limiter
		gate    sched.Gate
	)
	var planRepo repository.PlanRepository = pg.NewPlanRepo(pool)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient, cfg.RateLimit.PerMinute, time.Minute)
		gate = red.NewSingleton(redisClient, "expiry-sweep", cfg.Scheduler.ExpiryInterval/2)
		planRepo = pg.NewPlanRepoCacheDecorator(planRepo, redisClient, cfg.Redis.TTL, logger)
	} else {
		logger.Warn().Msg("redis.url not set; rate limiting and plan cache disabled")
	}

	// ---- Repositories ----
	creditRepo := pg.NewCreditRepo(pool)
	usageRepo := pg.NewUsageRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	tm := pg.NewTxManager(pool)
	locker := pg.NewAdvisoryLocker()

	// ---- Use cases ----
	creditUC := usecase.NewCreditUseCase(creditRepo, usageRepo, locker, tm, logger)
	entUC := usecase.NewEntitlementUseCase(subRepo, creditRepo, logger)
	usageUC := usecase.NewUsageUseCase(creditRepo, usageRepo, subRepo, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, planRepo, creditUC, locker, tm, logger)
	onboardUC := usecase.NewOnboardingUseCase(creditRepo, creditUC, locker, tm,
		usecase.TrialPolicy{Credits: cfg.Trial.Credits, Days: cfg.Trial.Days}, logger)

	text, err := buildTextGenerator(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("text provider")
	}
	images, err := buildBackgroundRemover(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("image provider")
	}
	listingUC := usecase.NewListingUseCase(entUC, creditUC, text, images, logger)

	// ---- HTTP ----
	srv := api.NewServer(api.Deps{
		Identity:       api.NewSessionAuth(cfg.Auth, cfg.Runtime.Dev),
		Entitlement:    entUC,
		Credits:        creditUC,
		Usage:          usageUC,
		Subscriptions:  subUC,
		Onboarding:     onboardUC,
		Listing:        listingUC,
		Limiter:        limiter,
		Health:         pool.Ping,
		AdminKey:       cfg.Admin.APIKey,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MaxUploadBytes: cfg.Image.MaxUploadBytes,
	}, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Workers ----
	worker := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, subUC, gate, logger)
	go func() { _ = worker.Run(ctx) }()
	stats := sched.NewPoolStatsReporter(cfg.Scheduler.PoolStatsInterval, pg.PoolStats{Pool: pool}, logger)
	go func() { _ = stats.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}

// buildTextGenerator prefers Gemini and falls back to OpenAI. Dev mode
// without any key uses the noop generator.
func buildTextGenerator(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.TextGenerator, error) {
	var providers []adapter.TextGenerator
	if cfg.AI.GeminiKey != "" {
		g, err := aiAdapters.NewGeminiGenerator(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.GeminiModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		providers = append(providers, g)
	}
	if cfg.AI.OpenAIKey != "" {
		o, err := aiAdapters.NewOpenAIGenerator(cfg.AI.OpenAIKey, cfg.AI.OpenAIModel, "", cfg.AI.MaxOutputTokens, cfg.AI.MaxPromptTokens)
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		providers = append(providers, o)
	}
	if len(providers) == 0 {
		if !cfg.Runtime.Dev {
			return nil, errors.New("no text provider configured: set ai.gemini_key or ai.openai_key")
		}
		logger.Warn().Msg("no text provider configured; using noop generator")
		return aiAdapters.NewNoopGenerator(logger), nil
	}
	fb := aiAdapters.NewFallbackGenerator(logger, providers...)
	logger.Info().Str("providers", fb.Name()).Int("concurrency", cfg.AI.ConcurrentLimit).Msg("text provider ready")
	return aiAdapters.NewLimited(fb, cfg.AI.ConcurrentLimit), nil
}

func buildBackgroundRemover(cfg *config.Config, logger *zerolog.Logger) (adapter.BackgroundRemover, error) {
	if cfg.Image.RemoveBGKey == "" {
		if !cfg.Runtime.Dev {
			return nil, errors.New("image.removebg_key is required")
		}
		logger.Warn().Msg("no remove.bg key; images are echoed back unchanged")
		return imgAdapters.NoopRemover{}, nil
	}
	c, err := imgAdapters.NewRemoveBGClient(cfg.Image)
	if err != nil {
		return nil, fmt.Errorf("remove.bg: %w", err)
	}
	return c, nil
}
