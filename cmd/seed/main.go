package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"listing-assistant/internal/config"
	"listing-assistant/internal/domain/model"
	"listing-assistant/internal/domain/ports/repository"
	"listing-assistant/internal/infra/api"
	pg "listing-assistant/internal/infra/db/postgres"
	"listing-assistant/internal/infra/logging"
	"listing-assistant/internal/usecase"
)

// Seeds the plan catalog and, optionally, a demo user with a trial and a
// session token for manual end-to-end testing.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	demoUser := flag.String("demo-user", "", "user id to provision with a trial and print a session token for")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.Connect(ctx, cfg.Database, logger)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, logger); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	planRepo := pg.NewPlanRepo(pool)
	seed := []struct {
		ID      string
		Name    string
		Days    int
		Credits int64
		Cents   int64
	}{
		{"plan-pro", "Pro", 30, 100, 1700},
	}
	for _, s := range seed {
		p, err := model.NewSubscriptionPlan(s.ID, s.Name, s.Days, s.Credits, s.Cents)
		if err != nil {
			log.Fatalf("plan %q: %v", s.Name, err)
		}
		if err := planRepo.Save(ctx, repository.NoTX, p); err != nil {
			log.Fatalf("save plan %q: %v", s.Name, err)
		}
		fmt.Printf("seeded: %s (id=%s, days=%d, credits=%d, price=%d cents)\n", p.Name, p.ID, p.PeriodDays, p.CreditsIncluded, p.PriceCents)
	}

	if *demoUser == "" {
		fmt.Println("Seeding complete.")
		return
	}

	creditRepo := pg.NewCreditRepo(pool)
	tm := pg.NewTxManager(pool)
	locker := pg.NewAdvisoryLocker()
	creditUC := usecase.NewCreditUseCase(creditRepo, pg.NewUsageRepo(pool), locker, tm, logger)
	onboard := usecase.NewOnboardingUseCase(creditRepo, creditUC, locker, tm,
		usecase.TrialPolicy{Credits: cfg.Trial.Credits, Days: cfg.Trial.Days}, logger)

	granted, err := onboard.EnsureTrial(ctx, *demoUser)
	if err != nil {
		log.Fatalf("trial for %s: %v", *demoUser, err)
	}
	fmt.Printf("demo user %s: trial granted=%t\n", *demoUser, granted)

	if cfg.Auth.HMACSecret == "" {
		fmt.Printf("auth.hmac_secret not set; use header %s: %s with -dev\n", api.DevUserHeader, *demoUser)
		return
	}
	tok, err := api.NewSessionAuth(cfg.Auth, false).Mint(*demoUser, "", 24*time.Hour)
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}
	fmt.Printf("session token (24h): %s\n", tok)
}
