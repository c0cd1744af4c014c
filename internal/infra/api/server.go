package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"listing-assistant/internal/domain/model"
	"listing-assistant/internal/domain/ports/adapter"
	ucport "listing-assistant/internal/domain/ports/usecase"
	"listing-assistant/internal/usecase"
)

// Limiter is the per-user action rate limiter.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Deps lists everything the HTTP surface calls into. Limiter and Health may be nil.
type Deps struct {
	Identity      adapter.IdentityProvider
	Entitlement   ucport.EntitlementResolver
	Credits       usecase.CreditUseCase
	Usage         usecase.UsageUseCase
	Subscriptions usecase.SubscriptionUseCase
	Onboarding    usecase.OnboardingUseCase
	Listing       usecase.ListingUseCase
	Limiter       Limiter
	Health        func(ctx context.Context) error

	AdminKey       string
	RequestTimeout time.Duration
	MaxUploadBytes int64
}

type Server struct {
	identity adapter.IdentityProvider
	ent      ucport.EntitlementResolver
	credits  usecase.CreditUseCase
	usage    usecase.UsageUseCase
	subs     usecase.SubscriptionUseCase
	onboard  usecase.OnboardingUseCase
	listing  usecase.ListingUseCase
	limiter  Limiter
	health   func(ctx context.Context) error

	adminKey  string
	timeout   time.Duration
	maxUpload int64
	log       *zerolog.Logger
}

func NewServer(d Deps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "api").Logger()
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 12 << 20
	}
	return &Server{
		identity:  d.Identity,
		ent:       d.Entitlement,
		credits:   d.Credits,
		usage:     d.Usage,
		subs:      d.Subscriptions,
		onboard:   d.Onboarding,
		listing:   d.Listing,
		limiter:   d.Limiter,
		health:    d.Health,
		adminKey:  d.AdminKey,
		timeout:   d.RequestTimeout,
		maxUpload: maxUpload,
		log:       &l,
	}
}

// Router builds the chi router with the full middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		Recover(s.log),
		TraceID(),
		RequestLog(s.log),
		Timeout(s.timeout),
	)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/plans", s.handlePlans)

		r.With(s.session(false)).Get("/check-subscription", s.handleCheckSubscription)

		r.Group(func(r chi.Router) {
			r.Use(s.session(true))
			r.Get("/entitlement", s.handleEntitlement)
			r.Get("/usage", s.handleUsage)
			r.With(s.rateLimited(string(model.ActionGenerateDescription))).
				Post("/increment-usage", s.handleIncrementUsage)
			r.With(s.rateLimited(string(model.ActionGenerateDescription))).
				Post("/generate-description", s.handleGenerateDescription)
			r.With(s.rateLimited(string(model.ActionRemoveBackground))).
				Post("/remove-bg", s.handleRemoveBackground)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Post("/credits", s.handleAdminGrant)
			r.Post("/subscriptions", s.handleAdminActivate)
			r.Delete("/subscriptions/{userID}", s.handleAdminCancel)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("UNAVAILABLE"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
