package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"listing-assistant/internal/domain"
	"listing-assistant/internal/infra/logging"
)

const (
	msgRetry   = "Something went wrong, please try again"
	msgUpgrade = "You have used all your credits. Upgrade to continue."
)

type errorBody struct {
	Error   string `json:"error"`
	Upgrade bool   `json:"upgrade,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Bodies carry only
// messages meant for end users.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *domain.ProviderError
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
	case errors.Is(err, domain.ErrUpgradeRequired), errors.Is(err, domain.ErrInsufficientCredits):
		writeJSON(w, http.StatusPaymentRequired, errorBody{Error: msgUpgrade, Upgrade: true})
	case errors.Is(err, domain.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "Too many requests, slow down"})
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidCreditType),
		errors.Is(err, domain.ErrInvalidAction):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoActiveSubscription):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	case errors.As(err, &pe):
		logging.With(r.Context(), s.log).Warn().Err(err).Str("provider", pe.Provider).Msg("provider failure")
		msg := pe.Message
		if pe.Status == 0 {
			msg = "The provider is unavailable, please try again"
		}
		writeJSON(w, http.StatusBadGateway, errorBody{Error: msg})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: "Request timed out, please try again"})
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: msgRetry})
	}
}
