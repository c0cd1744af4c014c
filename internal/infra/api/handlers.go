package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"listing-assistant/internal/domain"
	"listing-assistant/internal/domain/model"
	"listing-assistant/internal/domain/ports/adapter"
	"listing-assistant/internal/infra/logging"
	"listing-assistant/internal/usecase"
)

// handleCheckSubscription is deliberately lenient: callers without a session
// get the free-tier answer instead of an error.
func (s *Server) handleCheckSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := userID(ctx)
	if uid == "" {
		writeJSON(w, http.StatusOK, map[string]any{"isSubscribed": false, "generationsUsed": 0})
		return
	}

	if _, err := s.onboard.EnsureTrial(ctx, uid); err != nil {
		logging.With(ctx, s.log).Warn().Err(err).Msg("trial provisioning failed")
	}

	ent := s.ent.Resolve(ctx, uid)
	used, err := s.usage.GenerationsUsed(ctx, uid)
	if err != nil {
		logging.With(ctx, s.log).Error().Err(err).Msg("check subscription failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to check subscription"})
		return
	}

	plan := "free"
	if ent.PlanName != nil && *ent.PlanName != "" {
		plan = *ent.PlanName
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"isSubscribed":    ent.HasAccess,
		"generationsUsed": used,
		"plan":            plan,
	})
}

func (s *Server) handleIncrementUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := userID(ctx)

	// subscriptions are not metered
	if s.ent.Resolve(ctx, uid).Unlimited() {
		used, err := s.usage.GenerationsUsed(ctx, uid)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "generationsUsed": used})
		return
	}

	res, err := s.credits.Consume(ctx, uid, model.ActionGenerateDescription, 1, map[string]any{"source": "increment-usage"})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"success":          false,
			"error":            msgUpgrade,
			"upgrade":          true,
			"remainingCredits": res.RemainingCredits,
		})
		return
	}
	used, err := s.usage.GenerationsUsed(ctx, uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"generationsUsed":  used,
		"remainingCredits": res.RemainingCredits,
	})
}

func (s *Server) handleGenerateDescription(w http.ResponseWriter, r *http.Request) {
	var in usecase.DescriptionInput
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	if err := dec.Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body"})
		return
	}

	desc, err := s.listing.GenerateDescription(r.Context(), userID(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "description": desc})
}

func (s *Server) handleRemoveBackground(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "Image is too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "No image file provided"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, fh, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "No image file provided"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.listing.RemoveBackground(r.Context(), userID(r.Context()), adapter.Image{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ct := out.ContentType
	if ct == "" {
		ct = "image/png"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"imageUrl": fmt.Sprintf("data:%s;base64,%s", ct, base64.StdEncoding.EncodeToString(out.Data)),
		"message":  "Background removed successfully",
	})
}

func (s *Server) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ent.Resolve(r.Context(), userID(r.Context())))
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	stats, err := s.usage.GetUsageStats(r.Context(), userID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type planView struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	CreditsIncluded int64  `json:"creditsIncluded"`
	PeriodDays      int    `json:"periodDays"`
	PriceCents      int64  `json:"priceCents"`
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.subs.ListPlans(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]planView, 0, len(plans))
	for _, p := range plans {
		out = append(out, planView{
			ID: p.ID, Name: p.Name, CreditsIncluded: p.CreditsIncluded,
			PeriodDays: p.PeriodDays, PriceCents: p.PriceCents,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

// ---- admin ----

type grantRequest struct {
	UserID      string     `json:"userId"`
	Type        string     `json:"type"`
	Amount      int64      `json:"amount"`
	Description *string    `json:"description,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	ProcessID   *string    `json:"processId,omitempty"`
}

type lotView struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Type      string     `json:"type"`
	Amount    int64      `json:"amount"`
	Used      int64      `json:"used"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (s *Server) handleAdminGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body"})
		return
	}
	t, err := model.ParseCreditType(strings.ToUpper(strings.TrimSpace(req.Type)))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lot, err := s.credits.Grant(r.Context(), req.UserID, t, req.Amount, model.GrantOptions{
		Description: req.Description,
		ExpiresAt:   req.ExpiresAt,
		ProcessID:   req.ProcessID,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		writeJSON(w, http.StatusConflict, errorBody{Error: "Grant already recorded for this process id"})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lotView{
		ID: lot.ID, UserID: lot.UserID, Type: string(lot.Type), Amount: lot.Amount,
		Used: lot.Used, ExpiresAt: lot.ExpiresAt, CreatedAt: lot.CreatedAt,
	})
}

type activateRequest struct {
	UserID string `json:"userId"`
	PlanID string `json:"planId"`
}

func (s *Server) handleAdminActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body"})
		return
	}
	sub, err := s.subs.Activate(r.Context(), req.UserID, req.PlanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.SubscriptionView{
		PlanName:         sub.PlanName(),
		Status:           string(sub.Status),
		CreditsIncluded:  planCredits(sub),
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	})
}

func (s *Server) handleAdminCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.subs.Cancel(r.Context(), chi.URLParam(r, "userID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func planCredits(sub *model.UserSubscription) int64 {
	if sub.Plan == nil {
		return 0
	}
	return sub.Plan.CreditsIncluded
}
