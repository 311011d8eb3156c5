package handler

import (
	"net/http"

	"github.com/slanderboard/internal/domain"
	"github.com/slanderboard/internal/identity"
)

type itemsResponse struct {
	Items []domain.ScoredItem `json:"items"`
}

// GetLeaderboard returns the leaderboard for ?period= (default week when the
// parameter is absent) and an optional ?league=. A parameter that is present
// but empty is invalid.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := domain.LeaderboardQuery{
		Period: domain.DefaultPeriod,
		League: domain.League(params.Get("league")),
	}
	if params.Has("period") {
		q.Period = domain.Period(params.Get("period"))
	}
	if err := h.Validator.Struct(q); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if params.Has("league") && q.League == "" {
		h.writeFailure(w, r, domain.NewValidationError("league", "must not be empty"))
		return
	}

	session := identity.SessionFromContext(r.Context())
	items, err := h.Leaderboard.Get(r.Context(), q, session.UserID())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if items == nil {
		items = []domain.ScoredItem{}
	}

	h.Metrics.LeaderboardServed(len(items))
	h.writeJSON(w, http.StatusOK, itemsResponse{Items: items})
}
