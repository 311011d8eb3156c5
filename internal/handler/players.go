package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/slanderboard/internal/domain"
	"github.com/slanderboard/internal/identity"
)

// GetPlayer returns a player and their scored slander names
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeFailure(w, r, domain.NewValidationError("id", "must be a positive integer"))
		return
	}

	session := identity.SessionFromContext(r.Context())
	page, err := h.Players.Get(r.Context(), id, session.UserID())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if page.Items == nil {
		page.Items = []domain.ScoredItem{}
	}

	h.writeJSON(w, http.StatusOK, page)
}
