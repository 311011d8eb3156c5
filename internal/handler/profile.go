package handler

import (
	"net/http"

	"github.com/slanderboard/internal/domain"
)

type meResponse struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	Username *string `json:"username"`
}

// ClaimUsername sets the signed-in user's username
func (h *Handler) ClaimUsername(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	var req domain.ClaimUsernameRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	if err := h.Profiles.Claim(r.Context(), user.ID, req.Username); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// Me returns the signed-in user's profile
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	username, err := h.Profiles.Username(r.Context(), user.ID)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	resp := meResponse{ID: user.ID, Email: user.Email}
	if username != "" {
		resp.Username = &username
	}
	h.writeJSON(w, http.StatusOK, resp)
}
