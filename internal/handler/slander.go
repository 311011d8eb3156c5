package handler

import (
	"net/http"

	"github.com/slanderboard/internal/domain"
)

// SubmitSlander records a new slander name for the signed-in user
func (h *Handler) SubmitSlander(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	var req domain.SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	id, err := h.Submissions.Submit(r.Context(), user.ID, req)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.Metrics.SlanderSubmitted()
	h.writeJSON(w, http.StatusOK, map[string]int64{"slanderId": id})
}

// Vote casts, flips or removes the signed-in user's vote
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	var req domain.VoteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	if err := h.Ledger.Apply(r.Context(), user.ID, req.SlanderID, *req.Vote); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.Metrics.VoteApplied(*req.Vote)
	h.writeJSON(w, http.StatusOK, okResponse{OK: true})
}
