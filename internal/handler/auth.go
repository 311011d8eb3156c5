package handler

import (
	"net/http"
	"net/url"

	"github.com/slanderboard/internal/access"
	"github.com/slanderboard/internal/domain"
	"github.com/slanderboard/internal/identity"
)

// SignIn emails a magic sign-in link
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req domain.SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	redirect := ""
	if req.Redirect != "" {
		redirect = access.SafeRedirect(req.Redirect)
	}
	if err := h.Identity.SignInWithEmailLink(r.Context(), req.Email, redirect); err != nil {
		h.logger.Error("failed to send sign-in link", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// AuthCallback exchanges a sign-in code for a session and redirects to the
// page the user started from.
func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	redirect := access.SafeRedirect(r.URL.Query().Get("redirect"))

	_, tokens, stored, err := h.Identity.ExchangeCode(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.logger.Info("sign-in code rejected", "error", err)
		http.Redirect(w, r, "/signin?redirect="+url.QueryEscape(redirect), http.StatusFound)
		return
	}
	if stored != "" {
		redirect = access.SafeRedirect(stored)
	}

	for _, c := range h.Resolver.SessionCookies(tokens) {
		http.SetCookie(w, c)
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

// SignOut revokes the session and clears its cookies
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.Identity.SignOut(r.Context(), identity.CredentialsFrom(r)); err != nil {
		h.logger.Warn("failed to revoke session", "error", err)
	}
	for _, c := range h.Resolver.ClearCookies() {
		http.SetCookie(w, c)
	}
	h.writeJSON(w, http.StatusOK, okResponse{OK: true})
}
