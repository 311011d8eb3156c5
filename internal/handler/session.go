package handler

import (
	"net/http"

	"github.com/slanderboard/internal/access"
	"github.com/slanderboard/internal/domain"
	"github.com/slanderboard/internal/identity"
)

// sessionMiddleware resolves the session for protected paths and applies
// the access policy. Cookies from a rotated session are written on every
// outcome, including redirects and 401s.
func (h *Handler) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if access.IsPublic(path) || !access.IsProtected(path) {
			next.ServeHTTP(w, r)
			return
		}

		session, cookies := h.Resolver.Resolve(r)
		for _, c := range cookies {
			http.SetCookie(w, c)
		}

		res, err := h.Policy.Evaluate(r.Context(), path, session.UserID())
		if err != nil {
			h.logger.Error("access policy failed", "path", path, "error", err)
			h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
			return
		}
		h.Metrics.AccessDecision(res.Decision.String())

		switch res.Decision {
		case access.RedirectToSignIn:
			if access.IsAPI(path) {
				h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
				return
			}
			http.Redirect(w, r, res.Location, http.StatusFound)
			return
		case access.RedirectToOnboarding:
			http.Redirect(w, r, res.Location, http.StatusFound)
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.WithSession(r.Context(), session)))
	})
}

// sessionUser returns the signed-in user of the request or writes a 401
func (h *Handler) sessionUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	session := identity.SessionFromContext(r.Context())
	if !session.Authenticated() {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
		return nil, false
	}
	return session.User, true
}
