package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/slanderboard/internal/access"
	"github.com/slanderboard/internal/config"
	"github.com/slanderboard/internal/domain"
	"github.com/slanderboard/internal/identity"
	"github.com/slanderboard/internal/metrics"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// Leaderboard computes period leaderboards
type Leaderboard interface {
	Get(ctx context.Context, q domain.LeaderboardQuery, userID string) ([]domain.ScoredItem, error)
}

// Ledger applies votes
type Ledger interface {
	Apply(ctx context.Context, userID string, slanderID int64, value int) error
}

// Submissions records slander names
type Submissions interface {
	Submit(ctx context.Context, userID string, req domain.SubmitRequest) (int64, error)
}

// Profiles manages usernames
type Profiles interface {
	Claim(ctx context.Context, userID, username string) error
	Username(ctx context.Context, userID string) (string, error)
}

// Players builds player pages
type Players interface {
	Get(ctx context.Context, playerID int64, userID string) (*domain.PlayerPage, error)
}

// Identity is the identity provider as used by the auth endpoints
type Identity interface {
	SignInWithEmailLink(ctx context.Context, email, redirect string) error
	ExchangeCode(ctx context.Context, code string) (*domain.User, *domain.Tokens, string, error)
	SignOut(ctx context.Context, creds identity.Credentials) error
}

// SessionResolver resolves request sessions and builds session cookies
type SessionResolver interface {
	Resolve(r *http.Request) (identity.Session, []*http.Cookie)
	SessionCookies(tokens *domain.Tokens) []*http.Cookie
	ClearCookies() []*http.Cookie
}

// Validator checks request structs
type Validator interface {
	Struct(s any) error
}

// Pinger checks a backing service
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of Handler
type Deps struct {
	Config      *config.Config
	Leaderboard Leaderboard
	Ledger      Ledger
	Submissions Submissions
	Profiles    Profiles
	Players     Players
	Identity    Identity
	Resolver    SessionResolver
	Policy      *access.Policy
	Validator   Validator
	Metrics     *metrics.Metrics
	Database    Pinger
	Redis       Pinger
}

// Handler provides HTTP handlers for the slanderboard API
type Handler struct {
	Deps
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Deps, logger *slog.Logger) *Handler {
	return &Handler{
		Deps:   deps,
		logger: logger,
	}
}

// errorResponse is the body of every failed request. Error is a message or
// a list of field errors.
type errorResponse struct {
	Error any `json:"error"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(h.Metrics.Middleware)
	r.Use(h.sessionMiddleware)

	r.Get("/api/health", h.HealthCheck)
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler())
	}

	// Auth
	r.Get("/auth/callback", h.AuthCallback)
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signin", h.SignIn)
		r.Post("/signout", h.SignOut)
	})

	// API routes
	r.Get("/api/leaderboard", h.GetLeaderboard)
	r.Route("/api/slander", func(r chi.Router) {
		r.Post("/submit", h.SubmitSlander)
		r.Post("/vote", h.Vote)
	})
	r.Route("/api/profile", func(r chi.Router) {
		r.Post("/claim-username", h.ClaimUsername)
		r.Get("/me", h.Me)
	})
	r.Get("/api/players/{id}", h.GetPlayer)

	// Pages
	r.NotFound(h.ServePage)

	return r
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// writeFailure maps a service error onto its HTTP status and body
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	var qe *domain.QueryError
	switch {
	case errors.As(err, &ve):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: ve.Fields})
	case errors.Is(err, domain.ErrInvalidPeriod):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: []domain.FieldError{{Field: "period", Message: err.Error()}}})
	case errors.Is(err, domain.ErrInvalidLeague):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: []domain.FieldError{{Field: "league", Message: err.Error()}}})
	case errors.Is(err, domain.ErrInvalidVote):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: []domain.FieldError{{Field: "vote", Message: err.Error()}}})
	case errors.Is(err, domain.ErrUnauthorized):
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, domain.ErrPlayerNotFound)
	case errors.Is(err, domain.ErrUsernameTaken):
		h.writeError(w, http.StatusBadRequest, domain.ErrUsernameTaken)
	case errors.Is(err, domain.ErrSubmissionNotFound):
		h.writeError(w, http.StatusBadRequest, domain.ErrSubmissionNotFound)
	case errors.As(err, &qe):
		h.logger.Warn("storage error", "op", qe.Op, "error", qe.Err, "request_id", middleware.GetReqID(r.Context()))
		h.writeError(w, http.StatusBadRequest, qe)
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", middleware.GetReqID(r.Context()))
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// decodeJSON reads the request body into dst. Malformed bodies are
// reported as a validation error.
func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.NewValidationError("body", "must be valid JSON")
	}
	return nil
}

// HealthCheck reports backing service status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	env := map[string]bool{
		"database":    ping(r.Context(), h.Database),
		"redis":       ping(r.Context(), h.Redis),
		"auth_secret": h.Config.Auth.Secret != "",
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"ok":          env["database"] && env["redis"],
		"environment": h.Config.Environment,
		"env":         env,
	})
}

func ping(ctx context.Context, p Pinger) bool {
	return p != nil && p.Ping(ctx) == nil
}
