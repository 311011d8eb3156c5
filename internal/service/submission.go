package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slanderboard/internal/domain"
)

// SubmissionService records new slander names
type SubmissionService struct {
	store     SubmissionWriter
	validator Validator
	logger    *slog.Logger
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(store SubmissionWriter, validator Validator, logger *slog.Logger) *SubmissionService {
	return &SubmissionService{store: store, validator: validator, logger: logger}
}

// Submit validates the request and stores it, returning the new id
func (s *SubmissionService) Submit(ctx context.Context, userID string, req domain.SubmitRequest) (int64, error) {
	if userID == "" {
		return 0, domain.ErrUnauthorized
	}
	req.Slander = strings.TrimSpace(req.Slander)
	req.RealName = strings.TrimSpace(req.RealName)
	if err := s.validator.Struct(req); err != nil {
		return 0, err
	}

	id, err := s.store.SubmitSlanderName(ctx, userID, req.RealName, req.League, req.Slander)
	if err != nil {
		return 0, fmt.Errorf("submitting slander name: %w", err)
	}

	s.logger.Info("slander name submitted", "slander_id", id, "league", req.League)
	return id, nil
}
