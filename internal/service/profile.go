package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/slanderboard/internal/domain"
)

// ProfileService manages usernames
type ProfileService struct {
	store     ProfileStore
	validator Validator
}

// NewProfileService creates a new profile service
func NewProfileService(store ProfileStore, validator Validator) *ProfileService {
	return &ProfileService{store: store, validator: validator}
}

// Claim sets the user's username. Only one user can hold a name.
func (s *ProfileService) Claim(ctx context.Context, userID, username string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	req := domain.ClaimUsernameRequest{Username: strings.TrimSpace(username)}
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	if err := s.store.ClaimUsername(ctx, userID, req.Username); err != nil {
		return fmt.Errorf("claiming username: %w", err)
	}
	return nil
}

// Username returns the user's username, or "" if unclaimed
func (s *ProfileService) Username(ctx context.Context, userID string) (string, error) {
	name, err := s.store.Username(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("getting username: %w", err)
	}
	return name, nil
}
