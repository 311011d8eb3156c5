package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slanderboard/internal/domain"
)

// LedgerService applies a user's vote to the ledger
type LedgerService struct {
	store  VoteWriter
	logger *slog.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(store VoteWriter, logger *slog.Logger) *LedgerService {
	return &LedgerService{store: store, logger: logger}
}

// Apply casts +1 or -1, or removes the vote when value is 0. The user id
// always comes from the resolved session.
func (s *LedgerService) Apply(ctx context.Context, userID string, slanderID int64, value int) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	if slanderID <= 0 {
		return domain.NewValidationError("slanderId", "must be greater than 0")
	}

	switch value {
	case 0:
		if err := s.store.Unvote(ctx, userID, slanderID); err != nil {
			return fmt.Errorf("removing vote: %w", err)
		}
	case 1, -1:
		if err := s.store.CastVote(ctx, userID, slanderID, value); err != nil {
			return fmt.Errorf("casting vote: %w", err)
		}
	default:
		return domain.ErrInvalidVote
	}

	s.logger.Debug("vote applied", "slander_id", slanderID, "value", value)
	return nil
}
