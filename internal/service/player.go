package service

import (
	"context"
	"fmt"

	"github.com/slanderboard/internal/config"
	"github.com/slanderboard/internal/domain"
)

// PlayerService builds a player's page: every slander name for the player
// scored with all-time votes.
type PlayerService struct {
	votes       VoteReader
	submissions SubmissionReader
	config      *config.LeaderboardConfig
}

// NewPlayerService creates a new player service
func NewPlayerService(votes VoteReader, submissions SubmissionReader, cfg *config.LeaderboardConfig) *PlayerService {
	return &PlayerService{votes: votes, submissions: submissions, config: cfg}
}

// Get returns the player and their scored slander names
func (s *PlayerService) Get(ctx context.Context, playerID int64, userID string) (*domain.PlayerPage, error) {
	if playerID <= 0 {
		return nil, domain.NewValidationError("id", "must be greater than 0")
	}
	player, err := s.submissions.Player(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("getting player: %w", err)
	}

	rows, err := s.submissions.SubmissionsForPlayer(ctx, playerID, s.config.PlayerSubmissionLimit)
	if err != nil {
		return nil, fmt.Errorf("getting player submissions: %w", err)
	}
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	votes, err := s.votes.VotesFor(ctx, ids, s.config.PlayerVoteLimit)
	if err != nil {
		return nil, fmt.Errorf("getting player votes: %w", err)
	}
	scores := aggregateScores(votes)

	items := make([]domain.ScoredItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, normalizeRow(row, scores[row.ID]))
	}
	sortItems(items)

	if err := mergeUserVotes(ctx, s.votes, userID, items); err != nil {
		return nil, err
	}
	return &domain.PlayerPage{Player: *player, Items: items}, nil
}
