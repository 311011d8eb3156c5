package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slanderboard/internal/config"
	"github.com/slanderboard/internal/domain"
)

// LeaderboardService computes period leaderboards from the vote ledger
type LeaderboardService struct {
	votes       VoteReader
	submissions SubmissionReader
	config      *config.LeaderboardConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(
	votes VoteReader,
	submissions SubmissionReader,
	cfg *config.LeaderboardConfig,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		votes:       votes,
		submissions: submissions,
		config:      cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Get returns the top items for the period, optionally filtered by league.
// When userID is set each item carries that user's own vote.
func (s *LeaderboardService) Get(ctx context.Context, q domain.LeaderboardQuery, userID string) ([]domain.ScoredItem, error) {
	since, err := q.Period.Since(s.now())
	if err != nil {
		return nil, err
	}
	if q.League != "" && !q.League.Valid() {
		return nil, domain.ErrInvalidLeague
	}

	votes, err := s.votes.VotesSince(ctx, since, s.config.VoteScanLimit)
	if err != nil {
		return nil, fmt.Errorf("getting votes: %w", err)
	}
	scores := aggregateScores(votes)

	// Every scored submission is a candidate; only unscored newcomers are capped.
	ids := make([]int64, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	scored, err := s.submissions.SubmissionsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("getting scored submissions: %w", err)
	}
	recent, err := s.submissions.SubmissionsSince(ctx, since, s.config.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("getting recent submissions: %w", err)
	}

	seen := make(map[int64]struct{}, len(scored)+len(recent))
	items := make([]domain.ScoredItem, 0, len(scored)+len(recent))
	for _, rows := range [][]domain.SubmissionRow{scored, recent} {
		for _, row := range rows {
			if _, ok := seen[row.ID]; ok {
				continue
			}
			seen[row.ID] = struct{}{}
			item := normalizeRow(row, scores[row.ID])
			if q.League != "" && item.Player.League != q.League {
				continue
			}
			items = append(items, item)
		}
	}

	sortItems(items)
	if len(items) > s.config.PageSize {
		items = items[:s.config.PageSize]
	}

	if err := mergeUserVotes(ctx, s.votes, userID, items); err != nil {
		return nil, err
	}

	s.logger.Debug("leaderboard computed",
		"period", q.Period,
		"league", q.League,
		"votes", len(votes),
		"items", len(items),
	)
	return items, nil
}
