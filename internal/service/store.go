package service

import (
	"context"
	"time"

	"github.com/slanderboard/internal/domain"
)

// VoteReader reads votes for scoring
type VoteReader interface {
	VotesSince(ctx context.Context, since time.Time, limit int) ([]domain.VoteRow, error)
	VotesFor(ctx context.Context, slanderIDs []int64, limit int) ([]domain.VoteRow, error)
	UserVotes(ctx context.Context, userID string, slanderIDs []int64) (map[int64]int, error)
}

// SubmissionReader reads slander names joined with player and submitter
type SubmissionReader interface {
	SubmissionsByIDs(ctx context.Context, ids []int64) ([]domain.SubmissionRow, error)
	SubmissionsSince(ctx context.Context, since time.Time, limit int) ([]domain.SubmissionRow, error)
	SubmissionsForPlayer(ctx context.Context, playerID int64, limit int) ([]domain.SubmissionRow, error)
	Player(ctx context.Context, id int64) (*domain.Player, error)
}

// VoteWriter mutates the vote ledger
type VoteWriter interface {
	CastVote(ctx context.Context, userID string, slanderID int64, value int) error
	Unvote(ctx context.Context, userID string, slanderID int64) error
}

// SubmissionWriter records new slander names
type SubmissionWriter interface {
	SubmitSlanderName(ctx context.Context, userID, realName string, league domain.League, text string) (int64, error)
}

// ProfileStore reads and claims usernames
type ProfileStore interface {
	ClaimUsername(ctx context.Context, userID, username string) error
	Username(ctx context.Context, userID string) (string, error)
}

// Validator checks request structs
type Validator interface {
	Struct(s any) error
}
