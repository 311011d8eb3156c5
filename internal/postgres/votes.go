package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/slanderboard/internal/domain"
)

// CastVote records the caller's +1/-1 on a submission. The primary key on
// (user_id, slander_id) keeps one vote per pair: a repeat of the same value
// changes nothing and the opposite value replaces the row.
func (r *Repository) CastVote(ctx context.Context, userID string, slanderID int64, value int) error {
	if value != 1 && value != -1 {
		return domain.ErrInvalidVote
	}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		tag, err := tx.Exec(ctx, `
			INSERT INTO votes (user_id, slander_id, vote, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, slander_id)
			DO UPDATE SET vote = EXCLUDED.vote, created_at = EXCLUDED.created_at
			WHERE votes.vote <> EXCLUDED.vote
		`, userID, slanderID, value, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 || !r.events {
			return nil
		}
		return recordEvent(ctx, tx, domain.LedgerEvent{
			Kind:      domain.EventVoteCast,
			UserID:    userID,
			SlanderID: slanderID,
			Value:     value,
			CreatedAt: now,
		})
	})
	return queryError("cast vote", err)
}

// Unvote removes the caller's vote. Removing a missing vote succeeds.
func (r *Repository) Unvote(ctx context.Context, userID string, slanderID int64) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM votes WHERE user_id = $1 AND slander_id = $2`, userID, slanderID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 || !r.events {
			return nil
		}
		return recordEvent(ctx, tx, domain.LedgerEvent{
			Kind:      domain.EventVoteRemoved,
			UserID:    userID,
			SlanderID: slanderID,
			CreatedAt: time.Now().UTC(),
		})
	})
	return queryError("unvote", err)
}

// VotesSince returns the newest votes created at or after since
func (r *Repository) VotesSince(ctx context.Context, since time.Time, limit int) ([]domain.VoteRow, error) {
	votes, err := r.queryVotes(ctx, `
		SELECT slander_id, vote, created_at
		FROM votes
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2
	`, since, limit)
	return votes, queryError("get votes", err)
}

// VotesFor returns all-time votes on the given submissions
func (r *Repository) VotesFor(ctx context.Context, ids []int64, limit int) ([]domain.VoteRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	votes, err := r.queryVotes(ctx, `
		SELECT slander_id, vote, created_at
		FROM votes
		WHERE slander_id = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2
	`, ids, limit)
	return votes, queryError("get submission votes", err)
}

func (r *Repository) queryVotes(ctx context.Context, query string, args ...any) ([]domain.VoteRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.VoteRow
	for rows.Next() {
		var v domain.VoteRow
		if err := rows.Scan(&v.SlanderID, &v.Value, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning vote: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UserVotes returns the user's vote on each of the given submissions that
// they have voted on.
func (r *Repository) UserVotes(ctx context.Context, userID string, ids []int64) (map[int64]int, error) {
	votes := make(map[int64]int)
	if len(ids) == 0 {
		return votes, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT slander_id, vote
		FROM votes
		WHERE user_id = $1 AND slander_id = ANY($2)
	`, userID, ids)
	if err != nil {
		return nil, queryError("get user votes", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var vote int
		if err := rows.Scan(&id, &vote); err != nil {
			return nil, queryError("get user votes", fmt.Errorf("scanning vote: %w", err))
		}
		votes[id] = vote
	}
	if err := rows.Err(); err != nil {
		return nil, queryError("get user votes", err)
	}
	return votes, nil
}
