package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/slanderboard/internal/domain"
)

const submissionSelect = `
	SELECT s.id, s.text, s.created_at, p.id, p.full_name, p.league, pr.username
	FROM slander_names s
	LEFT JOIN players p ON p.id = s.player_id
	LEFT JOIN profiles pr ON pr.user_id = s.submitted_by
`

// SubmitSlanderName finds or creates the player by case-insensitive name and
// league, then records the slander name against it.
func (r *Repository) SubmitSlanderName(ctx context.Context, userID, realName string, league domain.League, text string) (int64, error) {
	var slanderID int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var playerID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO players (full_name, league)
			VALUES ($1, $2)
			ON CONFLICT (lower(full_name), league)
			DO UPDATE SET full_name = players.full_name
			RETURNING id
		`, realName, string(league)).Scan(&playerID)
		if err != nil {
			return fmt.Errorf("upserting player: %w", err)
		}

		now := time.Now().UTC()
		err = tx.QueryRow(ctx, `
			INSERT INTO slander_names (text, player_id, submitted_by, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, text, playerID, userID, now).Scan(&slanderID)
		if err != nil {
			return fmt.Errorf("inserting slander name: %w", err)
		}

		if !r.events {
			return nil
		}
		payload, err := json.Marshal(domain.SubmissionPayload{Text: text, PlayerID: playerID, League: league})
		if err != nil {
			return fmt.Errorf("marshaling payload: %w", err)
		}
		return recordEvent(ctx, tx, domain.LedgerEvent{
			Kind:      domain.EventSlanderSubmitted,
			UserID:    userID,
			SlanderID: slanderID,
			Payload:   payload,
			CreatedAt: now,
		})
	})
	if err != nil {
		return 0, queryError("submit slander name", err)
	}
	return slanderID, nil
}

// SubmissionsByIDs returns the joined rows for the given submission ids
func (r *Repository) SubmissionsByIDs(ctx context.Context, ids []int64) ([]domain.SubmissionRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.querySubmissions(ctx, submissionSelect+` WHERE s.id = ANY($1)`, ids)
	return rows, queryError("get submissions", err)
}

// SubmissionsSince returns the newest submissions created at or after since
func (r *Repository) SubmissionsSince(ctx context.Context, since time.Time, limit int) ([]domain.SubmissionRow, error) {
	rows, err := r.querySubmissions(ctx, submissionSelect+`
		WHERE s.created_at >= $1
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT $2
	`, since, limit)
	return rows, queryError("get recent submissions", err)
}

// SubmissionsForPlayer returns the newest submissions attached to a player
func (r *Repository) SubmissionsForPlayer(ctx context.Context, playerID int64, limit int) ([]domain.SubmissionRow, error) {
	rows, err := r.querySubmissions(ctx, submissionSelect+`
		WHERE s.player_id = $1
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT $2
	`, playerID, limit)
	return rows, queryError("get player submissions", err)
}

func (r *Repository) querySubmissions(ctx context.Context, query string, args ...any) ([]domain.SubmissionRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SubmissionRow
	for rows.Next() {
		var row domain.SubmissionRow
		if err := rows.Scan(
			&row.ID,
			&row.Text,
			&row.CreatedAt,
			&row.PlayerID,
			&row.PlayerName,
			&row.PlayerLeague,
			&row.SubmitterUsername,
		); err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Player retrieves a player by id
func (r *Repository) Player(ctx context.Context, id int64) (*domain.Player, error) {
	var p domain.Player
	err := r.pool.QueryRow(ctx, `SELECT id, full_name, league FROM players WHERE id = $1`, id).
		Scan(&p.ID, &p.FullName, &p.League)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, queryError("get player", err)
	}
	return &p, nil
}
