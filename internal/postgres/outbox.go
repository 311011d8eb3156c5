package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/slanderboard/internal/domain"
)

func recordEvent(ctx context.Context, tx execer, event domain.LedgerEvent) error {
	var payload any
	if len(event.Payload) > 0 {
		payload = []byte(event.Payload)
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_events (kind, user_id, slander_id, value, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, string(event.Kind), event.UserID, event.SlanderID, event.Value, payload, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording ledger event: %w", err)
	}
	return nil
}

// PendingEvents returns unpublished ledger events, oldest first
func (r *Repository) PendingEvents(ctx context.Context, limit int) ([]domain.LedgerEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, user_id::text, slander_id, value, payload, created_at
		FROM ledger_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, queryError("get pending events", err)
	}
	defer rows.Close()

	var events []domain.LedgerEvent
	for rows.Next() {
		var e domain.LedgerEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Kind, &e.UserID, &e.SlanderID, &e.Value, &payload, &e.CreatedAt); err != nil {
			return nil, queryError("get pending events", fmt.Errorf("scanning event: %w", err))
		}
		e.Payload = payload
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError("get pending events", err)
	}
	return events, nil
}

// MarkPublished flags the given events as delivered
func (r *Repository) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, id := range ids {
		batch.Queue(`UPDATE ledger_events SET published_at = $2 WHERE id = $1`, id, now)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range ids {
		if _, err := br.Exec(); err != nil {
			return queryError("mark events published", err)
		}
	}
	return nil
}
