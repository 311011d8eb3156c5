package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/slanderboard/internal/domain"
)

func recordEvent(tx *gorm.DB, event domain.LedgerEvent) error {
	return tx.Create(&ledgerEventModel{
		Kind:      string(event.Kind),
		UserID:    event.UserID,
		SlanderID: event.SlanderID,
		Value:     event.Value,
		Payload:   event.Payload,
		CreatedAt: toNanos(event.CreatedAt),
	}).Error
}

// PendingEvents returns unpublished ledger events, oldest first
func (s *Store) PendingEvents(ctx context.Context, limit int) ([]domain.LedgerEvent, error) {
	var rows []ledgerEventModel
	err := s.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, queryError("get pending events", err)
	}
	events := make([]domain.LedgerEvent, 0, len(rows))
	for _, m := range rows {
		events = append(events, domain.LedgerEvent{
			ID:        m.ID,
			Kind:      domain.LedgerEventKind(m.Kind),
			UserID:    m.UserID,
			SlanderID: m.SlanderID,
			Value:     m.Value,
			Payload:   m.Payload,
			CreatedAt: fromNanos(m.CreatedAt),
		})
	}
	return events, nil
}

// MarkPublished flags the given events as delivered
func (s *Store) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Model(&ledgerEventModel{}).
		Where("id IN ?", ids).
		Update("published_at", toNanos(time.Now())).Error
	return queryError("mark events published", err)
}
