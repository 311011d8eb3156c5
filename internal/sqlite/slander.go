package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/slanderboard/internal/domain"
)

const submissionSelect = `
	SELECT s.id AS id, s.text AS text, s.created_at AS created_at,
		p.id AS player_id, p.full_name AS player_name, p.league AS player_league,
		pr.username AS username
	FROM slander_names s
	LEFT JOIN players p ON p.id = s.player_id
	LEFT JOIN profiles pr ON pr.user_id = s.submitted_by
`

type submissionScan struct {
	ID           int64
	Text         string
	CreatedAt    int64
	PlayerID     *int64
	PlayerName   *string
	PlayerLeague *string
	Username     *string
}

func (r submissionScan) row() domain.SubmissionRow {
	return domain.SubmissionRow{
		ID:                r.ID,
		Text:              r.Text,
		CreatedAt:         fromNanos(r.CreatedAt),
		PlayerID:          r.PlayerID,
		PlayerName:        r.PlayerName,
		PlayerLeague:      r.PlayerLeague,
		SubmitterUsername: r.Username,
	}
}

// SubmitSlanderName finds or creates the player by case-insensitive name and
// league, then records the slander name against it.
func (s *Store) SubmitSlanderName(ctx context.Context, userID, realName string, league domain.League, text string) (int64, error) {
	var slanderID int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		player := playerModel{
			FullName: realName,
			NameKey:  strings.ToLower(realName),
			League:   string(league),
		}
		err := tx.Where("name_key = ? AND league = ?", player.NameKey, player.League).First(&player).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			player.CreatedAt = toNanos(time.Now())
			err = tx.Create(&player).Error
		}
		if err != nil {
			return fmt.Errorf("upserting player: %w", err)
		}

		now := time.Now().UTC()
		slander := slanderModel{
			Text:        text,
			PlayerID:    &player.ID,
			SubmittedBy: &userID,
			CreatedAt:   toNanos(now),
		}
		if err := tx.Create(&slander).Error; err != nil {
			return fmt.Errorf("inserting slander name: %w", err)
		}
		slanderID = slander.ID

		if !s.events {
			return nil
		}
		payload, err := json.Marshal(domain.SubmissionPayload{Text: text, PlayerID: player.ID, League: league})
		if err != nil {
			return fmt.Errorf("marshaling payload: %w", err)
		}
		return recordEvent(tx, domain.LedgerEvent{
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
func (s *Store) SubmissionsByIDs(ctx context.Context, ids []int64) ([]domain.SubmissionRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.querySubmissions(ctx, submissionSelect+` WHERE s.id IN ?`, ids)
	return rows, queryError("get submissions", err)
}

// SubmissionsSince returns the newest submissions created at or after since
func (s *Store) SubmissionsSince(ctx context.Context, since time.Time, limit int) ([]domain.SubmissionRow, error) {
	rows, err := s.querySubmissions(ctx, submissionSelect+`
		WHERE s.created_at >= ?
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT ?
	`, toNanos(since), limit)
	return rows, queryError("get recent submissions", err)
}

// SubmissionsForPlayer returns the newest submissions attached to a player
func (s *Store) SubmissionsForPlayer(ctx context.Context, playerID int64, limit int) ([]domain.SubmissionRow, error) {
	rows, err := s.querySubmissions(ctx, submissionSelect+`
		WHERE s.player_id = ?
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT ?
	`, playerID, limit)
	return rows, queryError("get player submissions", err)
}

func (s *Store) querySubmissions(ctx context.Context, query string, args ...any) ([]domain.SubmissionRow, error) {
	var scanned []submissionScan
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&scanned).Error; err != nil {
		return nil, err
	}
	out := make([]domain.SubmissionRow, 0, len(scanned))
	for _, r := range scanned {
		out = append(out, r.row())
	}
	return out, nil
}

// Player retrieves a player by id
func (s *Store) Player(ctx context.Context, id int64) (*domain.Player, error) {
	var m playerModel
	err := s.db.WithContext(ctx).First(&m, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, queryError("get player", err)
	}
	return &domain.Player{ID: m.ID, FullName: m.FullName, League: domain.League(m.League)}, nil
}
