package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/slanderboard/internal/domain"
)

// CastVote records the caller's +1/-1 on a submission. A repeat of the same
// value changes nothing and the opposite value replaces the row.
func (s *Store) CastVote(ctx context.Context, userID string, slanderID int64, value int) error {
	if value != 1 && value != -1 {
		return domain.ErrInvalidVote
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&slanderModel{}).Where("id = ?", slanderID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrSubmissionNotFound
		}

		now := time.Now().UTC()
		var existing voteModel
		err := tx.Where("user_id = ? AND slander_id = ?", userID, slanderID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			err = tx.Create(&voteModel{UserID: userID, SlanderID: slanderID, Vote: value, CreatedAt: toNanos(now)}).Error
		case err != nil:
			return err
		case existing.Vote == value:
			return nil
		default:
			err = tx.Model(&voteModel{}).
				Where("user_id = ? AND slander_id = ?", userID, slanderID).
				Updates(map[string]any{"vote": value, "created_at": toNanos(now)}).Error
		}
		if err != nil || !s.events {
			return err
		}
		return recordEvent(tx, domain.LedgerEvent{
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
func (s *Store) Unvote(ctx context.Context, userID string, slanderID int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND slander_id = ?", userID, slanderID).Delete(&voteModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 || !s.events {
			return nil
		}
		return recordEvent(tx, domain.LedgerEvent{
			Kind:      domain.EventVoteRemoved,
			UserID:    userID,
			SlanderID: slanderID,
			CreatedAt: time.Now().UTC(),
		})
	})
	return queryError("unvote", err)
}

// VotesSince returns the newest votes created at or after since
func (s *Store) VotesSince(ctx context.Context, since time.Time, limit int) ([]domain.VoteRow, error) {
	var rows []voteModel
	err := s.db.WithContext(ctx).
		Where("created_at >= ?", toNanos(since)).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, queryError("get votes", err)
	}
	return voteRows(rows), nil
}

// VotesFor returns all-time votes on the given submissions
func (s *Store) VotesFor(ctx context.Context, ids []int64, limit int) ([]domain.VoteRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []voteModel
	err := s.db.WithContext(ctx).
		Where("slander_id IN ?", ids).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, queryError("get submission votes", err)
	}
	return voteRows(rows), nil
}

func voteRows(rows []voteModel) []domain.VoteRow {
	out := make([]domain.VoteRow, 0, len(rows))
	for _, v := range rows {
		out = append(out, domain.VoteRow{SlanderID: v.SlanderID, Value: v.Vote, CreatedAt: fromNanos(v.CreatedAt)})
	}
	return out
}

// UserVotes returns the user's vote on each of the given submissions that
// they have voted on.
func (s *Store) UserVotes(ctx context.Context, userID string, ids []int64) (map[int64]int, error) {
	votes := make(map[int64]int)
	if len(ids) == 0 {
		return votes, nil
	}
	var rows []voteModel
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND slander_id IN ?", userID, ids).
		Find(&rows).Error
	if err != nil {
		return nil, queryError("get user votes", err)
	}
	for _, v := range rows {
		votes[v.SlanderID] = v.Vote
	}
	return votes, nil
}
