package sqlite

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/slanderboard/internal/domain"
)

// EnsureUser returns the user with the given email, creating it if needed
func (s *Store) EnsureUser(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(email)
	db := s.db.WithContext(ctx)

	u := userModel{ID: uuid.NewString(), Email: email, CreatedAt: toNanos(time.Now())}
	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&u).Error
	if err != nil {
		return nil, queryError("ensure user", err)
	}
	if err := db.Where("email = ?", email).First(&u).Error; err != nil {
		return nil, queryError("ensure user", err)
	}
	return &domain.User{ID: u.ID, Email: u.Email}, nil
}

// ClaimUsername sets the caller's username, creating the profile on first
// claim. A name held by another user yields domain.ErrUsernameTaken.
func (s *Store) ClaimUsername(ctx context.Context, userID, username string) error {
	p := profileModel{UserID: userID, Username: &username, UpdatedAt: toNanos(time.Now())}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "updated_at"}),
	}).Create(&p).Error
	if err != nil {
		if isDuplicate(err) {
			return domain.ErrUsernameTaken
		}
		return queryError("claim username", err)
	}
	return nil
}

// Username returns the user's username, or "" when none has been claimed
func (s *Store) Username(ctx context.Context, userID string) (string, error) {
	var p profileModel
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", queryError("get profile", err)
	}
	if p.Username == nil {
		return "", nil
	}
	return *p.Username, nil
}
