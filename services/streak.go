package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/lunora/arcana/models"
)

// StreakService tracks consecutive daily-reading days and awards points. It
// is a non-critical collaborator: callers invoke it after the reading commit
// and only log failures.
type StreakService struct {
	db     *gorm.DB
	reward int
}

// NewStreakService builds the service with the per-day point reward.
func NewStreakService(db *gorm.DB, reward int) *StreakService {
	if reward == 0 {
		reward = 10
	}
	return &StreakService{db: db, reward: reward}
}

// RecordDailyReading extends or resets the user's streak for a daily reading
// created at the given instant.
func (s *StreakService) RecordDailyReading(ctx context.Context, userID uint, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}

		loc := user.Location()
		today := at.In(loc)
		streak := 1
		if user.LastReadingAt != nil {
			last := user.LastReadingAt.In(loc)
			switch {
			case sameDay(last, today):
				// Already counted today; nothing to do.
				return nil
			case sameDay(last.AddDate(0, 0, 1), today):
				streak = user.ConsecutiveDays + 1
			}
		}

		user.ConsecutiveDays = streak
		user.Points += s.reward
		user.LastReadingAt = &at
		return tx.Save(&user).Error
	})
}

// Streak returns the user's current consecutive-day count.
func (s *StreakService) Streak(ctx context.Context, userID uint) (int, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return user.ConsecutiveDays, nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
