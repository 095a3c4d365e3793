package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/lunora/arcana/models"
	"github.com/lunora/arcana/tarot"
)

// GiftService manages the gift ledger: granting and listing. Redemption
// happens inside ReadingService.CreateSpread so it shares the reading's
// transaction.
type GiftService struct {
	db *gorm.DB
}

// NewGiftService creates the service.
func NewGiftService(db *gorm.DB) *GiftService {
	return &GiftService{db: db}
}

// Grant issues count gifts of the given spread type to a user.
func (g *GiftService) Grant(ctx context.Context, userID uint, spreadType string, count int) ([]models.Gift, error) {
	if !tarot.IsGiftSpread(spreadType) {
		return nil, ErrUnknownSpread
	}
	if count < 1 {
		count = 1
	}
	gifts := make([]models.Gift, count)
	for i := range gifts {
		gifts[i] = models.Gift{UserID: userID, SpreadType: spreadType}
	}
	if err := g.db.WithContext(ctx).Create(&gifts).Error; err != nil {
		return nil, err
	}
	return gifts, nil
}

// ListForUser returns all gifts of a user, unused first, newest first within
// each group.
func (g *GiftService) ListForUser(ctx context.Context, userID uint) ([]models.Gift, error) {
	var gifts []models.Gift
	err := g.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("used ASC, created_at DESC").
		Find(&gifts).Error
	return gifts, err
}

// UnusedCount reports unused gifts per spread type for a user.
func (g *GiftService) UnusedCount(ctx context.Context, userID uint) (map[string]int64, error) {
	type row struct {
		SpreadType string
		N          int64
	}
	var rows []row
	err := g.db.WithContext(ctx).Model(&models.Gift{}).
		Select("spread_type, COUNT(*) AS n").
		Where("user_id = ? AND used = ?", userID, false).
		Group("spread_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.SpreadType] = r.N
	}
	return out, nil
}
