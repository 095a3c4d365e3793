package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lunora/arcana/models"
	"github.com/lunora/arcana/tarot"
)

// DigestCache is a stale-tolerant snapshot cache for history digests. A nil
// cache disables caching; reads then always hit the database.
type DigestCache interface {
	Get(key string) ([]byte, bool)
	SetJSON(key string, v interface{}, ttl time.Duration)
	Invalidate(key string)
}

// Options tune the engine. Zero values fall back to defaults, except
// ReversalProbability where nil means default; a pointer to zero disables
// reversals entirely.
type Options struct {
	ReversalProbability *float64
	ClarificationMax    int
	HistoryWindow       int
	DailyRewardPoints   int
	Cache               DigestCache
	Rand                *rand.Rand       // injectable for reproducible draws
	Now                 func() time.Time // injectable clock
	Logger              *zap.SugaredLogger
}

// ReadingService implements the reading lifecycle and gift ledger.
type ReadingService struct {
	db         *gorm.DB
	catalog    *tarot.Catalog
	templated  *tarot.TemplatedGenerator
	contextual tarot.Generator
	streaks    *StreakService
	opts       Options
	reversal   float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewReadingService wires the engine components. backend may be nil; question
// readings then always use the templated fallback.
func NewReadingService(db *gorm.DB, catalog *tarot.Catalog, backend tarot.TextBackend, opts Options) *ReadingService {
	reversal := tarot.DefaultReversalProbability
	if opts.ReversalProbability != nil {
		reversal = *opts.ReversalProbability
	}
	if opts.ClarificationMax == 0 {
		opts.ClarificationMax = 3
	}
	if opts.HistoryWindow == 0 {
		opts.HistoryWindow = tarot.HistoryWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	templated := tarot.NewTemplatedGenerator(rng)
	return &ReadingService{
		db:         db,
		catalog:    catalog,
		templated:  templated,
		contextual: tarot.NewContextualGenerator(backend, templated, opts.Logger),
		streaks:    NewStreakService(db, opts.DailyRewardPoints),
		opts:       opts,
		reversal:   reversal,
		rng:        rng,
	}
}

// CreateDaily draws the card of the day. Exactly one daily reading may exist
// per user per local calendar day; the unique (user, day_key) index backs the
// check against races.
func (s *ReadingService) CreateDaily(ctx context.Context, user *models.User) (*models.Reading, error) {
	now := s.opts.Now()
	dayKey := now.In(user.Location()).Format("2006-01-02")

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Reading{}).
		Where("user_id = ? AND type = ? AND day_key = ?", user.ID, models.ReadingDaily, dayKey).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrAlreadyExists
	}

	spread, _ := tarot.SpreadFor(models.ReadingDaily)
	drawn, err := s.draw(nil, spread.Size())
	if err != nil {
		return nil, err
	}

	phase := tarot.MoonPhase(now)
	interp := s.templated.Generate(ctx, tarot.Request{
		Type:      models.ReadingDaily,
		Cards:     drawn,
		Spread:    spread,
		Profile:   s.profileFor(user, now),
		MoonPhase: phase,
	})

	reading, err := s.persist(ctx, user, persistInput{
		readingType: models.ReadingDaily,
		spread:      spread,
		drawn:       drawn,
		moonPhase:   phase,
		interp:      interp,
		dayKey:      &dayKey,
		at:          now,
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}

	// Streak update is a non-critical side effect: a failure is logged and
	// never rolls back the committed reading.
	if err := s.streaks.RecordDailyReading(ctx, user.ID, now); err != nil && s.opts.Logger != nil {
		s.opts.Logger.Warnw("streak update failed", "user_id", user.ID, "error", err)
	}
	return reading, nil
}

// CreateSpread redeems one unused gift of the matching type and creates the
// spread reading in the same transaction. A racing redemption of the same
// gift leaves exactly one winner; the loser gets ErrConflict.
func (s *ReadingService) CreateSpread(ctx context.Context, user *models.User, spreadType string) (*models.Reading, error) {
	if !tarot.IsGiftSpread(spreadType) {
		return nil, ErrUnknownSpread
	}
	spread, ok := tarot.SpreadFor(spreadType)
	if !ok {
		return nil, ErrUnknownSpread
	}

	var gift models.Gift
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND spread_type = ? AND used = ?", user.ID, spreadType, false).
		Order("created_at").First(&gift).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoGiftAvailable
		}
		return nil, err
	}

	now := s.opts.Now()
	drawn, err := s.draw(nil, spread.Size())
	if err != nil {
		return nil, err
	}

	phase := tarot.MoonPhase(now)
	interp := s.templated.Generate(ctx, tarot.Request{
		Type:      spreadType,
		Cards:     drawn,
		Spread:    spread,
		Profile:   s.profileFor(user, now),
		MoonPhase: phase,
	})

	return s.persist(ctx, user, persistInput{
		readingType: spreadType,
		spread:      spread,
		drawn:       drawn,
		moonPhase:   phase,
		interp:      interp,
		gift:        &gift,
		at:          now,
	})
}

// CreateQuestion answers a free-form question with a single card through the
// contextual strategy. The literal question is stored as its own column; it
// is never recovered from rendered prose.
func (s *ReadingService) CreateQuestion(ctx context.Context, user *models.User, question string) (*models.Reading, error) {
	spread, _ := tarot.SpreadFor(models.ReadingQuestion)
	drawn, err := s.draw(nil, spread.Size())
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	phase := tarot.MoonPhase(now)
	digest := s.historyDigest(ctx, user.ID)

	interp := s.contextual.Generate(ctx, tarot.Request{
		Type:      models.ReadingQuestion,
		Cards:     drawn,
		Spread:    spread,
		Profile:   s.profileFor(user, now),
		MoonPhase: phase,
		Question:  question,
		History:   digest,
	})

	return s.persist(ctx, user, persistInput{
		readingType: models.ReadingQuestion,
		spread:      spread,
		drawn:       drawn,
		moonPhase:   phase,
		question:    question,
		interp:      interp,
		at:          now,
	})
}

// AddClarification appends one card to an existing reading, excluding every
// card already on it, at position max(existing)+1. The cap is authoritative
// here, not a UI affordance.
func (s *ReadingService) AddClarification(ctx context.Context, user *models.User, publicID string) (*models.Reading, error) {
	reading, err := s.GetByPublicID(ctx, user, publicID)
	if err != nil {
		return nil, err
	}

	baseSize := 1
	if spread, ok := tarot.SpreadFor(reading.Type); ok {
		baseSize = spread.Size()
	}
	if len(reading.Cards)-baseSize >= s.opts.ClarificationMax {
		return nil, ErrClarificationLimit
	}

	exclude := make([]int, 0, len(reading.Cards))
	maxPos := -1
	for _, rc := range reading.Cards {
		exclude = append(exclude, rc.CardID)
		if rc.Position > maxPos {
			maxPos = rc.Position
		}
	}

	drawn, err := s.draw(exclude, 1)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	clarSpread, _ := tarot.SpreadFor(models.ReadingClarification)
	clarText := s.templated.Generate(ctx, tarot.Request{
		Type:      models.ReadingClarification,
		Cards:     drawn,
		Spread:    clarSpread,
		Profile:   s.profileFor(user, now),
		MoonPhase: reading.MoonPhase,
	})

	var interp tarot.Interpretation
	if err := json.Unmarshal([]byte(reading.Interpretation), &interp); err != nil {
		return nil, fmt.Errorf("decode interpretation payload: %w", err)
	}
	newPos := maxPos + 1
	interp.Positions = append(interp.Positions, tarot.PositionText{
		Position:    newPos,
		Label:       "clarification",
		CardName:    drawn[0].Card.Name,
		Orientation: tarot.Orientation(drawn[0].Reversed),
		Text:        clarText.Positions[0].Text,
	})
	payload, err := json.Marshal(interp)
	if err != nil {
		return nil, err
	}

	card := models.ReadingCard{
		ReadingID:     reading.ID,
		CardID:        drawn[0].Card.ID,
		Position:      newPos,
		Reversed:      drawn[0].Reversed,
		PositionLabel: "clarification",
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&card).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Reading{}).Where("id = ?", reading.ID).
			Update("interpretation", string(payload)).Error; err != nil {
			return err
		}
		return s.bumpCollection(tx, user.ID, drawn, now)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateDigest(user.ID)
	reading.Cards = append(reading.Cards, card)
	reading.Interpretation = string(payload)
	return reading, nil
}

// SubmitFeedback records positive/negative feedback. Ownership is enforced by
// loading the reading owner-scoped before updating; the update's affected-row
// count cannot distinguish a missing row from an unchanged value on MySQL.
func (s *ReadingService) SubmitFeedback(ctx context.Context, user *models.User, publicID, value string) error {
	if value != models.FeedbackPositive && value != models.FeedbackNegative {
		return ErrInvalidFeedback
	}
	var reading models.Reading
	err := s.db.WithContext(ctx).Select("id").
		Where("public_id = ? AND user_id = ?", publicID, user.ID).
		First(&reading).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.db.WithContext(ctx).Model(&models.Reading{}).
		Where("id = ?", reading.ID).
		Update("feedback", value).Error; err != nil {
		return err
	}
	s.invalidateDigest(user.ID)
	return nil
}

// GetByPublicID loads one reading with its cards, scoped to the owner.
func (s *ReadingService) GetByPublicID(ctx context.Context, user *models.User, publicID string) (*models.Reading, error) {
	var reading models.Reading
	err := s.db.WithContext(ctx).
		Preload("Cards", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("public_id = ? AND user_id = ?", publicID, user.ID).
		First(&reading).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &reading, nil
}

// Today returns the user's daily reading for the current local day.
func (s *ReadingService) Today(ctx context.Context, user *models.User) (*models.Reading, error) {
	dayKey := s.opts.Now().In(user.Location()).Format("2006-01-02")
	var reading models.Reading
	err := s.db.WithContext(ctx).
		Preload("Cards", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("user_id = ? AND type = ? AND day_key = ?", user.ID, models.ReadingDaily, dayKey).
		First(&reading).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &reading, nil
}

// List returns the user's readings newest-first with pagination.
func (s *ReadingService) List(ctx context.Context, user *models.User, page, pageSize int) ([]models.Reading, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Reading{}).
		Where("user_id = ?", user.ID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var readings []models.Reading
	err := s.db.WithContext(ctx).
		Preload("Cards", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&readings).Error
	return readings, total, err
}

// Card resolves a catalog card by ID for controllers enriching responses.
func (s *ReadingService) Card(id int) (tarot.Card, bool) {
	return s.catalog.ByID(id)
}

type persistInput struct {
	readingType string
	spread      tarot.Spread
	drawn       []tarot.DrawnCard
	moonPhase   string
	question    string
	interp      tarot.Interpretation
	dayKey      *string
	gift        *models.Gift
	at          time.Time
}

// persist writes the reading, its cards and the collection bumps atomically.
// When a gift funds the reading, its used flag flips in the same transaction
// via a guarded update so a race can only succeed once.
func (s *ReadingService) persist(ctx context.Context, user *models.User, in persistInput) (*models.Reading, error) {
	payload, err := json.Marshal(in.interp)
	if err != nil {
		return nil, err
	}

	reading := &models.Reading{
		PublicID:       uuid.NewString(),
		UserID:         user.ID,
		Type:           in.readingType,
		DeckTheme:      user.DeckTheme,
		MoonPhase:      in.moonPhase,
		Question:       in.question,
		Interpretation: string(payload),
		DayKey:         in.dayKey,
		CreatedAt:      in.at,
	}
	for i, dc := range in.drawn {
		label := "card"
		if i < len(in.spread.Positions) {
			label = in.spread.Positions[i].Label
		}
		reading.Cards = append(reading.Cards, models.ReadingCard{
			CardID:        dc.Card.ID,
			Position:      i,
			Reversed:      dc.Reversed,
			PositionLabel: label,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.gift != nil {
			res := tx.Model(&models.Gift{}).
				Where("id = ? AND used = ?", in.gift.ID, false).
				Updates(map[string]interface{}{"used": true, "used_at": in.at})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrConflict
			}
		}
		if err := tx.Create(reading).Error; err != nil {
			return err
		}
		if in.gift != nil {
			if err := tx.Model(&models.Gift{}).Where("id = ?", in.gift.ID).
				Update("reading_id", reading.ID).Error; err != nil {
				return err
			}
		}
		return s.bumpCollection(tx, user.ID, in.drawn, in.at)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateDigest(user.ID)
	return reading, nil
}

// bumpCollection upserts one CollectionEntry per drawn card.
func (s *ReadingService) bumpCollection(tx *gorm.DB, userID uint, drawn []tarot.DrawnCard, at time.Time) error {
	for _, dc := range drawn {
		entry := models.CollectionEntry{
			UserID:        userID,
			CardID:        dc.Card.ID,
			TimesReceived: 1,
			FirstSeenAt:   at,
			LastSeenAt:    at,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "card_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"times_received": gorm.Expr("times_received + 1"),
				"last_seen_at":   at,
			}),
		}).Create(&entry).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// historyDigest builds (or fetches a cached) digest of the user's recent
// readings. Reads are snapshots and tolerate slight staleness.
func (s *ReadingService) historyDigest(ctx context.Context, userID uint) *tarot.Digest {
	key := fmt.Sprintf("cache:digest:user:%d", userID)
	if s.opts.Cache != nil {
		if b, ok := s.opts.Cache.Get(key); ok {
			var d tarot.Digest
			if err := json.Unmarshal(b, &d); err == nil {
				return &d
			}
		}
	}

	var readings []models.Reading
	err := s.db.WithContext(ctx).
		Preload("Cards", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(s.opts.HistoryWindow).
		Find(&readings).Error
	if err != nil {
		if s.opts.Logger != nil {
			s.opts.Logger.Warnw("history load failed, digest skipped", "user_id", userID, "error", err)
		}
		return nil
	}

	past := make([]tarot.PastReading, 0, len(readings))
	for _, r := range readings {
		pr := tarot.PastReading{
			Type:      r.Type,
			Question:  r.Question,
			CreatedAt: r.CreatedAt,
		}
		if r.Feedback != nil {
			pr.Feedback = *r.Feedback
		}
		for _, rc := range r.Cards {
			if card, ok := s.catalog.ByID(rc.CardID); ok {
				pr.Cards = append(pr.Cards, tarot.PastCard{Name: card.Name, Reversed: rc.Reversed})
			}
		}
		past = append(past, pr)
	}

	digest := tarot.BuildDigest(past, s.opts.HistoryWindow)
	if s.opts.Cache != nil {
		s.opts.Cache.SetJSON(key, digest, 10*time.Minute)
	}
	return &digest
}

func (s *ReadingService) invalidateDigest(userID uint) {
	if s.opts.Cache != nil {
		s.opts.Cache.Invalidate(fmt.Sprintf("cache:digest:user:%d", userID))
	}
}

func (s *ReadingService) profileFor(user *models.User, at time.Time) tarot.Profile {
	return tarot.Profile{
		Name:               user.Name,
		Age:                user.Age(at),
		ZodiacSign:         user.ZodiacSign,
		RelationshipStatus: user.RelationshipStatus,
		City:               user.City,
		DeckTheme:          user.DeckTheme,
		Streak:             user.ConsecutiveDays,
	}
}

func (s *ReadingService) draw(exclude []int, count int) ([]tarot.DrawnCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Draw(s.rng, exclude, count, s.reversal)
}
