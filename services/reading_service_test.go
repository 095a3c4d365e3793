package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/lunora/arcana/models"
	"github.com/lunora/arcana/tarot"
)

var testDBSeq atomic.Int64

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         glogger.Default.LogMode(glogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Reading{}, &models.ReadingCard{},
		&models.Gift{}, &models.CollectionEntry{},
	))
	return db
}

func makeUser(t *testing.T, db *gorm.DB, username, timezone string) *models.User {
	t.Helper()
	birth := time.Date(1993, time.June, 21, 0, 0, 0, 0, time.UTC)
	user := &models.User{
		Username:   username,
		Name:       "Nadia",
		BirthDate:  &birth,
		ZodiacSign: "cancer",
		DeckTheme:  "classic",
		Timezone:   timezone,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// fakeBackend records prompts and returns a canned reply.
type fakeBackend struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (f *fakeBackend) Complete(_ context.Context, _, userPrompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, userPrompt)
	return f.reply, f.err
}

func validBackendReply() string {
	raw, _ := json.Marshal(map[string]string{
		"greeting":     "Hello again.",
		"card_meaning": "This card speaks of thresholds.",
		"answer":       "The signs point to yes.",
		"advice":       "Move before the month turns.",
	})
	return string(raw)
}

func newTestService(t *testing.T, db *gorm.DB, backend tarot.TextBackend, seed int64, now time.Time) (*ReadingService, *time.Time) {
	t.Helper()
	clock := now
	svc := NewReadingService(db, tarot.MustCatalog(), backend, Options{
		Rand: rand.New(rand.NewSource(seed)),
		Now:  func() time.Time { return clock },
	})
	return svc, &clock
}

func TestCreateDaily_OncePerLocalDay(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "alice", "UTC")
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	svc, clock := newTestService(t, db, nil, 1, now)

	reading, err := svc.CreateDaily(context.Background(), user)
	require.NoError(t, err)
	require.NotNil(t, reading)
	assert.Equal(t, models.ReadingDaily, reading.Type)
	assert.NotEmpty(t, reading.PublicID)
	assert.NotEmpty(t, reading.MoonPhase)
	require.Len(t, reading.Cards, 1)
	require.NotNil(t, reading.DayKey)
	assert.Equal(t, "2026-03-10", *reading.DayKey)

	// Same day, later hour: rejected.
	*clock = now.Add(8 * time.Hour)
	_, err = svc.CreateDaily(context.Background(), user)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	var count int64
	require.NoError(t, db.Model(&models.Reading{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// Next local day: allowed again.
	*clock = now.AddDate(0, 0, 1)
	_, err = svc.CreateDaily(context.Background(), user)
	require.NoError(t, err)
}

func TestCreateDaily_DayBoundaryFollowsUserTimezone(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "kiri", "Pacific/Auckland")
	// 20:00 UTC on Jan 1 is already Jan 2 in Auckland.
	now := time.Date(2026, time.January, 1, 20, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, db, nil, 2, now)

	reading, err := svc.CreateDaily(context.Background(), user)
	require.NoError(t, err)
	require.NotNil(t, reading.DayKey)
	assert.Equal(t, "2026-01-02", *reading.DayKey)
}

func TestCreateDaily_InterpretationPayloadComplete(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "petra", "UTC")
	svc, _ := newTestService(t, db, nil, 3, time.Date(2026, time.May, 5, 12, 0, 0, 0, time.UTC))

	reading, err := svc.CreateDaily(context.Background(), user)
	require.NoError(t, err)

	var interp tarot.Interpretation
	require.NoError(t, json.Unmarshal([]byte(reading.Interpretation), &interp))
	assert.NotEmpty(t, interp.Greeting)
	assert.NotEmpty(t, interp.Summary)
	assert.NotEmpty(t, interp.Advice)
	require.Len(t, interp.Positions, 1)
	assert.Equal(t, reading.MoonPhase, tarot.MoonPhase(reading.CreatedAt))
}

func TestCreateDaily_UpdatesStreakAndPoints(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "streaky", "UTC")
	now := time.Date(2026, time.April, 1, 10, 0, 0, 0, time.UTC)
	svc, clock := newTestService(t, db, nil, 4, now)

	ctx := context.Background()
	_, err := svc.CreateDaily(ctx, user)
	require.NoError(t, err)

	var fresh models.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 1, fresh.ConsecutiveDays)
	assert.Equal(t, 10, fresh.Points)

	// Consecutive day extends the streak.
	*clock = now.AddDate(0, 0, 1)
	_, err = svc.CreateDaily(ctx, user)
	require.NoError(t, err)
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 2, fresh.ConsecutiveDays)
	assert.Equal(t, 20, fresh.Points)

	// A skipped day resets it.
	*clock = now.AddDate(0, 0, 3)
	_, err = svc.CreateDaily(ctx, user)
	require.NoError(t, err)
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 1, fresh.ConsecutiveDays)
	assert.Equal(t, 30, fresh.Points)
}

func TestCreateSpread_RedeemsGift(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "bella", "UTC")
	svc, _ := newTestService(t, db, nil, 5, time.Date(2026, time.June, 1, 15, 0, 0, 0, time.UTC))

	ctx := context.Background()
	gifts, err := NewGiftService(db).Grant(ctx, user.ID, models.ReadingLove, 1)
	require.NoError(t, err)
	require.Len(t, gifts, 1)

	reading, err := svc.CreateSpread(ctx, user, models.ReadingLove)
	require.NoError(t, err)
	assert.Equal(t, models.ReadingLove, reading.Type)
	assert.Nil(t, reading.DayKey)
	require.Len(t, reading.Cards, 5)

	spread, _ := tarot.SpreadFor(models.ReadingLove)
	seen := make(map[int]bool)
	for i, rc := range reading.Cards {
		assert.Equal(t, i, rc.Position)
		assert.Equal(t, spread.Positions[i].Label, rc.PositionLabel)
		assert.False(t, seen[rc.CardID], "card %d drawn twice", rc.CardID)
		seen[rc.CardID] = true
	}

	var gift models.Gift
	require.NoError(t, db.First(&gift, gifts[0].ID).Error)
	assert.True(t, gift.Used)
	require.NotNil(t, gift.UsedAt)
	require.NotNil(t, gift.ReadingID)
	assert.Equal(t, reading.ID, *gift.ReadingID)
}

func TestCreateSpread_NoGift(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "carol", "UTC")
	svc, _ := newTestService(t, db, nil, 6, time.Now())

	_, err := svc.CreateSpread(context.Background(), user, models.ReadingMoney)
	assert.ErrorIs(t, err, ErrNoGiftAvailable)

	// No reading row and no side effects were written.
	var readings, entries int64
	require.NoError(t, db.Model(&models.Reading{}).Count(&readings).Error)
	require.NoError(t, db.Model(&models.CollectionEntry{}).Count(&entries).Error)
	assert.Zero(t, readings)
	assert.Zero(t, entries)
}

func TestCreateSpread_WrongGiftTypeDoesNotMatch(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "dora", "UTC")
	svc, _ := newTestService(t, db, nil, 7, time.Now())

	ctx := context.Background()
	_, err := NewGiftService(db).Grant(ctx, user.ID, models.ReadingLove, 1)
	require.NoError(t, err)

	_, err = svc.CreateSpread(ctx, user, models.ReadingFuture)
	assert.ErrorIs(t, err, ErrNoGiftAvailable)
}

func TestCreateSpread_UnknownType(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "erin", "UTC")
	svc, _ := newTestService(t, db, nil, 8, time.Now())

	_, err := svc.CreateSpread(context.Background(), user, "daily")
	assert.ErrorIs(t, err, ErrUnknownSpread)
	_, err = svc.CreateSpread(context.Background(), user, "celtic_cross")
	assert.ErrorIs(t, err, ErrUnknownSpread)
}

func TestCreateSpread_ZeroReversalProbability(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "flora", "UTC")

	// A pointer to zero is an explicit setting, not an absent one; every
	// drawn card must land upright.
	zero := 0.0
	svc := NewReadingService(db, tarot.MustCatalog(), nil, Options{
		ReversalProbability: &zero,
		Rand:                rand.New(rand.NewSource(11)),
		Now:                 func() time.Time { return time.Date(2026, time.June, 2, 9, 0, 0, 0, time.UTC) },
	})

	ctx := context.Background()
	_, err := NewGiftService(db).Grant(ctx, user.ID, models.ReadingLove, 1)
	require.NoError(t, err)

	reading, err := svc.CreateSpread(ctx, user, models.ReadingLove)
	require.NoError(t, err)
	require.Len(t, reading.Cards, 5)
	for _, rc := range reading.Cards {
		assert.False(t, rc.Reversed)
	}
}

func TestCreateSpread_ConcurrentRedemptionSingleWinner(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "racer", "UTC")
	svc, _ := newTestService(t, db, nil, 9, time.Date(2026, time.July, 7, 7, 0, 0, 0, time.UTC))

	ctx := context.Background()
	_, err := NewGiftService(db).Grant(ctx, user.ID, models.ReadingFuture, 1)
	require.NoError(t, err)

	const attempts = 4
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateSpread(ctx, user, models.ReadingFuture)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrNoGiftAvailable) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one redemption must win")

	var readings int64
	require.NoError(t, db.Model(&models.Reading{}).Where("user_id = ?", user.ID).Count(&readings).Error)
	assert.EqualValues(t, 1, readings)

	var used int64
	require.NoError(t, db.Model(&models.Gift{}).Where("user_id = ? AND used = ?", user.ID, true).Count(&used).Error)
	assert.EqualValues(t, 1, used)
}

func TestCreateQuestion_StoresLiteralQuestion(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "freya", "UTC")
	backend := &fakeBackend{reply: validBackendReply()}
	svc, _ := newTestService(t, db, backend, 10, time.Date(2026, time.August, 8, 8, 0, 0, 0, time.UTC))

	question := "  will the house sale close this month?  "
	reading, err := svc.CreateQuestion(context.Background(), user, question)
	require.NoError(t, err)

	assert.Equal(t, models.ReadingQuestion, reading.Type)
	assert.Equal(t, question, reading.Question)
	require.Len(t, reading.Cards, 1)

	var stored models.Reading
	require.NoError(t, db.Where("public_id = ?", reading.PublicID).First(&stored).Error)
	assert.Equal(t, question, stored.Question)

	var interp tarot.Interpretation
	require.NoError(t, json.Unmarshal([]byte(reading.Interpretation), &interp))
	assert.Equal(t, "Hello again.", interp.Greeting)
	assert.Equal(t, "The signs point to yes.", interp.Summary)
}

func TestCreateQuestion_BackendFailureFallsBack(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "gale", "UTC")
	backend := &fakeBackend{err: fmt.Errorf("backend down")}
	svc, _ := newTestService(t, db, backend, 11, time.Now())

	reading, err := svc.CreateQuestion(context.Background(), user, "what now?")
	require.NoError(t, err, "external failure must never surface")

	var interp tarot.Interpretation
	require.NoError(t, json.Unmarshal([]byte(reading.Interpretation), &interp))
	assert.NotEmpty(t, interp.Greeting)
	assert.NotEmpty(t, interp.Summary)
	assert.NotEmpty(t, interp.Advice)
	require.Len(t, interp.Positions, 1)
	assert.NotEmpty(t, interp.Positions[0].Text)
}

func TestCreateQuestion_PromptCarriesHistory(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "hana", "UTC")
	backend := &fakeBackend{reply: validBackendReply()}
	now := time.Date(2026, time.February, 2, 12, 0, 0, 0, time.UTC)
	svc, clock := newTestService(t, db, backend, 12, now)

	ctx := context.Background()
	_, err := svc.CreateQuestion(ctx, user, "first question?")
	require.NoError(t, err)

	*clock = now.Add(time.Hour)
	_, err = svc.CreateQuestion(ctx, user, "second question?")
	require.NoError(t, err)

	require.Len(t, backend.prompts, 2)
	assert.Contains(t, backend.prompts[1], "second question?")
	assert.Contains(t, backend.prompts[1], "1 past readings")
	assert.Contains(t, backend.prompts[1], "first question?")
}

func TestAddClarification_AppendsAndCaps(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "iva", "UTC")
	now := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, db, nil, 13, now)

	ctx := context.Background()
	reading, err := svc.CreateDaily(ctx, user)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		updated, err := svc.AddClarification(ctx, user, reading.PublicID)
		require.NoError(t, err, "clarification %d", i)
		require.Len(t, updated.Cards, 1+i)
		assert.Equal(t, i, updated.Cards[len(updated.Cards)-1].Position)
		assert.Equal(t, "clarification", updated.Cards[len(updated.Cards)-1].PositionLabel)
	}

	_, err = svc.AddClarification(ctx, user, reading.PublicID)
	assert.ErrorIs(t, err, ErrClarificationLimit)

	// All four cards are distinct and the payload grew with each append.
	final, err := svc.GetByPublicID(ctx, user, reading.PublicID)
	require.NoError(t, err)
	seen := make(map[int]bool)
	for _, rc := range final.Cards {
		assert.False(t, seen[rc.CardID], "card %d repeated", rc.CardID)
		seen[rc.CardID] = true
	}

	var interp tarot.Interpretation
	require.NoError(t, json.Unmarshal([]byte(final.Interpretation), &interp))
	assert.Len(t, interp.Positions, 4)
	assert.Equal(t, 3, interp.Positions[3].Position)
}

func TestAddClarification_OtherUsersReadingNotFound(t *testing.T) {
	db := openTestDB(t)
	owner := makeUser(t, db, "owner", "UTC")
	intruder := makeUser(t, db, "intruder", "UTC")
	svc, _ := newTestService(t, db, nil, 14, time.Now())

	ctx := context.Background()
	reading, err := svc.CreateDaily(ctx, owner)
	require.NoError(t, err)

	_, err = svc.AddClarification(ctx, intruder, reading.PublicID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitFeedback(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "june", "UTC")
	other := makeUser(t, db, "kara", "UTC")
	svc, _ := newTestService(t, db, nil, 15, time.Now())

	ctx := context.Background()
	reading, err := svc.CreateDaily(ctx, user)
	require.NoError(t, err)

	require.NoError(t, svc.SubmitFeedback(ctx, user, reading.PublicID, models.FeedbackPositive))
	var fresh models.Reading
	require.NoError(t, db.Where("public_id = ?", reading.PublicID).First(&fresh).Error)
	require.NotNil(t, fresh.Feedback)
	assert.Equal(t, models.FeedbackPositive, *fresh.Feedback)

	// Resubmission overwrites.
	require.NoError(t, svc.SubmitFeedback(ctx, user, reading.PublicID, models.FeedbackNegative))
	require.NoError(t, db.Where("public_id = ?", reading.PublicID).First(&fresh).Error)
	assert.Equal(t, models.FeedbackNegative, *fresh.Feedback)

	// Resubmitting the identical value succeeds; a same-value update must not
	// read as a missing reading.
	require.NoError(t, svc.SubmitFeedback(ctx, user, reading.PublicID, models.FeedbackNegative))
	require.NoError(t, db.Where("public_id = ?", reading.PublicID).First(&fresh).Error)
	require.NotNil(t, fresh.Feedback)
	assert.Equal(t, models.FeedbackNegative, *fresh.Feedback)

	// Ownership and value validation.
	assert.ErrorIs(t, svc.SubmitFeedback(ctx, other, reading.PublicID, models.FeedbackPositive), ErrNotFound)
	assert.ErrorIs(t, svc.SubmitFeedback(ctx, user, reading.PublicID, "meh"), ErrInvalidFeedback)
	assert.ErrorIs(t, svc.SubmitFeedback(ctx, user, "no-such-id", models.FeedbackPositive), ErrNotFound)
}

func TestTodayAndList(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "lena", "UTC")
	now := time.Date(2026, time.October, 10, 10, 0, 0, 0, time.UTC)
	svc, clock := newTestService(t, db, nil, 16, now)

	ctx := context.Background()
	_, err := svc.Today(ctx, user)
	assert.ErrorIs(t, err, ErrNotFound)

	daily, err := svc.CreateDaily(ctx, user)
	require.NoError(t, err)

	today, err := svc.Today(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, daily.PublicID, today.PublicID)
	require.Len(t, today.Cards, 1)

	*clock = now.Add(time.Hour)
	_, err = svc.CreateQuestion(ctx, user, "one?")
	require.NoError(t, err)
	*clock = now.Add(2 * time.Hour)
	_, err = svc.CreateQuestion(ctx, user, "two?")
	require.NoError(t, err)

	readings, total, err := svc.List(ctx, user, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, readings, 2)
	// Newest first.
	assert.Equal(t, "two?", readings[0].Question)
	assert.Equal(t, "one?", readings[1].Question)

	rest, _, err := svc.List(ctx, user, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, daily.PublicID, rest[0].PublicID)
}

func TestCollectionUpsert(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "mira", "UTC")
	now := time.Date(2026, time.November, 11, 11, 0, 0, 0, time.UTC)

	ctx := context.Background()

	// Two services with the same seed draw the same first card.
	svc1, _ := newTestService(t, db, nil, 42, now)
	first, err := svc1.CreateDaily(ctx, user)
	require.NoError(t, err)

	svc2, _ := newTestService(t, db, nil, 42, now.AddDate(0, 0, 1))
	second, err := svc2.CreateDaily(ctx, user)
	require.NoError(t, err)
	require.Equal(t, first.Cards[0].CardID, second.Cards[0].CardID)

	var entry models.CollectionEntry
	require.NoError(t, db.Where("user_id = ? AND card_id = ?", user.ID, first.Cards[0].CardID).First(&entry).Error)
	assert.Equal(t, 2, entry.TimesReceived)
	assert.True(t, entry.LastSeenAt.After(entry.FirstSeenAt))

	var entries int64
	require.NoError(t, db.Model(&models.CollectionEntry{}).Where("user_id = ?", user.ID).Count(&entries).Error)
	assert.EqualValues(t, 1, entries)
}

func TestGiftService_GrantAndList(t *testing.T) {
	db := openTestDB(t)
	user := makeUser(t, db, "nola", "UTC")
	gifts := NewGiftService(db)

	ctx := context.Background()
	_, err := gifts.Grant(ctx, user.ID, "daily", 1)
	assert.ErrorIs(t, err, ErrUnknownSpread)

	granted, err := gifts.Grant(ctx, user.ID, models.ReadingLove, 3)
	require.NoError(t, err)
	assert.Len(t, granted, 3)
	_, err = gifts.Grant(ctx, user.ID, models.ReadingMoney, 1)
	require.NoError(t, err)

	all, err := gifts.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	counts, err := gifts.UnusedCount(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, counts[models.ReadingLove])
	assert.EqualValues(t, 1, counts[models.ReadingMoney])
}
