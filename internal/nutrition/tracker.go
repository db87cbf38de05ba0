package nutrition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dietexpert/backend/internal/logger"
	"dietexpert/backend/internal/profile"
)

// Tracker records food entries and keeps DailySummary rows in step with
// them. Every mutation recomputes the affected day from scratch.
type Tracker struct {
	store    Store
	profiles profile.Reader
	loc      *time.Location
	log      *logger.Logger
	now      func() time.Time
	newID    func() string
}

func NewTracker(store Store, profiles profile.Reader, loc *time.Location, log *logger.Logger) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{
		store:    store,
		profiles: profiles,
		loc:      loc,
		log:      logger.OrNop(log),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (t *Tracker) Location() *time.Location {
	return t.loc
}

func (t *Tracker) Now() time.Time {
	return t.now().In(t.loc)
}

// StartOfDay truncates value to midnight in the tracker's location.
func (t *Tracker) StartOfDay(value time.Time) time.Time {
	local := value.In(t.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, t.loc)
}

// StartOfWeek returns the Monday on or before value.
func (t *Tracker) StartOfWeek(value time.Time) time.Time {
	day := t.StartOfDay(value)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// RecordFoodEntries persists one entry per item, stamped with the current
// time, then recomputes today's summary.
func (t *Tracker) RecordFoodEntries(ctx context.Context, userID string, items []FoodItem, messageID *string) ([]FoodEntry, error) {
	if len(items) == 0 {
		return []FoodEntry{}, nil
	}
	for _, item := range items {
		if strings.TrimSpace(item.FoodName) == "" {
			return nil, ErrInvalidFoodName
		}
		if item.Calories < 0 {
			return nil, ErrInvalidCalories
		}
	}

	now := t.now().UTC()
	entries := make([]FoodEntry, len(items))
	for i, item := range items {
		entries[i] = FoodEntry{
			ID:         t.newID(),
			UserID:     userID,
			MessageID:  messageID,
			FoodName:   strings.TrimSpace(item.FoodName),
			Calories:   item.Calories,
			ConsumedAt: now,
			CreatedAt:  now,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range entries {
		entry := entries[i]
		g.Go(func() error {
			return t.store.CreateFoodEntry(gctx, entry)
		})
	}
	if err := g.Wait(); err != nil {
		t.log.Error("failed to create food entries", "user_id", userID, "error", err)
		// Sibling inserts may have landed; the day must still match its rows.
		if _, recomputeErr := t.RecomputeDailySummary(ctx, userID, now); recomputeErr != nil {
			t.log.Error("failed to recompute daily summary after partial insert", "user_id", userID, "error", recomputeErr)
		}
		return nil, fmt.Errorf("create food entries: %w", err)
	}
	t.log.Info("created food entries", "user_id", userID, "count", len(entries))

	if _, err := t.RecomputeDailySummary(ctx, userID, now); err != nil {
		return nil, err
	}
	return entries, nil
}

// RecomputeDailySummary sums every entry consumed on day and upserts the
// result together with the user's current goal. Safe to repeat.
func (t *Tracker) RecomputeDailySummary(ctx context.Context, userID string, day time.Time) (DailySummary, error) {
	start := t.StartOfDay(day)
	entries, err := t.store.ListFoodEntries(ctx, userID, start, start.AddDate(0, 0, 1))
	if err != nil {
		return DailySummary{}, fmt.Errorf("list food entries: %w", err)
	}

	total := 0
	for _, entry := range entries {
		total += entry.Calories
	}

	goal, err := t.goalCalories(ctx, userID)
	if err != nil {
		return DailySummary{}, err
	}

	summary := DailySummary{
		UserID:        userID,
		Date:          start,
		TotalCalories: total,
		GoalCalories:  goal,
	}
	if err := t.store.UpsertDailySummary(ctx, summary); err != nil {
		t.log.Error("failed to upsert daily summary", "user_id", userID, "date", start.Format(time.DateOnly), "error", err)
		return DailySummary{}, fmt.Errorf("upsert daily summary: %w", err)
	}
	t.log.Debug("updated daily calorie summary", "user_id", userID, "date", start.Format(time.DateOnly), "total_calories", total)
	return summary, nil
}

func (t *Tracker) goalCalories(ctx context.Context, userID string) (*int, error) {
	if t.profiles == nil {
		return nil, nil
	}
	snapshot, err := t.profiles.Snapshot(ctx, userID)
	if errors.Is(err, profile.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return GoalCalories(snapshot.Physical, snapshot.Health), nil
}

// DailyStats reads the stored summary. A day without one reports zero
// calories and no goal.
func (t *Tracker) DailyStats(ctx context.Context, userID string, day time.Time) (DailyStats, error) {
	start := t.StartOfDay(day)
	summary, ok, err := t.store.GetDailySummary(ctx, userID, start)
	if err != nil {
		return DailyStats{}, fmt.Errorf("get daily summary: %w", err)
	}
	if !ok {
		return DailyStats{Date: start, TotalCalories: 0}, nil
	}
	return DailyStats{Date: start, TotalCalories: summary.TotalCalories, GoalCalories: summary.GoalCalories}, nil
}

// WeeklyStats covers the seven days starting at weekStart. The average
// always divides by seven.
func (t *Tracker) WeeklyStats(ctx context.Context, userID string, weekStart time.Time) (WeeklyStats, error) {
	start := t.StartOfDay(weekStart)
	days, total, err := t.collectDays(ctx, userID, start, 7)
	if err != nil {
		return WeeklyStats{}, err
	}
	return WeeklyStats{
		WeekStart:       start,
		WeekEnd:         start.AddDate(0, 0, 6),
		Days:            days,
		TotalCalories:   total,
		AverageCalories: float64(total) / 7,
	}, nil
}

func (t *Tracker) MonthlyStats(ctx context.Context, userID string, year int, month time.Month) (MonthlyStats, error) {
	if month < time.January || month > time.December {
		return MonthlyStats{}, fmt.Errorf("invalid month %d", month)
	}
	count := DaysInMonth(year, month)
	start := time.Date(year, month, 1, 0, 0, 0, 0, t.loc)
	days, total, err := t.collectDays(ctx, userID, start, count)
	if err != nil {
		return MonthlyStats{}, err
	}
	return MonthlyStats{
		Year:            year,
		Month:           int(month),
		Days:            days,
		TotalCalories:   total,
		AverageCalories: float64(total) / float64(count),
	}, nil
}

func (t *Tracker) collectDays(ctx context.Context, userID string, start time.Time, count int) ([]DailyStats, int, error) {
	days := make([]DailyStats, 0, count)
	total := 0
	for i := 0; i < count; i++ {
		stats, err := t.DailyStats(ctx, userID, start.AddDate(0, 0, i))
		if err != nil {
			return nil, 0, err
		}
		days = append(days, stats)
		total += stats.TotalCalories
	}
	return days, total, nil
}

// FoodEntries lists entries newest first. Zero bounds are open.
func (t *Tracker) FoodEntries(ctx context.Context, userID string, from, to time.Time) ([]FoodEntry, error) {
	entries, err := t.store.ListFoodEntries(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list food entries: %w", err)
	}
	return entries, nil
}

func (t *Tracker) UpdateFoodEntry(ctx context.Context, userID, entryID string, patch FoodEntryPatch) (FoodEntry, error) {
	entry, err := t.store.GetFoodEntry(ctx, userID, entryID)
	if err != nil {
		return FoodEntry{}, err
	}

	if patch.FoodName != nil {
		name := strings.TrimSpace(*patch.FoodName)
		if name == "" {
			return FoodEntry{}, ErrInvalidFoodName
		}
		entry.FoodName = name
	}
	if patch.Calories != nil {
		if *patch.Calories < 0 {
			return FoodEntry{}, ErrInvalidCalories
		}
		entry.Calories = *patch.Calories
	}

	if err := t.store.UpdateFoodEntry(ctx, entry); err != nil {
		return FoodEntry{}, err
	}
	if _, err := t.RecomputeDailySummary(ctx, userID, entry.ConsumedAt); err != nil {
		return FoodEntry{}, err
	}
	return entry, nil
}

// DeleteFoodEntry removes the entry and recomputes the day it was consumed
// on, which need not be today.
func (t *Tracker) DeleteFoodEntry(ctx context.Context, userID, entryID string) error {
	entry, err := t.store.GetFoodEntry(ctx, userID, entryID)
	if err != nil {
		return err
	}
	if err := t.store.DeleteFoodEntry(ctx, userID, entryID); err != nil {
		return err
	}
	if _, err := t.RecomputeDailySummary(ctx, userID, entry.ConsumedAt); err != nil {
		return err
	}
	t.log.Info("deleted food entry", "user_id", userID, "entry_id", entryID)
	return nil
}
