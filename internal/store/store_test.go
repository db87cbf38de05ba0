package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"dietexpert/backend/internal/logger"
	"dietexpert/backend/internal/nutrition"
	"dietexpert/backend/internal/profile"
)

func newSQLiteForTest(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nutrition.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func createTestUser(t *testing.T, s Store, firstName string) string {
	t.Helper()
	id := uuid.NewString()
	if err := s.CreateUser(context.Background(), User{ID: id, Provider: "email", FirstName: firstName}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("users and snapshots", func(t *testing.T) {
		userID := createTestUser(t, s, "Ada")

		user, err := s.GetUser(ctx, userID)
		if err != nil {
			t.Fatalf("get user: %v", err)
		}
		if user.FirstName != "Ada" || user.Provider != "email" {
			t.Fatalf("unexpected user: %+v", user)
		}
		if _, err := s.GetUser(ctx, uuid.NewString()); !errors.Is(err, profile.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}

		snapshot, err := s.Snapshot(ctx, userID)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if snapshot.Physical != nil || snapshot.Health != nil {
			t.Fatalf("expected empty profile sections, got %+v", snapshot)
		}

		weight, height, age := 80.0, 180.0, 30
		if err := s.UpsertPhysical(ctx, userID, profile.Physical{WeightKg: &weight, HeightCm: &height, Age: &age, Sex: profile.SexMale}); err != nil {
			t.Fatalf("upsert physical: %v", err)
		}
		if err := s.UpsertHealth(ctx, userID, profile.Health{
			ActivityLevel: profile.ActivitySedentary,
			Goal:          profile.GoalMaintenance,
			Allergies:     []string{"peanuts", " "},
		}); err != nil {
			t.Fatalf("upsert health: %v", err)
		}

		snapshot, err = s.Snapshot(ctx, userID)
		if err != nil {
			t.Fatalf("snapshot after upsert: %v", err)
		}
		if snapshot.FirstName != "Ada" || snapshot.Physical == nil || snapshot.Health == nil {
			t.Fatalf("unexpected snapshot: %+v", snapshot)
		}
		if *snapshot.Physical.WeightKg != 80 || *snapshot.Physical.Age != 30 || snapshot.Physical.Sex != profile.SexMale {
			t.Fatalf("unexpected physical: %+v", snapshot.Physical)
		}
		if snapshot.Health.ActivityLevel != profile.ActivitySedentary || len(snapshot.Health.Allergies) != 1 {
			t.Fatalf("unexpected health: %+v", snapshot.Health)
		}
	})

	t.Run("food entries", func(t *testing.T) {
		userID := createTestUser(t, s, "Bo")
		otherID := createTestUser(t, s, "Cy")
		base := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
		messageID := "msg-7"

		entries := []nutrition.FoodEntry{
			{ID: uuid.NewString(), UserID: userID, MessageID: &messageID, FoodName: "Porridge", Calories: 250, ConsumedAt: base, CreatedAt: base},
			{ID: uuid.NewString(), UserID: userID, FoodName: "Soup", Calories: 180, ConsumedAt: base.Add(4 * time.Hour), CreatedAt: base},
			{ID: uuid.NewString(), UserID: userID, FoodName: "Stew", Calories: 520, ConsumedAt: base.AddDate(0, 0, 1), CreatedAt: base},
		}
		for _, entry := range entries {
			if err := s.CreateFoodEntry(ctx, entry); err != nil {
				t.Fatalf("create entry: %v", err)
			}
		}

		got, err := s.GetFoodEntry(ctx, userID, entries[0].ID)
		if err != nil {
			t.Fatalf("get entry: %v", err)
		}
		if got.MessageID == nil || *got.MessageID != messageID || !got.ConsumedAt.Equal(base) {
			t.Fatalf("unexpected entry: %+v", got)
		}
		if _, err := s.GetFoodEntry(ctx, otherID, entries[0].ID); !errors.Is(err, nutrition.ErrEntryNotFound) {
			t.Fatalf("expected foreign lookup to fail, got %v", err)
		}

		day, err := s.ListFoodEntries(ctx, userID, base.Truncate(24*time.Hour), base.Truncate(24*time.Hour).AddDate(0, 0, 1))
		if err != nil {
			t.Fatalf("list day: %v", err)
		}
		if len(day) != 2 || day[0].FoodName != "Soup" || day[1].FoodName != "Porridge" {
			t.Fatalf("expected newest-first day entries, got %+v", day)
		}
		all, err := s.ListFoodEntries(ctx, userID, time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("list all: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(all))
		}

		updated := got
		updated.Calories = 300
		if err := s.UpdateFoodEntry(ctx, updated); err != nil {
			t.Fatalf("update: %v", err)
		}
		foreign := updated
		foreign.UserID = otherID
		if err := s.UpdateFoodEntry(ctx, foreign); !errors.Is(err, nutrition.ErrEntryNotFound) {
			t.Fatalf("expected foreign update to fail, got %v", err)
		}

		if err := s.DeleteFoodEntry(ctx, otherID, entries[1].ID); !errors.Is(err, nutrition.ErrEntryNotFound) {
			t.Fatalf("expected foreign delete to fail, got %v", err)
		}
		if err := s.DeleteFoodEntry(ctx, userID, entries[1].ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := s.DeleteFoodEntry(ctx, userID, entries[1].ID); !errors.Is(err, nutrition.ErrEntryNotFound) {
			t.Fatalf("expected second delete to fail, got %v", err)
		}
	})

	t.Run("daily summaries", func(t *testing.T) {
		userID := createTestUser(t, s, "Di")
		date := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

		if _, ok, err := s.GetDailySummary(ctx, userID, date); err != nil || ok {
			t.Fatalf("expected no summary yet, ok=%v err=%v", ok, err)
		}

		goal := 2100
		if err := s.UpsertDailySummary(ctx, nutrition.DailySummary{UserID: userID, Date: date, TotalCalories: 400, GoalCalories: &goal}); err != nil {
			t.Fatalf("upsert summary: %v", err)
		}
		if err := s.UpsertDailySummary(ctx, nutrition.DailySummary{UserID: userID, Date: date, TotalCalories: 650}); err != nil {
			t.Fatalf("second upsert: %v", err)
		}

		summary, ok, err := s.GetDailySummary(ctx, userID, date)
		if err != nil || !ok {
			t.Fatalf("expected summary, ok=%v err=%v", ok, err)
		}
		if summary.TotalCalories != 650 || summary.GoalCalories != nil {
			t.Fatalf("expected last write to win, got %+v", summary)
		}
	})

	t.Run("tracker round trip", func(t *testing.T) {
		userID := createTestUser(t, s, "Eli")
		weight, height, age := 80.0, 180.0, 30
		if err := s.UpsertPhysical(ctx, userID, profile.Physical{WeightKg: &weight, HeightCm: &height, Age: &age, Sex: profile.SexMale}); err != nil {
			t.Fatalf("upsert physical: %v", err)
		}
		if err := s.UpsertHealth(ctx, userID, profile.Health{ActivityLevel: profile.ActivitySedentary, Goal: profile.GoalMaintenance}); err != nil {
			t.Fatalf("upsert health: %v", err)
		}

		tracker := nutrition.NewTracker(s, s, time.UTC, logger.NewNop())
		entries, err := tracker.RecordFoodEntries(ctx, userID, []nutrition.FoodItem{
			{FoodName: "Grilled chicken", Calories: 300},
			{FoodName: "Rice", Calories: 200},
		}, nil)
		if err != nil {
			t.Fatalf("record: %v", err)
		}

		stats, err := tracker.DailyStats(ctx, userID, entries[0].ConsumedAt)
		if err != nil {
			t.Fatalf("daily stats: %v", err)
		}
		if stats.TotalCalories != 500 || stats.GoalCalories == nil || *stats.GoalCalories != 2224 {
			t.Fatalf("unexpected stats: %+v", stats)
		}

		if err := tracker.DeleteFoodEntry(ctx, userID, entries[1].ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		stats, err = tracker.DailyStats(ctx, userID, entries[1].ConsumedAt)
		if err != nil {
			t.Fatalf("daily stats after delete: %v", err)
		}
		if stats.TotalCalories != 300 {
			t.Fatalf("expected 300 after delete, got %d", stats.TotalCalories)
		}
	})
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, newSQLiteForTest(t))
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	first, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.CreateUser(context.Background(), User{ID: "u-1", Provider: "email", FirstName: "Fay"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	first.Close()

	second, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	user, err := second.GetUser(context.Background(), "u-1")
	if err != nil || user.FirstName != "Fay" {
		t.Fatalf("expected persisted user, got %+v err=%v", user, err)
	}
}

func TestSQLiteTimeFormatSortsChronologically(t *testing.T) {
	earlier := formatSQLiteTime(time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 5*3600)))
	later := formatSQLiteTime(time.Date(2026, 1, 2, 3, 4, 5, 1, time.UTC))
	if !(earlier < later) {
		t.Fatalf("expected %q < %q", earlier, later)
	}
	parsed, err := parseSQLiteTime(later)
	if err != nil || parsed.Nanosecond() != 1 {
		t.Fatalf("expected nanosecond precision, got %v err=%v", parsed, err)
	}
}
