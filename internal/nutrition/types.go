package nutrition

import (
	"context"
	"errors"
	"time"
)

// MixedPlateLabel names the single record produced when a reply states a
// grand total instead of a per-item breakdown.
const MixedPlateLabel = "Mixed Plate"

var (
	ErrEntryNotFound   = errors.New("food entry not found or not permitted")
	ErrInvalidCalories = errors.New("calories must be a non-negative integer")
	ErrInvalidFoodName = errors.New("food_name must not be empty")
)

type FoodItem struct {
	FoodName string `json:"food_name"`
	Calories int    `json:"calories"`
}

type FoodEntry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	MessageID  *string   `json:"message_id,omitempty"`
	FoodName   string    `json:"food_name"`
	Calories   int       `json:"calories"`
	ConsumedAt time.Time `json:"consumed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// DailySummary is keyed by (UserID, Date). Date carries no time component
// in the tracker's location.
type DailySummary struct {
	UserID        string
	Date          time.Time
	TotalCalories int
	GoalCalories  *int
}

type DailyStats struct {
	Date          time.Time `json:"date"`
	TotalCalories int       `json:"total_calories"`
	GoalCalories  *int      `json:"goal_calories,omitempty"`
}

type WeeklyStats struct {
	WeekStart       time.Time    `json:"week_start"`
	WeekEnd         time.Time    `json:"week_end"`
	Days            []DailyStats `json:"days"`
	TotalCalories   int          `json:"total_calories"`
	AverageCalories float64      `json:"average_calories"`
}

type MonthlyStats struct {
	Year            int          `json:"year"`
	Month           int          `json:"month"`
	Days            []DailyStats `json:"days"`
	TotalCalories   int          `json:"total_calories"`
	AverageCalories float64      `json:"average_calories"`
}

// FoodEntryPatch carries an explicit user edit. Nil fields are left alone.
type FoodEntryPatch struct {
	FoodName *string `json:"food_name"`
	Calories *int    `json:"calories"`
}

// Store persists food entries and the per-day summaries derived from them.
// Range bounds are [from, to); a zero bound means unbounded.
type Store interface {
	CreateFoodEntry(ctx context.Context, entry FoodEntry) error
	GetFoodEntry(ctx context.Context, userID, entryID string) (FoodEntry, error)
	UpdateFoodEntry(ctx context.Context, entry FoodEntry) error
	DeleteFoodEntry(ctx context.Context, userID, entryID string) error
	ListFoodEntries(ctx context.Context, userID string, from, to time.Time) ([]FoodEntry, error)
	UpsertDailySummary(ctx context.Context, summary DailySummary) error
	GetDailySummary(ctx context.Context, userID string, date time.Time) (DailySummary, bool, error)
}
