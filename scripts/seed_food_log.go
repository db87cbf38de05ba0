package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"dietexpert/backend/internal/config"
	"dietexpert/backend/internal/logger"
	"dietexpert/backend/internal/nutrition"
	"dietexpert/backend/internal/profile"
	"dietexpert/backend/internal/store"
)

type seedMeal struct {
	AtHM string
	Text string
}

var seedMeals = []seedMeal{
	{
		AtHM: "07:40",
		Text: "I had breakfast:\n- Oatmeal: 150 calories\n- Banana: 105 calories\n- Coffee: 5 calories",
	},
	{
		AtHM: "12:30",
		Text: "For lunch I ate:\n- Grilled chicken salad: 420 calories\n- Whole wheat bread: 80 calories",
	},
	{
		AtHM: "16:00",
		Text: "Snack: Greek yogurt with honey is about 180 calories.",
	},
	{
		AtHM: "19:15",
		Text: "Dinner was salmon with rice and broccoli. Total calories: approximately 600-700 calories",
	},
}

func main() {
	var (
		mode   string
		userID string
		days   int
		tag    string
	)

	flag.StringVar(&mode, "mode", "seed", "seed or cleanup")
	flag.StringVar(&userID, "user-id", "", "target user id (created when missing)")
	flag.IntVar(&days, "days", 7, "number of days to fill, ending today")
	flag.StringVar(&tag, "tag", "seed_food_log_v1", "message id tag used for insert/delete")
	flag.Parse()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		log.Fatalf("-user-id is required")
	}
	if days < 1 || days > 90 {
		log.Fatalf("-days must be between 1 and 90")
	}

	cfg := config.Load()
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("load timezone: %v", err)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg, logger.NewNop())
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	if err := ensureUser(ctx, st, userID); err != nil {
		log.Fatalf("resolve user: %v", err)
	}

	tracker := nutrition.NewTracker(st, st, loc, logger.NewNop())
	today := tracker.StartOfDay(tracker.Now())
	from := today.AddDate(0, 0, -(days - 1))
	to := today.AddDate(0, 0, 1)

	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "cleanup", "delete", "remove":
		deleted, err := cleanupSeed(ctx, tracker, userID, tag, from, to)
		if err != nil {
			log.Fatalf("cleanup: %v", err)
		}
		fmt.Printf("cleanup complete user_id=%s tag=%s deleted=%d\n", userID, tag, deleted)
		return
	case "seed":
		// continue
	default:
		log.Fatalf("unsupported mode %q (use seed or cleanup)", mode)
	}

	// Repeated runs replace the previous seed.
	replaced, err := cleanupSeed(ctx, tracker, userID, tag, from, to)
	if err != nil {
		log.Fatalf("cleanup existing seed rows: %v", err)
	}

	extractor := nutrition.NewExtractor(logger.NewNop())
	messageID := tag
	inserted := 0
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		for _, meal := range seedMeals {
			consumedAt, err := parseLocalDateTime(day, meal.AtHM, loc)
			if err != nil {
				log.Fatalf("parse meal time (%s %s): %v", day.Format(time.DateOnly), meal.AtHM, err)
			}
			for _, item := range extractor.ParseText(meal.Text) {
				if err := st.CreateFoodEntry(ctx, nutrition.FoodEntry{
					ID:         uuid.NewString(),
					UserID:     userID,
					MessageID:  &messageID,
					FoodName:   item.FoodName,
					Calories:   item.Calories,
					ConsumedAt: consumedAt,
					CreatedAt:  time.Now().UTC(),
				}); err != nil {
					log.Fatalf("insert food entry (%s): %v", item.FoodName, err)
				}
				inserted++
			}
		}
		if _, err := tracker.RecomputeDailySummary(ctx, userID, day); err != nil {
			log.Fatalf("recompute summary %s: %v", day.Format(time.DateOnly), err)
		}
	}

	fmt.Printf(
		"seed complete user_id=%s from=%s days=%d tz=%s tag=%s inserted=%d replaced=%d\n",
		userID,
		from.Format(time.DateOnly),
		days,
		loc.String(),
		tag,
		inserted,
		replaced,
	)
}

func ensureUser(ctx context.Context, st store.Store, userID string) error {
	_, err := st.GetUser(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, profile.ErrUserNotFound) {
		return err
	}
	return st.CreateUser(ctx, store.User{ID: userID, Provider: "email", FirstName: "Seed"})
}

func parseLocalDateTime(day time.Time, hourMinute string, loc *time.Location) (time.Time, error) {
	parsed, err := time.ParseInLocation(
		"2006-01-02 15:04",
		day.Format(time.DateOnly)+" "+strings.TrimSpace(hourMinute),
		loc,
	)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func cleanupSeed(ctx context.Context, tracker *nutrition.Tracker, userID, tag string, from, to time.Time) (int, error) {
	entries, err := tracker.FoodEntries(ctx, userID, from, to)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, entry := range entries {
		if entry.MessageID == nil || *entry.MessageID != tag {
			continue
		}
		if err := tracker.DeleteFoodEntry(ctx, userID, entry.ID); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
