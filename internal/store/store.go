// Package store persists users, their profile data, food entries and daily
// calorie summaries. Postgres is the production backend; SQLite serves local
// development and tests.
package store

import (
	"context"
	"strings"
	"time"

	"dietexpert/backend/internal/nutrition"
	"dietexpert/backend/internal/profile"
)

type User struct {
	ID          string
	Provider    string
	ProviderUID *string
	Email       *string
	FirstName   string
	CreatedAt   time.Time
}

// Store is the full persistence surface used by the API process.
type Store interface {
	nutrition.Store
	profile.Reader

	GetUser(ctx context.Context, userID string) (User, error)
	CreateUser(ctx context.Context, user User) error
	UpsertPhysical(ctx context.Context, userID string, physical profile.Physical) error
	UpsertHealth(ctx context.Context, userID string, health profile.Health) error
	Ping(ctx context.Context) error
	Close()
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*SQLite)(nil)
)

const dateLayout = time.DateOnly

func dateKey(date time.Time) string {
	return date.Format(dateLayout)
}

func nullableText[T ~string](value T) *string {
	trimmed := strings.TrimSpace(string(value))
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
