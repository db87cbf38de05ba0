package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dietexpert/backend/internal/nutrition"
	"dietexpert/backend/internal/profile"
)

//go:embed schema_postgres.sql
var postgresSchema string

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() {
	s.pool.Close()
}

// EnsureSchema creates any missing tables. Existing tables are left as is.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Postgres) ValidateSchema(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("database pool is nil")
	}

	requiredColumns := []struct {
		table  string
		column string
	}{
		{table: "User", column: "firstName"},
		{table: "UserProfile", column: "weight"},
		{table: "UserHealth", column: "activityLevel"},
		{table: "FoodEntry", column: "consumedAt"},
		{table: "FoodEntry", column: "messageId"},
		{table: "DailyCalorieSummary", column: "goalCalories"},
	}

	for _, item := range requiredColumns {
		ok, err := s.columnExists(ctx, item.table, item.column)
		if err != nil {
			return fmt.Errorf(
				"failed checking schema for %s.%s: %w",
				item.table,
				item.column,
				err,
			)
		}
		if !ok {
			return fmt.Errorf(
				"required column %s.%s is missing; start with AUTO_MIGRATE=true",
				item.table,
				item.column,
			)
		}
	}
	return nil
}

func (s *Postgres) columnExists(ctx context.Context, tableName, columnName string) (bool, error) {
	table := strings.TrimSpace(tableName)
	column := strings.TrimSpace(columnName)
	if table == "" || column == "" {
		return false, fmt.Errorf("table/column must not be empty")
	}
	var exists bool
	err := s.pool.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM information_schema.columns
		   WHERE table_schema = current_schema()
		     AND lower(table_name) = lower($1)
		     AND lower(column_name) = lower($2)
		 )`,
		table,
		column,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Postgres) GetUser(ctx context.Context, userID string) (User, error) {
	user := User{}
	err := s.pool.QueryRow(
		ctx,
		`SELECT id, provider, "providerUid", email, "firstName", "createdAt" FROM "User" WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.Provider, &user.ProviderUID, &user.Email, &user.FirstName, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, profile.ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Postgres) CreateUser(ctx context.Context, user User) error {
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO "User" (id, provider, "providerUid", email, "firstName", "createdAt")
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		user.ID,
		user.Provider,
		user.ProviderUID,
		user.Email,
		user.FirstName,
		createdAt,
	)
	return err
}

func (s *Postgres) UpsertPhysical(ctx context.Context, userID string, physical profile.Physical) error {
	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO "UserProfile" ("userId", weight, height, age, sex, "updatedAt")
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT ("userId") DO UPDATE SET
		   weight = EXCLUDED.weight,
		   height = EXCLUDED.height,
		   age = EXCLUDED.age,
		   sex = EXCLUDED.sex,
		   "updatedAt" = NOW()`,
		userID,
		physical.WeightKg,
		physical.HeightCm,
		physical.Age,
		nullableText(physical.Sex),
	)
	return err
}

func (s *Postgres) UpsertHealth(ctx context.Context, userID string, health profile.Health) error {
	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO "UserHealth" ("userId", "activityLevel", goal, "dietaryRestrictions", "medicalConditions", allergies, "updatedAt")
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT ("userId") DO UPDATE SET
		   "activityLevel" = EXCLUDED."activityLevel",
		   goal = EXCLUDED.goal,
		   "dietaryRestrictions" = EXCLUDED."dietaryRestrictions",
		   "medicalConditions" = EXCLUDED."medicalConditions",
		   allergies = EXCLUDED.allergies,
		   "updatedAt" = NOW()`,
		userID,
		nullableText(health.ActivityLevel),
		nullableText(health.Goal),
		cleanList(health.DietaryRestrictions),
		cleanList(health.MedicalConditions),
		cleanList(health.Allergies),
	)
	return err
}

func (s *Postgres) Snapshot(ctx context.Context, userID string) (profile.Snapshot, error) {
	var (
		snapshot                      profile.Snapshot
		hasProfile, hasHealth         bool
		weight, height                *float64
		age                           *int
		sex, activityLevel, goal      *string
		restrictions, conditions, alg []string
	)
	err := s.pool.QueryRow(
		ctx,
		`SELECT u.id, u."firstName",
		        p."userId" IS NOT NULL, p.weight, p.height, p.age, p.sex,
		        h."userId" IS NOT NULL, h."activityLevel", h.goal,
		        h."dietaryRestrictions", h."medicalConditions", h.allergies
		 FROM "User" u
		 LEFT JOIN "UserProfile" p ON p."userId" = u.id
		 LEFT JOIN "UserHealth" h ON h."userId" = u.id
		 WHERE u.id = $1`,
		userID,
	).Scan(
		&snapshot.UserID, &snapshot.FirstName,
		&hasProfile, &weight, &height, &age, &sex,
		&hasHealth, &activityLevel, &goal,
		&restrictions, &conditions, &alg,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return profile.Snapshot{}, profile.ErrUserNotFound
	}
	if err != nil {
		return profile.Snapshot{}, err
	}

	if hasProfile {
		snapshot.Physical = &profile.Physical{WeightKg: weight, HeightCm: height, Age: age, Sex: profile.Sex(deref(sex))}
	}
	if hasHealth {
		snapshot.Health = &profile.Health{
			ActivityLevel:       profile.ActivityLevel(deref(activityLevel)),
			Goal:                profile.Goal(deref(goal)),
			DietaryRestrictions: restrictions,
			MedicalConditions:   conditions,
			Allergies:           alg,
		}
	}
	return snapshot, nil
}

func (s *Postgres) CreateFoodEntry(ctx context.Context, entry nutrition.FoodEntry) error {
	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO "FoodEntry" (id, "userId", "messageId", "foodName", calories, "consumedAt", "createdAt")
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID,
		entry.UserID,
		entry.MessageID,
		entry.FoodName,
		entry.Calories,
		entry.ConsumedAt,
		entry.CreatedAt,
	)
	return err
}

func (s *Postgres) GetFoodEntry(ctx context.Context, userID, entryID string) (nutrition.FoodEntry, error) {
	entry := nutrition.FoodEntry{}
	err := s.pool.QueryRow(
		ctx,
		`SELECT id, "userId", "messageId", "foodName", calories, "consumedAt", "createdAt"
		 FROM "FoodEntry"
		 WHERE id = $1 AND "userId" = $2`,
		entryID,
		userID,
	).Scan(&entry.ID, &entry.UserID, &entry.MessageID, &entry.FoodName, &entry.Calories, &entry.ConsumedAt, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nutrition.FoodEntry{}, nutrition.ErrEntryNotFound
	}
	if err != nil {
		return nutrition.FoodEntry{}, err
	}
	return entry, nil
}

func (s *Postgres) UpdateFoodEntry(ctx context.Context, entry nutrition.FoodEntry) error {
	tag, err := s.pool.Exec(
		ctx,
		`UPDATE "FoodEntry" SET "foodName" = $3, calories = $4
		 WHERE id = $1 AND "userId" = $2`,
		entry.ID,
		entry.UserID,
		entry.FoodName,
		entry.Calories,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nutrition.ErrEntryNotFound
	}
	return nil
}

func (s *Postgres) DeleteFoodEntry(ctx context.Context, userID, entryID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM "FoodEntry" WHERE id = $1 AND "userId" = $2`, entryID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nutrition.ErrEntryNotFound
	}
	return nil
}

func (s *Postgres) ListFoodEntries(ctx context.Context, userID string, from, to time.Time) ([]nutrition.FoodEntry, error) {
	query := `SELECT id, "userId", "messageId", "foodName", calories, "consumedAt", "createdAt"
	          FROM "FoodEntry"
	          WHERE "userId" = $1`
	args := []any{userID}
	if !from.IsZero() {
		args = append(args, from.UTC())
		query += fmt.Sprintf(` AND "consumedAt" >= $%d`, len(args))
	}
	if !to.IsZero() {
		args = append(args, to.UTC())
		query += fmt.Sprintf(` AND "consumedAt" < $%d`, len(args))
	}
	query += ` ORDER BY "consumedAt" DESC, "createdAt" DESC, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []nutrition.FoodEntry{}
	for rows.Next() {
		entry := nutrition.FoodEntry{}
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.MessageID, &entry.FoodName, &entry.Calories, &entry.ConsumedAt, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Postgres) UpsertDailySummary(ctx context.Context, summary nutrition.DailySummary) error {
	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO "DailyCalorieSummary" ("userId", date, "totalCalories", "goalCalories", "updatedAt")
		 VALUES ($1, $2::date, $3, $4, NOW())
		 ON CONFLICT ("userId", date) DO UPDATE SET
		   "totalCalories" = EXCLUDED."totalCalories",
		   "goalCalories" = EXCLUDED."goalCalories",
		   "updatedAt" = NOW()`,
		summary.UserID,
		dateKey(summary.Date),
		summary.TotalCalories,
		summary.GoalCalories,
	)
	return err
}

func (s *Postgres) GetDailySummary(ctx context.Context, userID string, date time.Time) (nutrition.DailySummary, bool, error) {
	summary := nutrition.DailySummary{UserID: userID, Date: date}
	err := s.pool.QueryRow(
		ctx,
		`SELECT "totalCalories", "goalCalories" FROM "DailyCalorieSummary"
		 WHERE "userId" = $1 AND date = $2::date`,
		userID,
		dateKey(date),
	).Scan(&summary.TotalCalories, &summary.GoalCalories)
	if errors.Is(err, pgx.ErrNoRows) {
		return nutrition.DailySummary{}, false, nil
	}
	if err != nil {
		return nutrition.DailySummary{}, false, err
	}
	return summary, true, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
