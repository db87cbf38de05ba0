package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"dietexpert/backend/internal/nutrition"
	"dietexpert/backend/internal/profile"
)

// Timestamps are stored as fixed-width UTC text so string comparison
// matches chronological order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLite{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() {
	_ = s.db.Close()
}

func (s *SQLite) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS "User" (
        id TEXT PRIMARY KEY,
        provider TEXT NOT NULL DEFAULT 'email',
        "providerUid" TEXT,
        email TEXT,
        "firstName" TEXT NOT NULL DEFAULT '',
        "createdAt" TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS "UserProfile" (
        "userId" TEXT PRIMARY KEY REFERENCES "User"(id) ON DELETE CASCADE,
        weight REAL,
        height REAL,
        age INTEGER,
        sex TEXT,
        "updatedAt" TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS "UserHealth" (
        "userId" TEXT PRIMARY KEY REFERENCES "User"(id) ON DELETE CASCADE,
        "activityLevel" TEXT,
        goal TEXT,
        "dietaryRestrictions" TEXT NOT NULL DEFAULT '[]',
        "medicalConditions" TEXT NOT NULL DEFAULT '[]',
        allergies TEXT NOT NULL DEFAULT '[]',
        "updatedAt" TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS "FoodEntry" (
        id TEXT PRIMARY KEY,
        "userId" TEXT NOT NULL REFERENCES "User"(id) ON DELETE CASCADE,
        "messageId" TEXT,
        "foodName" TEXT NOT NULL,
        calories INTEGER NOT NULL CHECK (calories >= 0),
        "consumedAt" TEXT NOT NULL,
        "createdAt" TEXT NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_food_entry_user_consumed ON "FoodEntry"("userId", "consumedAt");

    CREATE TABLE IF NOT EXISTS "DailyCalorieSummary" (
        "userId" TEXT NOT NULL REFERENCES "User"(id) ON DELETE CASCADE,
        date TEXT NOT NULL,
        "totalCalories" INTEGER NOT NULL DEFAULT 0,
        "goalCalories" INTEGER,
        "updatedAt" TEXT NOT NULL,
        PRIMARY KEY ("userId", date)
    );
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func formatSQLiteTime(value time.Time) string {
	return value.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(raw string) (time.Time, error) {
	parsed, err := time.Parse(sqliteTimeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", raw, err)
	}
	return parsed, nil
}

func nowSQLite() string {
	return formatSQLiteTime(time.Now())
}

func (s *SQLite) GetUser(ctx context.Context, userID string) (User, error) {
	user := User{}
	var providerUID, email sql.NullString
	var createdAt string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, provider, "providerUid", email, "firstName", "createdAt" FROM "User" WHERE id = ?`,
		userID,
	).Scan(&user.ID, &user.Provider, &providerUID, &email, &user.FirstName, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, profile.ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	if user.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return User{}, err
	}
	user.ProviderUID = nullStringPtr(providerUID)
	user.Email = nullStringPtr(email)
	return user, nil
}

func (s *SQLite) CreateUser(ctx context.Context, user User) error {
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO "User" (id, provider, "providerUid", email, "firstName", "createdAt")
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		user.ID,
		user.Provider,
		user.ProviderUID,
		user.Email,
		user.FirstName,
		formatSQLiteTime(createdAt),
	)
	return err
}

func (s *SQLite) UpsertPhysical(ctx context.Context, userID string, physical profile.Physical) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO "UserProfile" ("userId", weight, height, age, sex, "updatedAt")
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT ("userId") DO UPDATE SET
		   weight = excluded.weight,
		   height = excluded.height,
		   age = excluded.age,
		   sex = excluded.sex,
		   "updatedAt" = excluded."updatedAt"`,
		userID,
		physical.WeightKg,
		physical.HeightCm,
		physical.Age,
		nullableText(physical.Sex),
		nowSQLite(),
	)
	return err
}

func (s *SQLite) UpsertHealth(ctx context.Context, userID string, health profile.Health) error {
	restrictions, err := encodeList(health.DietaryRestrictions)
	if err != nil {
		return err
	}
	conditions, err := encodeList(health.MedicalConditions)
	if err != nil {
		return err
	}
	allergies, err := encodeList(health.Allergies)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO "UserHealth" ("userId", "activityLevel", goal, "dietaryRestrictions", "medicalConditions", allergies, "updatedAt")
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT ("userId") DO UPDATE SET
		   "activityLevel" = excluded."activityLevel",
		   goal = excluded.goal,
		   "dietaryRestrictions" = excluded."dietaryRestrictions",
		   "medicalConditions" = excluded."medicalConditions",
		   allergies = excluded.allergies,
		   "updatedAt" = excluded."updatedAt"`,
		userID,
		nullableText(health.ActivityLevel),
		nullableText(health.Goal),
		restrictions,
		conditions,
		allergies,
		nowSQLite(),
	)
	return err
}

func (s *SQLite) Snapshot(ctx context.Context, userID string) (profile.Snapshot, error) {
	var (
		snapshot                                  profile.Snapshot
		profileUser, healthUser                   sql.NullString
		weight, height                            sql.NullFloat64
		age                                       sql.NullInt64
		sex, activityLevel, goal                  sql.NullString
		restrictionsRaw, conditionsRaw, allergies sql.NullString
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT u.id, u."firstName",
		        p."userId", p.weight, p.height, p.age, p.sex,
		        h."userId", h."activityLevel", h.goal,
		        h."dietaryRestrictions", h."medicalConditions", h.allergies
		 FROM "User" u
		 LEFT JOIN "UserProfile" p ON p."userId" = u.id
		 LEFT JOIN "UserHealth" h ON h."userId" = u.id
		 WHERE u.id = ?`,
		userID,
	).Scan(
		&snapshot.UserID, &snapshot.FirstName,
		&profileUser, &weight, &height, &age, &sex,
		&healthUser, &activityLevel, &goal,
		&restrictionsRaw, &conditionsRaw, &allergies,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.Snapshot{}, profile.ErrUserNotFound
	}
	if err != nil {
		return profile.Snapshot{}, err
	}

	if profileUser.Valid {
		physical := &profile.Physical{Sex: profile.Sex(sex.String)}
		if weight.Valid {
			physical.WeightKg = &weight.Float64
		}
		if height.Valid {
			physical.HeightCm = &height.Float64
		}
		if age.Valid {
			value := int(age.Int64)
			physical.Age = &value
		}
		snapshot.Physical = physical
	}

	if healthUser.Valid {
		health := &profile.Health{
			ActivityLevel: profile.ActivityLevel(activityLevel.String),
			Goal:          profile.Goal(goal.String),
		}
		if health.DietaryRestrictions, err = decodeList(restrictionsRaw); err != nil {
			return profile.Snapshot{}, err
		}
		if health.MedicalConditions, err = decodeList(conditionsRaw); err != nil {
			return profile.Snapshot{}, err
		}
		if health.Allergies, err = decodeList(allergies); err != nil {
			return profile.Snapshot{}, err
		}
		snapshot.Health = health
	}
	return snapshot, nil
}

func (s *SQLite) CreateFoodEntry(ctx context.Context, entry nutrition.FoodEntry) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO "FoodEntry" (id, "userId", "messageId", "foodName", calories, "consumedAt", "createdAt")
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.MessageID,
		entry.FoodName,
		entry.Calories,
		formatSQLiteTime(entry.ConsumedAt),
		formatSQLiteTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert food entry: %w", err)
	}
	return nil
}

const sqliteEntryColumns = `id, "userId", "messageId", "foodName", calories, "consumedAt", "createdAt"`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteEntry(row rowScanner) (nutrition.FoodEntry, error) {
	entry := nutrition.FoodEntry{}
	var messageID sql.NullString
	var consumedAt, createdAt string
	if err := row.Scan(&entry.ID, &entry.UserID, &messageID, &entry.FoodName, &entry.Calories, &consumedAt, &createdAt); err != nil {
		return nutrition.FoodEntry{}, err
	}
	var err error
	if entry.ConsumedAt, err = parseSQLiteTime(consumedAt); err != nil {
		return nutrition.FoodEntry{}, err
	}
	if entry.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nutrition.FoodEntry{}, err
	}
	entry.MessageID = nullStringPtr(messageID)
	return entry, nil
}

func (s *SQLite) GetFoodEntry(ctx context.Context, userID, entryID string) (nutrition.FoodEntry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+sqliteEntryColumns+` FROM "FoodEntry" WHERE id = ? AND "userId" = ?`,
		entryID,
		userID,
	)
	entry, err := scanSQLiteEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nutrition.FoodEntry{}, nutrition.ErrEntryNotFound
	}
	return entry, err
}

func (s *SQLite) UpdateFoodEntry(ctx context.Context, entry nutrition.FoodEntry) error {
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE "FoodEntry" SET "foodName" = ?, calories = ? WHERE id = ? AND "userId" = ?`,
		entry.FoodName,
		entry.Calories,
		entry.ID,
		entry.UserID,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (s *SQLite) DeleteFoodEntry(ctx context.Context, userID, entryID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM "FoodEntry" WHERE id = ? AND "userId" = ?`, entryID, userID)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return nutrition.ErrEntryNotFound
	}
	return nil
}

func (s *SQLite) ListFoodEntries(ctx context.Context, userID string, from, to time.Time) ([]nutrition.FoodEntry, error) {
	query := `SELECT ` + sqliteEntryColumns + ` FROM "FoodEntry" WHERE "userId" = ?`
	args := []interface{}{userID}

	if !from.IsZero() {
		query += ` AND "consumedAt" >= ?`
		args = append(args, formatSQLiteTime(from))
	}
	if !to.IsZero() {
		query += ` AND "consumedAt" < ?`
		args = append(args, formatSQLiteTime(to))
	}
	query += ` ORDER BY "consumedAt" DESC, "createdAt" DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query food entries: %w", err)
	}
	defer rows.Close()

	entries := []nutrition.FoodEntry{}
	for rows.Next() {
		entry, err := scanSQLiteEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLite) UpsertDailySummary(ctx context.Context, summary nutrition.DailySummary) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO "DailyCalorieSummary" ("userId", date, "totalCalories", "goalCalories", "updatedAt")
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT ("userId", date) DO UPDATE SET
		   "totalCalories" = excluded."totalCalories",
		   "goalCalories" = excluded."goalCalories",
		   "updatedAt" = excluded."updatedAt"`,
		summary.UserID,
		dateKey(summary.Date),
		summary.TotalCalories,
		summary.GoalCalories,
		nowSQLite(),
	)
	return err
}

func (s *SQLite) GetDailySummary(ctx context.Context, userID string, date time.Time) (nutrition.DailySummary, bool, error) {
	summary := nutrition.DailySummary{UserID: userID, Date: date}
	var goal sql.NullInt64
	err := s.db.QueryRowContext(
		ctx,
		`SELECT "totalCalories", "goalCalories" FROM "DailyCalorieSummary" WHERE "userId" = ? AND date = ?`,
		userID,
		dateKey(date),
	).Scan(&summary.TotalCalories, &goal)
	if errors.Is(err, sql.ErrNoRows) {
		return nutrition.DailySummary{}, false, nil
	}
	if err != nil {
		return nutrition.DailySummary{}, false, err
	}
	if goal.Valid {
		value := int(goal.Int64)
		summary.GoalCalories = &value
	}
	return summary, true, nil
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	out := value.String
	return &out
}

func encodeList(values []string) (string, error) {
	encoded, err := json.Marshal(cleanList(values))
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func decodeList(raw sql.NullString) ([]string, error) {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw.String), &values); err != nil {
		return nil, fmt.Errorf("failed to decode list column: %w", err)
	}
	return values, nil
}
