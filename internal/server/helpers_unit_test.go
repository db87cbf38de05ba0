package server

import (
	"encoding/json"
	"testing"
	"time"

	"dietexpert/backend/internal/nutrition"
)

func TestClaimHasAudience(t *testing.T) {
	if !claimHasAudience("dietexpert", "dietexpert") {
		t.Fatalf("expected string audience to match")
	}
	if !claimHasAudience([]any{"other", "dietexpert"}, "dietexpert") {
		t.Fatalf("expected list audience to match")
	}
	if !claimHasAudience([]string{"dietexpert"}, "dietexpert") {
		t.Fatalf("expected string slice audience to match")
	}
	if claimHasAudience(nil, "dietexpert") || claimHasAudience([]any{1, "x"}, "dietexpert") {
		t.Fatalf("expected missing audience to fail")
	}
}

func TestParseDateUsesLocation(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	day, err := parseDate(" 2026-02-10 ", seoul)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	if day.Location() != seoul || day.Hour() != 0 || day.Day() != 10 {
		t.Fatalf("expected local midnight, got %s", day)
	}
	if got := day.UTC().Format(time.RFC3339); got != "2026-02-09T15:00:00Z" {
		t.Fatalf("unexpected UTC instant: %s", got)
	}

	utc, err := parseDate("2026-02-10", nil)
	if err != nil || utc.Location() != time.UTC {
		t.Fatalf("expected nil location to default to UTC, got %v err=%v", utc, err)
	}
	if _, err := parseDate("2026-02-30", time.UTC); err == nil {
		t.Fatalf("expected impossible date to fail")
	}
}

func TestExtractNumberFromMap(t *testing.T) {
	data := map[string]any{
		"float":  12.5,
		"int":    7,
		"number": json.Number("3.25"),
		"text":   "42",
		"junk":   "abc",
	}
	cases := map[string]float64{"float": 12.5, "int": 7, "number": 3.25, "text": 42, "junk": 0, "missing": 0}
	for key, want := range cases {
		if got := extractNumberFromMap(data, key); got != want {
			t.Fatalf("extractNumberFromMap(%q) = %v, want %v", key, got, want)
		}
	}
	if got := extractNumberFromMap(data, "missing", "int"); got != 7 {
		t.Fatalf("expected fallback key to be used, got %v", got)
	}
	if got := extractNumberFromMap(nil, "float"); got != 0 {
		t.Fatalf("expected nil map to yield 0, got %v", got)
	}
}

func TestNormalizeEnum(t *testing.T) {
	cases := map[string]string{
		"lightly active": "LIGHTLY_ACTIVE",
		" weight-loss ":  "WEIGHT_LOSS",
		"EXTRA_ACTIVE":   "EXTRA_ACTIVE",
		"":               "",
	}
	for input, want := range cases {
		if got := normalizeEnum(input); got != want {
			t.Fatalf("normalizeEnum(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMonthName(t *testing.T) {
	if monthName(1) != "January" || monthName(12) != "December" {
		t.Fatalf("unexpected month names")
	}
	if monthName(0) != "Unknown" || monthName(13) != "Unknown" {
		t.Fatalf("expected out of range months to be Unknown")
	}
}

func TestGoalProgress(t *testing.T) {
	goal := 2000
	if got := goalProgress(nutrition.DailyStats{TotalCalories: 1500, GoalCalories: &goal}); got == nil || *got != 75 {
		t.Fatalf("expected 75, got %v", got)
	}
	if got := goalProgress(nutrition.DailyStats{TotalCalories: 2999, GoalCalories: &goal}); got == nil || *got != 150 {
		t.Fatalf("expected rounding to 150, got %v", got)
	}
	if got := goalProgress(nutrition.DailyStats{TotalCalories: 1500}); got != nil {
		t.Fatalf("expected nil without goal, got %v", *got)
	}
	zero := 0
	if got := goalProgress(nutrition.DailyStats{TotalCalories: 1500, GoalCalories: &zero}); got != nil {
		t.Fatalf("expected nil for a zero goal, got %v", *got)
	}
}

func TestRecentTurns(t *testing.T) {
	history := []ChatTurn{
		{Role: "user", Content: "one"},
		{Role: "tool", Content: "skip"},
		{Role: "Assistant", Content: " two "},
		{Role: "user", Content: "   "},
		{Role: "user", Content: "three"},
	}
	turns := recentTurns(history, 2)
	if len(turns) != 2 || turns[0] != (ChatTurn{Role: "assistant", Content: "two"}) || turns[1].Content != "three" {
		t.Fatalf("unexpected turns: %+v", turns)
	}
	if all := recentTurns(history, 0); len(all) != 3 {
		t.Fatalf("expected no limit to keep 3 turns, got %+v", all)
	}
}

func TestClaimHelpers(t *testing.T) {
	if providerFromClaim("apple") != "apple" || providerFromClaim("github") != "email" || providerFromClaim(nil) != "email" {
		t.Fatalf("unexpected provider mapping")
	}
	if got := toOptionalString("  a@b.c "); got == nil || *got != "a@b.c" {
		t.Fatalf("expected trimmed string, got %v", got)
	}
	if toOptionalString("  ") != nil || toOptionalString(3) != nil {
		t.Fatalf("expected blank and non-string claims to be nil")
	}
	if truncate("abcdefghij", 8) != "abcdefgh" || truncate("abc", 8) != "abc" {
		t.Fatalf("unexpected truncate result")
	}
}

func TestTrimmedMessageID(t *testing.T) {
	blank := "  "
	padded := " m-1 "
	if trimmedMessageID(nil) != nil || trimmedMessageID(&blank) != nil {
		t.Fatalf("expected nil for missing and blank ids")
	}
	if got := trimmedMessageID(&padded); got == nil || *got != "m-1" {
		t.Fatalf("expected trimmed id, got %v", got)
	}
}

func TestPhysicalPayloadValidation(t *testing.T) {
	weight, height, age := 70.0, 170.0, 40
	physical, err := physicalPayload{WeightKg: &weight, HeightCm: &height, Age: &age, Sex: "female"}.toPhysical()
	if err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
	if physical.Sex != "FEMALE" || *physical.Age != 40 {
		t.Fatalf("unexpected physical: %+v", physical)
	}

	tooShort := 9.0
	if _, err := (physicalPayload{HeightCm: &tooShort}).toPhysical(); err == nil {
		t.Fatalf("expected short height to fail")
	}
	old := 121
	if _, err := (physicalPayload{Age: &old}).toPhysical(); err == nil {
		t.Fatalf("expected age over 120 to fail")
	}
}

func TestHealthPayloadValidation(t *testing.T) {
	health, err := healthPayload{ActivityLevel: "very active", Goal: "muscle-gain", Allergies: []string{"nuts"}}.toHealth()
	if err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
	if health.ActivityLevel != "VERY_ACTIVE" || health.Goal != "MUSCLE_GAIN" || len(health.Allergies) != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
	if _, err := (healthPayload{Goal: "bulk"}).toHealth(); err == nil {
		t.Fatalf("expected unknown goal to fail")
	}
}
