package server

import (
	"net/http"
	"testing"
	"time"
)

const lunchBreakdown = "For lunch I had:\n- Grilled chicken: 300 calories\n- Rice: 200 calories"

func maleMaintenanceProfile() map[string]any {
	return map[string]any{
		"physical": map[string]any{"weight": 80, "height": 180, "age": 30, "sex": "male"},
		"health":   map[string]any{"activity_level": "sedentary", "goal": "maintenance"},
	}
}

func TestParseFoodRecordsEntriesAndSummaries(t *testing.T) {
	env := newTestEnv(t)
	userID := seedUser(t, env.store, "Ada")
	token := signToken(t, userID, nil)

	rec := performRequest(t, env.router, http.MethodPost, "/api/v1/nutrition/parse-food", token, map[string]any{
		"content":    lunchBreakdown,
		"message_id": "msg-1",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeJSONMap(t, rec)
	if body["total_calories"] != float64(500) {
		t.Fatalf("expected 500 total calories, got %v", body["total_calories"])
	}
	entries := decodeList(t, body["entries"])
	if len(entries) != 2 || entries[0]["food_name"] != "Grilled chicken" || entries[1]["food_name"] != "Rice" {
		t.Fatalf("unexpected entries: %v", entries)
	}
	if entries[0]["message_id"] != "msg-1" {
		t.Fatalf("expected message id to be kept, got %v", entries[0]["message_id"])
	}

	rec = performRequest(t, env.router, http.MethodGet, dailyStatsPath, token, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	stats := decodeJSONMap(t, rec)
	if stats["total_calories"] != float64(500) || stats["goal_calories"] != nil {
		t.Fatalf("unexpected daily stats: %v", stats)
	}
	if stats["date"] != todayUTC() {
		t.Fatalf("expected today's date, got %v", stats["date"])
	}

	rec = performRequest(t, env.router, http.MethodPut, "/api/v1/users/me/profile", token, maleMaintenanceProfile(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = performRequest(t, env.router, http.MethodGet, "/api/v1/nutrition/nutrition-breakdown", token, nil, nil)
	breakdown := decodeJSONMap(t, rec)
	if breakdown["goal_calories"] != float64(2224) || breakdown["goal_progress"] != float64(22) {
		t.Fatalf("unexpected breakdown: %v", breakdown)
	}
}

func TestParseFoodWithoutConsumptionKeywordsRecordsNothing(t *testing.T) {
	env := newTestEnv(t)
	token := signToken(t, seedUser(t, env.store, "Bo"), nil)

	rec := performRequest(t, env.router, http.MethodPost, "/api/v1/nutrition/parse-food", token, map[string]any{
		"content": "An apple: 95 calories",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeJSONMap(t, rec)
	if len(decodeList(t, body["items"])) != 0 || len(decodeList(t, body["entries"])) != 0 {
		t.Fatalf("expected nothing recorded, got %v", body)
	}

	rec = performRequest(t, env.router, http.MethodPost, "/api/v1/nutrition/parse-food", token, map[string]any{"content": "  "}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty content, got %d", rec.Code)
	}
}

func TestParseConversationUsesBothGates(t *testing.T) {
	env := newTestEnv(t)
	token := signToken(t, seedUser(t, env.store, "Cy"), nil)

	rec := performRequest(t, env.router, http.MethodPost, "/api/v1/nutrition/parse-conversation", token, map[string]any{
		"user_message":      "I just had a plate of pasta",
		"assistant_message": "Total calories: approximately 450-550 calories",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	items := decodeList(t, decodeJSONMap(t, rec)["items"])
	if len(items) != 1 || items[0]["food_name"] != "Mixed Plate" || items[0]["calories"] != float64(500) {
		t.Fatalf("expected a single mixed plate of 500, got %v", items)
	}

	rec = performRequest(t, env.router, http.MethodPost, "/api/v1/nutrition/parse-conversation", token, map[string]any{
		"user_message":      "How many calories are in pasta?",
		"assistant_message": "Total calories: approximately 450-550 calories",
	}, nil)
	if items := decodeList(t, decodeJSONMap(t, rec)["items"]); len(items) != 0 {
		t.Fatalf("expected question without consumption to record nothing, got %v", items)
	}
}

func TestFoodEntryUpdateAndDeleteRecomputeTheDay(t *testing.T) {
	env := newTestEnv(t)
	token := signToken(t, seedUser(t, env.store, "Di"), nil)

	rec := performRequest(t, env.router, http.MethodPost, "/api/v1/nutrition/parse-food", token, map[string]any{"content": lunchBreakdown}, nil)
	entries := decodeList(t, decodeJSONMap(t, rec)["entries"])
	chickenID, _ := entries[0]["id"].(string)
	riceID, _ := entries[1]["id"].(string)

	rec = performRequest(t, env.router, http.MethodGet, "/api/v1/nutrition/food-entries?startDate="+todayUTC()+"&endDate="+todayUTC(), token, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if listed := decodeList(t, decodeJSONMap(t, rec)["items"]); len(listed) != 2 {
		t.Fatalf("expected 2 listed entries, got %v", listed)
	}

	rec = performRequest(t, env.router, http.MethodDelete, "/api/v1/nutrition/food-entries/"+riceID, token, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if total := decodeJSONMap(t, performRequest(t, env.router, http.MethodGet, dailyStatsPath, token, nil, nil))["total_calories"]; total != float64(300) {
		t.Fatalf("expected 300 after delete, got %v", total)
	}

	rec = performRequest(t, env.router, http.MethodPut, "/api/v1/nutrition/food-entries/"+chickenID, token, map[string]any{"calories": 350}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if updated := decodeJSONMap(t, rec); updated["calories"] != float64(350) || updated["food_name"] != "Grilled chicken" {
		t.Fatalf("unexpected updated entry: %v", updated)
	}
	if total := decodeJSONMap(t, performRequest(t, env.router, http.MethodGet, dailyStatsPath, token, nil, nil))["total_calories"]; total != float64(350) {
		t.Fatalf("expected 350 after update, got %v", total)
	}

	rec = performRequest(t, env.router, http.MethodPut, "/api/v1/nutrition/food-entries/"+chickenID, token, map[string]any{"calories": -5}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative calories, got %d", rec.Code)
	}
	rec = performRequest(t, env.router, http.MethodPut, "/api/v1/nutrition/food-entries/"+chickenID, token, map[string]any{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty patch, got %d", rec.Code)
	}
	rec = performRequest(t, env.router, http.MethodDelete, "/api/v1/nutrition/food-entries/"+riceID, token, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for deleted entry, got %d", rec.Code)
	}

	otherToken := signToken(t, seedUser(t, env.store, "Eve"), nil)
	rec = performRequest(t, env.router, http.MethodDelete, "/api/v1/nutrition/food-entries/"+chickenID, otherToken, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a foreign entry, got %d", rec.Code)
	}
}

func TestStatsEndpointsValidateAndShape(t *testing.T) {
	env := newTestEnv(t)
	token := signToken(t, seedUser(t, env.store, "Fay"), nil)

	rec := performRequest(t, env.router, http.MethodGet, "/api/v1/nutrition/weekly-stats?weekStart=2026-10-12", token, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	weekly := decodeJSONMap(t, rec)
	if weekly["week_start"] != "2026-10-12" || weekly["week_end"] != "2026-10-18" || len(decodeList(t, weekly["days"])) != 7 {
		t.Fatalf("unexpected weekly stats: %v", weekly)
	}

	rec = performRequest(t, env.router, http.MethodGet, "/api/v1/nutrition/monthly-stats?year=2026&month=2", token, nil, nil)
	monthly := decodeJSONMap(t, rec)
	if monthly["month"] != float64(2) || len(decodeList(t, monthly["days"])) != 28 || monthly["average_calories"] != float64(0) {
		t.Fatalf("unexpected monthly stats: %v", monthly)
	}

	badRequests := []string{
		"/api/v1/nutrition/daily-stats?date=15/02/2026",
		"/api/v1/nutrition/weekly-stats?weekStart=soon",
		"/api/v1/nutrition/monthly-stats?month=13",
		"/api/v1/nutrition/chart-data/daily?days=0",
		"/api/v1/nutrition/chart-data/weekly?weeks=abc",
		"/api/v1/nutrition/food-entries?startDate=2026-03-05&endDate=2026-03-01",
	}
	for _, path := range badRequests {
		if rec := performRequest(t, env.router, http.MethodGet, path, token, nil, nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", path, rec.Code)
		}
	}
}

func TestChartDataDefaults(t *testing.T) {
	env := newTestEnv(t)
	token := signToken(t, seedUser(t, env.store, "Gus"), nil)
	performRequest(t, env.router, http.MethodPost, "/api/v1/nutrition/parse-food", token, map[string]any{"content": lunchBreakdown}, nil)

	daily := decodeList(t, decodeJSONMap(t, performRequest(t, env.router, http.MethodGet, "/api/v1/nutrition/chart-data/daily", token, nil, nil))["data"])
	if len(daily) != defaultChartDays {
		t.Fatalf("expected %d days, got %d", defaultChartDays, len(daily))
	}
	last := daily[len(daily)-1]
	if last["date"] != todayUTC() || last["calories"] != float64(500) {
		t.Fatalf("expected today last with 500 calories, got %v", last)
	}

	weekly := decodeList(t, decodeJSONMap(t, performRequest(t, env.router, http.MethodGet, "/api/v1/nutrition/chart-data/weekly?weeks=2", token, nil, nil))["data"])
	if len(weekly) != 2 || weekly[1]["total_calories"] != float64(500) {
		t.Fatalf("unexpected weekly chart: %v", weekly)
	}

	monthly := decodeList(t, decodeJSONMap(t, performRequest(t, env.router, http.MethodGet, "/api/v1/nutrition/chart-data/monthly", token, nil, nil))["data"])
	if len(monthly) != defaultChartMonths {
		t.Fatalf("expected %d months, got %d", defaultChartMonths, len(monthly))
	}
	current := monthly[len(monthly)-1]
	if current["month_name"] != time.Now().UTC().Month().String() || current["total_calories"] != float64(500) {
		t.Fatalf("unexpected current month: %v", current)
	}
}
