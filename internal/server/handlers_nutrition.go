package server

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dietexpert/backend/internal/nutrition"
)

const (
	defaultChartDays   = 7
	defaultChartWeeks  = 4
	defaultChartMonths = 3
)

func (a *App) writeNutritionError(c *gin.Context, err error, detail string) {
	switch {
	case errors.Is(err, nutrition.ErrEntryNotFound):
		writeError(c, http.StatusNotFound, "Food entry not found")
	case errors.Is(err, nutrition.ErrInvalidCalories), errors.Is(err, nutrition.ErrInvalidFoodName):
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		a.log.Error(detail, "path", c.FullPath(), "error", err)
		writeError(c, http.StatusInternalServerError, detail)
	}
}

// dayParam reads an optional YYYY-MM-DD query value, defaulting to today.
func (a *App) dayParam(c *gin.Context, key string) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return a.tracker.StartOfDay(a.tracker.Now()), true
	}
	day, err := parseDate(raw, a.tracker.Location())
	if err != nil {
		writeError(c, http.StatusBadRequest, key+" must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return day, true
}

func dailyStatsMap(stats nutrition.DailyStats) gin.H {
	return gin.H{
		"date":           formatDate(stats.Date),
		"total_calories": stats.TotalCalories,
		"goal_calories":  stats.GoalCalories,
	}
}

func dayCalories(days []nutrition.DailyStats) []gin.H {
	items := make([]gin.H, 0, len(days))
	for _, day := range days {
		items = append(items, gin.H{
			"date":     formatDate(day.Date),
			"calories": day.TotalCalories,
		})
	}
	return items
}

func weeklyStatsMap(stats nutrition.WeeklyStats) gin.H {
	days := make([]gin.H, 0, len(stats.Days))
	for _, day := range stats.Days {
		days = append(days, dailyStatsMap(day))
	}
	return gin.H{
		"week_start":       formatDate(stats.WeekStart),
		"week_end":         formatDate(stats.WeekEnd),
		"days":             days,
		"total_calories":   stats.TotalCalories,
		"average_calories": stats.AverageCalories,
	}
}

func monthlyStatsMap(stats nutrition.MonthlyStats) gin.H {
	days := make([]gin.H, 0, len(stats.Days))
	for _, day := range stats.Days {
		days = append(days, dailyStatsMap(day))
	}
	return gin.H{
		"year":             stats.Year,
		"month":            stats.Month,
		"days":             days,
		"total_calories":   stats.TotalCalories,
		"average_calories": stats.AverageCalories,
	}
}

func goalProgress(stats nutrition.DailyStats) *int {
	if stats.GoalCalories == nil || *stats.GoalCalories <= 0 {
		return nil
	}
	progress := int(math.Round(float64(stats.TotalCalories) / float64(*stats.GoalCalories) * 100))
	return &progress
}

func sumCalories(items []nutrition.FoodItem) int {
	total := 0
	for _, item := range items {
		total += item.Calories
	}
	return total
}

func (a *App) getDailyStats(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	day, ok := a.dayParam(c, "date")
	if !ok {
		return
	}

	stats, err := a.tracker.DailyStats(c.Request.Context(), user.ID, day)
	if err != nil {
		a.writeNutritionError(c, err, "Failed to load daily stats")
		return
	}
	c.JSON(http.StatusOK, dailyStatsMap(stats))
}

func (a *App) getWeeklyStats(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	weekStart := a.tracker.StartOfWeek(a.tracker.Now())
	if raw := strings.TrimSpace(c.Query("weekStart")); raw != "" {
		parsed, err := parseDate(raw, a.tracker.Location())
		if err != nil {
			writeError(c, http.StatusBadRequest, "weekStart must be YYYY-MM-DD")
			return
		}
		weekStart = parsed
	}

	stats, err := a.tracker.WeeklyStats(c.Request.Context(), user.ID, weekStart)
	if err != nil {
		a.writeNutritionError(c, err, "Failed to load weekly stats")
		return
	}
	c.JSON(http.StatusOK, weeklyStatsMap(stats))
}

func (a *App) getMonthlyStats(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	now := a.tracker.Now()
	year, ok := queryInt(c, "year", now.Year(), 1900, 2100)
	if !ok {
		writeError(c, http.StatusBadRequest, "year must be an integer between 1900 and 2100")
		return
	}
	month, ok := queryInt(c, "month", int(now.Month()), 1, 12)
	if !ok {
		writeError(c, http.StatusBadRequest, "month must be an integer between 1 and 12")
		return
	}

	stats, err := a.tracker.MonthlyStats(c.Request.Context(), user.ID, year, time.Month(month))
	if err != nil {
		a.writeNutritionError(c, err, "Failed to load monthly stats")
		return
	}
	c.JSON(http.StatusOK, monthlyStatsMap(stats))
}

func (a *App) listFoodEntries(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var from, to time.Time
	if raw := strings.TrimSpace(c.Query("startDate")); raw != "" {
		parsed, err := parseDate(raw, a.tracker.Location())
		if err != nil {
			writeError(c, http.StatusBadRequest, "startDate must be YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if raw := strings.TrimSpace(c.Query("endDate")); raw != "" {
		parsed, err := parseDate(raw, a.tracker.Location())
		if err != nil {
			writeError(c, http.StatusBadRequest, "endDate must be YYYY-MM-DD")
			return
		}
		// endDate is inclusive.
		to = parsed.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		writeError(c, http.StatusBadRequest, "startDate must not be after endDate")
		return
	}

	entries, err := a.tracker.FoodEntries(c.Request.Context(), user.ID, from, to)
	if err != nil {
		a.writeNutritionError(c, err, "Failed to load food entries")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}

func (a *App) updateFoodEntry(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	entryID := strings.TrimSpace(c.Param("entryId"))
	if entryID == "" {
		writeError(c, http.StatusBadRequest, "entryId is required")
		return
	}

	var payload nutrition.FoodEntryPatch
	if !mustJSON(c, &payload) {
		return
	}
	if payload.FoodName == nil && payload.Calories == nil {
		writeError(c, http.StatusBadRequest, "food_name or calories is required")
		return
	}

	entry, err := a.tracker.UpdateFoodEntry(c.Request.Context(), user.ID, entryID, payload)
	if err != nil {
		a.writeNutritionError(c, err, "Failed to update food entry")
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (a *App) deleteFoodEntry(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	entryID := strings.TrimSpace(c.Param("entryId"))

	if err := a.tracker.DeleteFoodEntry(c.Request.Context(), user.ID, entryID); err != nil {
		a.writeNutritionError(c, err, "Failed to delete food entry")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "id": entryID})
}

func (a *App) dailyChartData(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	days, ok := queryInt(c, "days", defaultChartDays, 1, 90)
	if !ok {
		writeError(c, http.StatusBadRequest, "days must be an integer between 1 and 90")
		return
	}

	today := a.tracker.StartOfDay(a.tracker.Now())
	data := make([]gin.H, 0, days)
	for i := days - 1; i >= 0; i-- {
		stats, err := a.tracker.DailyStats(c.Request.Context(), user.ID, today.AddDate(0, 0, -i))
		if err != nil {
			a.writeNutritionError(c, err, "Failed to load chart data")
			return
		}
		data = append(data, gin.H{
			"date":          formatDate(stats.Date),
			"calories":      stats.TotalCalories,
			"goal_calories": stats.GoalCalories,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func (a *App) weeklyChartData(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	weeks, ok := queryInt(c, "weeks", defaultChartWeeks, 1, 52)
	if !ok {
		writeError(c, http.StatusBadRequest, "weeks must be an integer between 1 and 52")
		return
	}

	currentWeek := a.tracker.StartOfWeek(a.tracker.Now())
	data := make([]gin.H, 0, weeks)
	for i := weeks - 1; i >= 0; i-- {
		stats, err := a.tracker.WeeklyStats(c.Request.Context(), user.ID, currentWeek.AddDate(0, 0, -7*i))
		if err != nil {
			a.writeNutritionError(c, err, "Failed to load chart data")
			return
		}
		data = append(data, gin.H{
			"week_start":       formatDate(stats.WeekStart),
			"week_end":         formatDate(stats.WeekEnd),
			"total_calories":   stats.TotalCalories,
			"average_calories": stats.AverageCalories,
			"days":             dayCalories(stats.Days),
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func (a *App) monthlyChartData(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	months, ok := queryInt(c, "months", defaultChartMonths, 1, 24)
	if !ok {
		writeError(c, http.StatusBadRequest, "months must be an integer between 1 and 24")
		return
	}

	now := a.tracker.Now()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, a.tracker.Location())
	data := make([]gin.H, 0, months)
	for i := months - 1; i >= 0; i-- {
		target := firstOfMonth.AddDate(0, -i, 0)
		stats, err := a.tracker.MonthlyStats(c.Request.Context(), user.ID, target.Year(), target.Month())
		if err != nil {
			a.writeNutritionError(c, err, "Failed to load chart data")
			return
		}
		data = append(data, gin.H{
			"year":             stats.Year,
			"month":            stats.Month,
			"month_name":       monthName(stats.Month),
			"total_calories":   stats.TotalCalories,
			"average_calories": stats.AverageCalories,
			"days_data":        dayCalories(stats.Days),
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func (a *App) nutritionBreakdown(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	day, ok := a.dayParam(c, "date")
	if !ok {
		return
	}

	stats, err := a.tracker.DailyStats(c.Request.Context(), user.ID, day)
	if err != nil {
		a.writeNutritionError(c, err, "Failed to load nutrition breakdown")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date":           formatDate(stats.Date),
		"total_calories": stats.TotalCalories,
		"goal_calories":  stats.GoalCalories,
		"goal_progress":  goalProgress(stats),
	})
}

func (a *App) parseFood(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var payload parseFoodRequest
	if !mustJSON(c, &payload) {
		return
	}
	if strings.TrimSpace(payload.Content) == "" {
		writeError(c, http.StatusBadRequest, "content is required")
		return
	}

	items := a.extractor.ParseText(payload.Content)
	a.recordParsedItems(c, user, items, trimmedMessageID(payload.MessageID))
}

func (a *App) parseConversation(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var payload parseConversationRequest
	if !mustJSON(c, &payload) {
		return
	}
	if strings.TrimSpace(payload.UserMessage) == "" || strings.TrimSpace(payload.AssistantMessage) == "" {
		writeError(c, http.StatusBadRequest, "user_message and assistant_message are required")
		return
	}

	items := a.extractor.ParseConversation(payload.UserMessage, payload.AssistantMessage)
	a.recordParsedItems(c, user, items, trimmedMessageID(payload.MessageID))
}

func (a *App) recordParsedItems(c *gin.Context, user AuthUser, items []nutrition.FoodItem, messageID *string) {
	entries, err := a.tracker.RecordFoodEntries(c.Request.Context(), user.ID, items, messageID)
	if err != nil {
		a.writeNutritionError(c, err, "Failed to store food entries")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":          items,
		"entries":        entries,
		"total_calories": sumCalories(items),
	})
}
