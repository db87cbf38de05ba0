package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/gin-gonic/gin"
)

type parseFoodToolParams struct {
	Content   string  `json:"content" description:"Free text describing what was eaten, with calories"`
	MessageID *string `json:"message_id,omitempty" description:"Optional chat message the entries belong to"`
}

type dailyStatsToolParams struct {
	Date string `json:"date,omitempty" description:"Day to report (YYYY-MM-DD, defaults to today)"`
}

type weeklyStatsToolParams struct {
	WeekStart string `json:"week_start,omitempty" description:"First day of the week (YYYY-MM-DD, defaults to this Monday)"`
}

type classifyToolParams struct {
	Query string `json:"query" description:"Question to classify for personalization"`
}

// errToolParams marks a caller mistake; anything else is a server failure.
var errToolParams = errors.New("invalid parameters")

type toolHandler func(ctx context.Context, user AuthUser, req *protocol.CallToolRequest) (any, error)

type toolSpec struct {
	description string
	handle      toolHandler
}

func (a *App) tools() map[string]toolSpec {
	return map[string]toolSpec{
		"parse_food": {
			description: "Extract food items and calories from text and record them",
			handle:      a.handleParseFoodTool,
		},
		"daily_stats": {
			description: "Calorie total and goal for one day",
			handle:      a.handleDailyStatsTool,
		},
		"weekly_stats": {
			description: "Per-day calories, total and average for one week",
			handle:      a.handleWeeklyStatsTool,
		},
		"classify_request": {
			description: "Personalization level a question needs",
			handle:      a.handleClassifyTool,
		},
	}
}

// extractToolParams round-trips the request arguments into target.
func extractToolParams(req *protocol.CallToolRequest, target any) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("%w: %v", errToolParams, err)
	}
	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("%w: %v", errToolParams, err)
	}
	return nil
}

func toolResult(data any) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool response: %w", err)
	}
	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}

func (a *App) callTool(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var request protocol.CallToolRequest
	if !mustJSON(c, &request) {
		return
	}
	spec, ok := a.tools()[strings.TrimSpace(request.Name)]
	if !ok {
		writeError(c, http.StatusNotFound, fmt.Sprintf("Unknown tool: %s", request.Name))
		return
	}

	data, err := spec.handle(c.Request.Context(), user, &request)
	if err != nil {
		if errors.Is(err, errToolParams) {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		a.log.Error("tool call failed", "tool", request.Name, "user_id", user.ID, "error", err)
		writeError(c, http.StatusInternalServerError, "Tool call failed")
		return
	}

	result, err := toolResult(data)
	if err != nil {
		a.log.Error("tool result encoding failed", "tool", request.Name, "error", err)
		writeError(c, http.StatusInternalServerError, "Tool call failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a *App) handleParseFoodTool(ctx context.Context, user AuthUser, req *protocol.CallToolRequest) (any, error) {
	var params parseFoodToolParams
	if err := extractToolParams(req, &params); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", errToolParams)
	}

	items := a.extractor.ParseText(params.Content)
	entries, err := a.tracker.RecordFoodEntries(ctx, user.ID, items, trimmedMessageID(params.MessageID))
	if err != nil {
		return nil, err
	}
	return gin.H{
		"items":          items,
		"entries":        entries,
		"total_calories": sumCalories(items),
	}, nil
}

func (a *App) toolDay(raw string, fallback time.Time) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	day, err := parseDate(raw, a.tracker.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: dates must be YYYY-MM-DD", errToolParams)
	}
	return day, nil
}

func (a *App) handleDailyStatsTool(ctx context.Context, user AuthUser, req *protocol.CallToolRequest) (any, error) {
	var params dailyStatsToolParams
	if err := extractToolParams(req, &params); err != nil {
		return nil, err
	}
	day, err := a.toolDay(params.Date, a.tracker.Now())
	if err != nil {
		return nil, err
	}

	stats, err := a.tracker.DailyStats(ctx, user.ID, day)
	if err != nil {
		return nil, err
	}
	result := dailyStatsMap(stats)
	result["goal_progress"] = goalProgress(stats)
	return result, nil
}

func (a *App) handleWeeklyStatsTool(ctx context.Context, user AuthUser, req *protocol.CallToolRequest) (any, error) {
	var params weeklyStatsToolParams
	if err := extractToolParams(req, &params); err != nil {
		return nil, err
	}
	weekStart, err := a.toolDay(params.WeekStart, a.tracker.StartOfWeek(a.tracker.Now()))
	if err != nil {
		return nil, err
	}

	stats, err := a.tracker.WeeklyStats(ctx, user.ID, weekStart)
	if err != nil {
		return nil, err
	}
	return weeklyStatsMap(stats), nil
}

func (a *App) handleClassifyTool(_ context.Context, _ AuthUser, req *protocol.CallToolRequest) (any, error) {
	var params classifyToolParams
	if err := extractToolParams(req, &params); err != nil {
		return nil, err
	}
	return gin.H{"level": a.classifier.Classify(params.Query).String()}, nil
}

func (a *App) listTools(c *gin.Context) {
	specs := a.tools()
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]gin.H, 0, len(names))
	for _, name := range names {
		items = append(items, gin.H{"name": name, "description": specs[name].description})
	}
	c.JSON(http.StatusOK, gin.H{"tools": items})
}
