package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"dietexpert/backend/internal/nutrition"
	"dietexpert/backend/internal/observability"
	"dietexpert/backend/internal/personalization"
)

type chatHTTPError struct {
	Status int
	Detail string
}

func (e *chatHTTPError) Error() string {
	return e.Detail
}

const (
	chatConversationTurnLimit = 30
	chatQueryRuneMax          = 4000
)

type chatExecutionResult struct {
	Answer       string
	Model        string
	Usage        AIUsage
	Level        personalization.Level
	Personalized bool
	FoodItems    []nutrition.FoodItem
	FoodEntries  []nutrition.FoodEntry
}

func (a *App) chatQuery(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload chatQueryRequest
	if !mustJSON(c, &payload) {
		return
	}

	result, err := a.runChatQuery(c.Request.Context(), user, payload)
	if err != nil {
		a.writeChatExecutionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"answer":              result.Answer,
		"model":               result.Model,
		"usage":               usageMap(result.Usage),
		"personalization":     result.Level.String(),
		"personalized":        result.Personalized,
		"food_items":          result.FoodItems,
		"food_entries":        result.FoodEntries,
		"food_total_calories": sumCalories(result.FoodItems),
	})
}

// runChatQuery answers one user turn. Food mentioned in the exchange is
// recorded; a recording failure is logged and never fails the answer.
func (a *App) runChatQuery(ctx context.Context, user AuthUser, payload chatQueryRequest) (chatExecutionResult, error) {
	question := strings.TrimSpace(payload.Query)
	if question == "" {
		return chatExecutionResult{}, &chatHTTPError{Status: http.StatusBadRequest, Detail: "query is required"}
	}
	if len([]rune(question)) > chatQueryRuneMax {
		return chatExecutionResult{}, &chatHTTPError{Status: http.StatusBadRequest, Detail: "query is too long"}
	}

	tracer := otel.Tracer(observability.TracerName)
	ctx, span := tracer.Start(ctx, "chat.query")
	defer span.End()

	_, classifySpan := tracer.Start(ctx, "chat.classify")
	level := a.classifier.Classify(question)
	classifySpan.SetAttributes(attribute.String("personalization.level", level.String()))
	classifySpan.End()

	contextText := a.personalizer.UserContext(ctx, user.ID, level)
	systemPrompt := personalization.BuildSystemPrompt(contextText, level)
	a.log.Debug("chat personalization resolved",
		"user_id", user.ID,
		"level", level.String(),
		"has_context", contextText != "",
	)

	aiCtx, aiSpan := tracer.Start(ctx, "chat.ai")
	response, err := a.ai.Query(aiCtx, AIModelRequest{
		SystemPrompt: systemPrompt,
		Conversation: recentTurns(payload.History, chatConversationTurnLimit),
		UserPrompt:   question,
	})
	if err != nil {
		aiSpan.RecordError(err)
		aiSpan.SetStatus(codes.Error, "ai query failed")
		aiSpan.End()
		return chatExecutionResult{}, err
	}
	aiSpan.SetAttributes(
		attribute.String("ai.model", response.Model),
		attribute.Int("ai.total_tokens", response.Usage.TotalTokens),
	)
	aiSpan.End()

	_, extractSpan := tracer.Start(ctx, "chat.extract")
	items := a.extractor.ParseConversation(question, response.Answer)
	extractSpan.SetAttributes(attribute.Int("nutrition.items", len(items)))
	extractSpan.End()

	entries, err := a.tracker.RecordFoodEntries(ctx, user.ID, items, trimmedMessageID(payload.MessageID))
	if err != nil {
		span.RecordError(err)
		a.log.Warn("failed to record food entries from chat", "user_id", user.ID, "items", len(items), "error", err)
		entries = []nutrition.FoodEntry{}
	}

	return chatExecutionResult{
		Answer:       response.Answer,
		Model:        response.Model,
		Usage:        response.Usage,
		Level:        level,
		Personalized: contextText != "",
		FoodItems:    items,
		FoodEntries:  entries,
	}, nil
}

// recentTurns keeps the last limit user/assistant turns in order.
func recentTurns(history []ChatTurn, limit int) []ChatTurn {
	turns := make([]ChatTurn, 0, len(history))
	for _, turn := range history {
		role := strings.ToLower(strings.TrimSpace(turn.Role))
		if role != "user" && role != "assistant" {
			continue
		}
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		turns = append(turns, ChatTurn{Role: role, Content: content})
	}
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns
}

func (a *App) classifyRequest(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var payload classifyRequest
	if !mustJSON(c, &payload) {
		return
	}

	level := a.classifier.Classify(payload.Query)
	contextText := a.personalizer.UserContext(c.Request.Context(), user.ID, level)
	c.JSON(http.StatusOK, gin.H{
		"level":        level.String(),
		"personalized": contextText != "",
	})
}

func usageMap(usage AIUsage) gin.H {
	return gin.H{
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
	}
}

func (a *App) writeChatExecutionError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	var httpErr *chatHTTPError
	if errors.As(err, &httpErr) {
		writeError(c, httpErr.Status, httpErr.Detail)
		return
	}
	lowered := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(lowered, "openai_api_key is not configured"):
		writeError(c, http.StatusServiceUnavailable, "AI provider is not configured: set OPENAI_API_KEY")
		return
	case strings.Contains(lowered, "openai responses error"):
		writeError(c, http.StatusBadGateway, "AI provider request failed")
		return
	case strings.Contains(lowered, "context deadline exceeded"):
		writeError(c, http.StatusBadGateway, "AI provider request timed out")
		return
	case strings.Contains(lowered, "openai response answer is empty"):
		writeError(c, http.StatusBadGateway, "AI provider returned empty answer")
		return
	case strings.Contains(lowered, "openai response incomplete due max_output_tokens"):
		writeError(c, http.StatusBadGateway, "AI provider response incomplete; increase AI_MAX_OUTPUT_TOKENS")
		return
	case strings.Contains(lowered, "openai response missing token usage"):
		writeError(c, http.StatusBadGateway, "AI provider returned incomplete usage metadata")
		return
	}
	a.log.Error("chat query failed", "error", err)
	writeError(c, http.StatusInternalServerError, "Failed to execute chat query")
}
