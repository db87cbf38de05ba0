package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type physicalPayload struct {
	WeightKg *float64 `json:"weight"`
	HeightCm *float64 `json:"height"`
	Age      *int     `json:"age"`
	Sex      string   `json:"sex"`
}

type healthPayload struct {
	ActivityLevel       string   `json:"activity_level"`
	Goal                string   `json:"goal"`
	DietaryRestrictions []string `json:"dietary_restrictions"`
	MedicalConditions   []string `json:"medical_conditions"`
	Allergies           []string `json:"allergies"`
}

type profileUpdateRequest struct {
	Physical *physicalPayload `json:"physical"`
	Health   *healthPayload   `json:"health"`
}

type parseFoodRequest struct {
	Content   string  `json:"content"`
	MessageID *string `json:"message_id"`
}

type parseConversationRequest struct {
	UserMessage      string  `json:"user_message"`
	AssistantMessage string  `json:"assistant_message"`
	MessageID        *string `json:"message_id"`
}

type chatQueryRequest struct {
	Query     string     `json:"query"`
	History   []ChatTurn `json:"history"`
	MessageID *string    `json:"message_id"`
}

type classifyRequest struct {
	Query string `json:"query"`
}

var monthNames = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

func monthName(month int) string {
	if month < 1 || month > len(monthNames) {
		return "Unknown"
	}
	return monthNames[month-1]
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// queryInt reads an optional integer query parameter. ok is false when the
// value is present but not an integer inside [min, max].
func queryInt(c *gin.Context, key string, fallback, min, max int) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < min || value > max {
		return 0, false
	}
	return value, true
}

// normalizeEnum turns "lightly active" or "lightly-active" into
// "LIGHTLY_ACTIVE".
func normalizeEnum(input string) string {
	value := strings.ToUpper(strings.TrimSpace(input))
	value = strings.NewReplacer(" ", "_", "-", "_").Replace(value)
	return value
}

func trimmedMessageID(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}
