package nutrition

import (
	"regexp"
	"strings"
)

// Substring matches, so "had" also hits "shadow". Negations ("I didn't eat")
// pass as well; callers accept both.
var consumptionKeywords = []string{
	"ate",
	"eaten",
	"eating",
	"drank",
	"drunk",
	"drinking",
	"had",
	"consumed",
	"finished",
	"yedim",
	"içtim",
	"tükettim",
	"breakfast",
	"lunch",
	"dinner",
	"meal",
	"snack",
	"for breakfast",
	"for lunch",
	"for dinner",
	"this morning",
	"today i",
	"yesterday i",
	"just ate",
	"just had",
}

var caloriePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\d+\s*calories?`),
	regexp.MustCompile(`(?i)\d+\s*kcal`),
	regexp.MustCompile(`(?i)calories?:\s*\d+`),
	regexp.MustCompile(`(?i)kcal:\s*\d+`),
	regexp.MustCompile(`(?i)approximately\s*\d+\s*calories?`),
	regexp.MustCompile(`(?i)around\s*\d+\s*calories?`),
	regexp.MustCompile(`(?i)about\s*\d+\s*calories?`),
	regexp.MustCompile(`(?i)roughly\s*\d+\s*calories?`),
	regexp.MustCompile(`(?i)total.*calories?.*\d+`),
	regexp.MustCompile(`(?i)estimated.*calories?.*\d+`),
}

func PassesConsumptionGate(userText string) bool {
	lowered := strings.ToLower(userText)
	for _, keyword := range consumptionKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

func PassesCalorieGate(aiText string) bool {
	for _, pattern := range caloriePatterns {
		if pattern.MatchString(aiText) {
			return true
		}
	}
	return false
}
