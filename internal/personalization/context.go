package personalization

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dietexpert/backend/internal/logger"
	"dietexpert/backend/internal/profile"
)

const basePrompt = "You are DietExpert, an AI nutrition assistant specializing in dietary advice, meal planning, and nutrition analysis."

const genericCapabilities = `CAPABILITIES:
🍎 Nutritional Analysis - Analyze food photos for calories and nutrients
🥗 Meal Planning - Create meal plans
🔍 Food Questions - Answer questions about ingredients and recipes
📊 Health Goals - Provide advice for fitness and wellness goals`

const personalCapabilities = `CAPABILITIES:
🍎 Nutritional Analysis - Analyze food photos for calories and nutrients
🥗 Meal Planning - Create personalized meal plans based on the user's profile
🔍 Food Questions - Answer questions about ingredients and recipes
📊 Health Goals - Provide advice tailored to the user's specific goals and lifestyle`

const personalizationGuidelines = `PERSONALIZATION GUIDELINES:
- Use the user's personal context to provide tailored advice
- Consider their BMI, activity level, and health goals in recommendations
- Respect dietary restrictions and allergies in all suggestions
- Account for medical conditions when providing advice
- Adjust portion sizes and calorie recommendations based on their profile
- Use their name when appropriate to make responses more personal`

const (
	contextHeader = "[PERSONAL CONTEXT FOR PERSONALIZED ADVICE]"
	contextFooter = "[END PERSONAL CONTEXT]"
)

var activityDescriptions = map[profile.ActivityLevel]string{
	profile.ActivitySedentary:        "sedentary lifestyle (little to no exercise)",
	profile.ActivityLightlyActive:    "lightly active (light exercise 1-3 days/week)",
	profile.ActivityModeratelyActive: "moderately active (moderate exercise 3-5 days/week)",
	profile.ActivityVeryActive:       "very active (hard exercise 6-7 days/week)",
	profile.ActivityExtraActive:      "extremely active (very hard exercise, physical job)",
}

var goalDescriptions = map[profile.Goal]string{
	profile.GoalWeightLoss:        "weight loss",
	profile.GoalWeightGain:        "weight gain",
	profile.GoalMaintenance:       "weight maintenance",
	profile.GoalMuscleGain:        "muscle gain",
	profile.GoalHealthImprovement: "general health improvement",
	profile.GoalSportsPerformance: "sports performance enhancement",
	profile.GoalGeneralWellness:   "general wellness",
}

// BuildContext renders the parts of snapshot that level allows. An empty
// string means no personalization.
func BuildContext(level Level, snapshot profile.Snapshot) string {
	if level <= LevelNone {
		return ""
	}

	var parts []string
	if name := strings.TrimSpace(snapshot.FirstName); name != "" {
		parts = append(parts, "User's name: "+name)
	}

	if level >= LevelLight && snapshot.Physical != nil {
		p := snapshot.Physical
		if p.Age != nil && *p.Age > 0 {
			parts = append(parts, fmt.Sprintf("Age: %d years old", *p.Age))
		}
		if p.Sex != "" {
			parts = append(parts, "Sex: "+strings.ToLower(string(p.Sex)))
		}
		if p.WeightKg != nil && *p.WeightKg > 0 {
			parts = append(parts, "Weight: "+formatMeasure(*p.WeightKg)+" kg")
		}
		if p.HeightCm != nil && *p.HeightCm > 0 {
			parts = append(parts, "Height: "+formatMeasure(*p.HeightCm)+" cm")
		}
	}

	if level >= LevelModerate && snapshot.Health != nil {
		h := snapshot.Health
		if h.ActivityLevel != "" {
			parts = append(parts, "Activity level: "+describe(activityDescriptions, h.ActivityLevel))
		}
		if h.Goal != "" {
			parts = append(parts, "Health goal: "+describe(goalDescriptions, h.Goal))
		}
		if list := joinNonEmpty(h.DietaryRestrictions); list != "" {
			parts = append(parts, "Dietary restrictions: "+list)
		}
		if list := joinNonEmpty(h.MedicalConditions); list != "" {
			parts = append(parts, "Medical conditions: "+list)
		}
		if list := joinNonEmpty(h.Allergies); list != "" {
			parts = append(parts, "Allergies: "+list)
		}
	}

	if len(parts) == 0 {
		return ""
	}
	return "\n\n" + contextHeader + "\n" + strings.Join(parts, "\n") + "\n" + contextFooter + "\n\n"
}

// BuildSystemPrompt wraps the capability description around contextText.
// Guidelines and the tailored closing only appear from LevelModerate up.
func BuildSystemPrompt(contextText string, level Level) string {
	if strings.TrimSpace(contextText) == "" || level <= LevelNone {
		return basePrompt + "\n\n" + genericCapabilities + "\n\nPlease provide helpful, evidence-based nutrition advice."
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n")
	b.WriteString(contextText)
	b.WriteString("\n\n")
	b.WriteString(personalCapabilities)
	if level >= LevelModerate {
		b.WriteString("\n")
		b.WriteString(personalizationGuidelines)
	}
	b.WriteString("\n\nPlease provide helpful, evidence-based nutrition advice")
	if level >= LevelModerate {
		b.WriteString(" that's specifically tailored to this user's profile")
	}
	b.WriteString(".")
	return b.String()
}

// Personalizer loads a user's snapshot and renders it at the requested
// level. Lookup failures degrade to no context.
type Personalizer struct {
	profiles profile.Reader
	log      *logger.Logger
}

func NewPersonalizer(profiles profile.Reader, log *logger.Logger) *Personalizer {
	return &Personalizer{profiles: profiles, log: logger.OrNop(log)}
}

func (p *Personalizer) UserContext(ctx context.Context, userID string, level Level) string {
	if level <= LevelNone || p.profiles == nil {
		return ""
	}
	snapshot, err := p.profiles.Snapshot(ctx, userID)
	if err != nil {
		if !errors.Is(err, profile.ErrUserNotFound) {
			p.log.Warn("failed to load personal context", "user_id", userID, "error", err)
		}
		return ""
	}
	text := BuildContext(level, snapshot)
	if text == "" {
		p.log.Debug("no personal context available", "user_id", userID)
	}
	return text
}

func describe[T ~string](mapping map[T]string, value T) string {
	if text, ok := mapping[value]; ok {
		return text
	}
	return strings.ToLower(string(value))
}

func formatMeasure(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func joinNonEmpty(values []string) string {
	kept := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, ", ")
}
