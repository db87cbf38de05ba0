package nutrition

import (
	"math"

	"dietexpert/backend/internal/profile"
)

var activityMultipliers = map[profile.ActivityLevel]float64{
	profile.ActivitySedentary:        1.2,
	profile.ActivityLightlyActive:    1.375,
	profile.ActivityModeratelyActive: 1.55,
	profile.ActivityVeryActive:       1.725,
	profile.ActivityExtraActive:      1.9,
}

var goalAdjustments = map[profile.Goal]float64{
	profile.GoalWeightLoss:        -500,
	profile.GoalWeightGain:        500,
	profile.GoalMuscleGain:        300,
	profile.GoalSportsPerformance: 100,
}

// GoalCalories estimates a daily calorie target: BMR scaled by activity, then
// shifted by the health goal. It returns nil when either record is missing or
// weight, height, age, sex, activity level or goal is absent.
func GoalCalories(physical *profile.Physical, health *profile.Health) *int {
	if physical == nil || health == nil || physical.WeightKg == nil || physical.HeightCm == nil || physical.Age == nil || physical.Sex == "" {
		return nil
	}
	if health.ActivityLevel == "" || health.Goal == "" {
		return nil
	}
	weight, height, age := *physical.WeightKg, *physical.HeightCm, float64(*physical.Age)
	if weight <= 0 || height <= 0 || age <= 0 {
		return nil
	}

	var bmr float64
	if physical.Sex == profile.SexMale {
		bmr = 88.362 + 13.397*weight + 4.799*height - 5.677*age
	} else {
		bmr = 447.593 + 9.247*weight + 3.098*height - 4.330*age
	}

	multiplier, ok := activityMultipliers[health.ActivityLevel]
	if !ok {
		multiplier = 1.2
	}

	goal := int(math.Round(bmr*multiplier + goalAdjustments[health.Goal]))
	return &goal
}
