// Package profile holds the read-only user profile and health data that the
// nutrition goal calculation and prompt personalization consume.
package profile

import (
	"context"
	"errors"
)

type Sex string

const (
	SexMale   Sex = "MALE"
	SexFemale Sex = "FEMALE"
	SexOther  Sex = "OTHER"
)

type ActivityLevel string

const (
	ActivitySedentary        ActivityLevel = "SEDENTARY"
	ActivityLightlyActive    ActivityLevel = "LIGHTLY_ACTIVE"
	ActivityModeratelyActive ActivityLevel = "MODERATELY_ACTIVE"
	ActivityVeryActive       ActivityLevel = "VERY_ACTIVE"
	ActivityExtraActive      ActivityLevel = "EXTRA_ACTIVE"
)

type Goal string

const (
	GoalWeightLoss        Goal = "WEIGHT_LOSS"
	GoalWeightGain        Goal = "WEIGHT_GAIN"
	GoalMaintenance       Goal = "MAINTENANCE"
	GoalMuscleGain        Goal = "MUSCLE_GAIN"
	GoalHealthImprovement Goal = "HEALTH_IMPROVEMENT"
	GoalSportsPerformance Goal = "SPORTS_PERFORMANCE"
	GoalGeneralWellness   Goal = "GENERAL_WELLNESS"
)

// Physical attributes. Weight is kilograms, height centimetres.
type Physical struct {
	WeightKg *float64
	HeightCm *float64
	Age      *int
	Sex      Sex
}

type Health struct {
	ActivityLevel       ActivityLevel
	Goal                Goal
	DietaryRestrictions []string
	MedicalConditions   []string
	Allergies           []string
}

// Snapshot is everything known about a user at read time. Physical and
// Health are nil when the user never filled them in.
type Snapshot struct {
	UserID    string
	FirstName string
	Physical  *Physical
	Health    *Health
}

var ErrUserNotFound = errors.New("user not found")

type Reader interface {
	Snapshot(ctx context.Context, userID string) (Snapshot, error)
}
