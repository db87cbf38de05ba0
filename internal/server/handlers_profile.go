package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dietexpert/backend/internal/nutrition"
	"dietexpert/backend/internal/profile"
)

var (
	validSexes = map[profile.Sex]struct{}{
		profile.SexMale:   {},
		profile.SexFemale: {},
		profile.SexOther:  {},
	}
	validActivityLevels = map[profile.ActivityLevel]struct{}{
		profile.ActivitySedentary:        {},
		profile.ActivityLightlyActive:    {},
		profile.ActivityModeratelyActive: {},
		profile.ActivityVeryActive:       {},
		profile.ActivityExtraActive:      {},
	}
	validGoals = map[profile.Goal]struct{}{
		profile.GoalWeightLoss:        {},
		profile.GoalWeightGain:        {},
		profile.GoalMaintenance:       {},
		profile.GoalMuscleGain:        {},
		profile.GoalHealthImprovement: {},
		profile.GoalSportsPerformance: {},
		profile.GoalGeneralWellness:   {},
	}
)

func (p physicalPayload) toPhysical() (profile.Physical, error) {
	if p.WeightKg != nil && (*p.WeightKg < 0 || *p.WeightKg > 300) {
		return profile.Physical{}, errors.New("weight must be between 0 and 300")
	}
	if p.HeightCm != nil && (*p.HeightCm < 10 || *p.HeightCm > 250) {
		return profile.Physical{}, errors.New("height must be between 10 and 250")
	}
	if p.Age != nil && (*p.Age < 1 || *p.Age > 120) {
		return profile.Physical{}, errors.New("age must be between 1 and 120")
	}
	sex := profile.Sex(normalizeEnum(p.Sex))
	if sex != "" {
		if _, ok := validSexes[sex]; !ok {
			return profile.Physical{}, errors.New("sex must be MALE, FEMALE or OTHER")
		}
	}
	return profile.Physical{WeightKg: p.WeightKg, HeightCm: p.HeightCm, Age: p.Age, Sex: sex}, nil
}

func (h healthPayload) toHealth() (profile.Health, error) {
	activity := profile.ActivityLevel(normalizeEnum(h.ActivityLevel))
	if activity != "" {
		if _, ok := validActivityLevels[activity]; !ok {
			return profile.Health{}, errors.New("activity_level is not supported")
		}
	}
	goal := profile.Goal(normalizeEnum(h.Goal))
	if goal != "" {
		if _, ok := validGoals[goal]; !ok {
			return profile.Health{}, errors.New("goal is not supported")
		}
	}
	return profile.Health{
		ActivityLevel:       activity,
		Goal:                goal,
		DietaryRestrictions: h.DietaryRestrictions,
		MedicalConditions:   h.MedicalConditions,
		Allergies:           h.Allergies,
	}, nil
}

func snapshotMap(snapshot profile.Snapshot) gin.H {
	var physical, health any
	if p := snapshot.Physical; p != nil {
		physical = gin.H{
			"weight": p.WeightKg,
			"height": p.HeightCm,
			"age":    p.Age,
			"sex":    string(p.Sex),
		}
	}
	if h := snapshot.Health; h != nil {
		health = gin.H{
			"activity_level":       string(h.ActivityLevel),
			"goal":                 string(h.Goal),
			"dietary_restrictions": nonNilList(h.DietaryRestrictions),
			"medical_conditions":   nonNilList(h.MedicalConditions),
			"allergies":            nonNilList(h.Allergies),
		}
	}
	return gin.H{
		"user_id":       snapshot.UserID,
		"first_name":    snapshot.FirstName,
		"physical":      physical,
		"health":        health,
		"goal_calories": nutrition.GoalCalories(snapshot.Physical, snapshot.Health),
	}
}

func nonNilList(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func (a *App) getMyProfile(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	snapshot, err := a.store.Snapshot(c.Request.Context(), user.ID)
	if errors.Is(err, profile.ErrUserNotFound) {
		writeError(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		a.log.Error("failed to load profile", "user_id", user.ID, "error", err)
		writeError(c, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	c.JSON(http.StatusOK, snapshotMap(snapshot))
}

func (a *App) upsertMyProfile(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload profileUpdateRequest
	if !mustJSON(c, &payload) {
		return
	}
	if payload.Physical == nil && payload.Health == nil {
		writeError(c, http.StatusBadRequest, "physical or health is required")
		return
	}

	ctx := c.Request.Context()
	if payload.Physical != nil {
		physical, err := payload.Physical.toPhysical()
		if err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.store.UpsertPhysical(ctx, user.ID, physical); err != nil {
			a.log.Error("failed to save physical profile", "user_id", user.ID, "error", err)
			writeError(c, http.StatusInternalServerError, "Failed to save profile")
			return
		}
	}
	if payload.Health != nil {
		health, err := payload.Health.toHealth()
		if err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.store.UpsertHealth(ctx, user.ID, health); err != nil {
			a.log.Error("failed to save health profile", "user_id", user.ID, "error", err)
			writeError(c, http.StatusInternalServerError, "Failed to save profile")
			return
		}
	}

	// Today's goal follows the profile immediately.
	if _, err := a.tracker.RecomputeDailySummary(ctx, user.ID, a.tracker.Now()); err != nil {
		a.log.Warn("failed to refresh daily summary after profile update", "user_id", user.ID, "error", err)
	}

	snapshot, err := a.store.Snapshot(ctx, user.ID)
	if err != nil {
		a.log.Error("failed to reload profile", "user_id", user.ID, "error", err)
		writeError(c, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	c.JSON(http.StatusOK, snapshotMap(snapshot))
}
