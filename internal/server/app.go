package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"dietexpert/backend/internal/config"
	"dietexpert/backend/internal/logger"
	"dietexpert/backend/internal/nutrition"
	"dietexpert/backend/internal/personalization"
	"dietexpert/backend/internal/profile"
	"dietexpert/backend/internal/store"
)

// UserStore is what the bearer middleware needs to resolve a token subject.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
}

type App struct {
	cfg          config.Config
	store        store.Store
	tracker      *nutrition.Tracker
	extractor    *nutrition.Extractor
	classifier   personalization.Classifier
	personalizer *personalization.Personalizer
	ai           AIClient
	log          *logger.Logger
}

type AuthUser struct {
	ID          string
	Provider    string
	ProviderUID *string
	Email       *string
	Name        string
}

func New(cfg config.Config, st store.Store, ai AIClient, log *logger.Logger) (*App, error) {
	log = logger.OrNop(log)
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("nutrition timezone: %w", err)
	}
	classifier, err := personalization.NewDefaultClassifier(log)
	if err != nil {
		return nil, fmt.Errorf("train request classifier: %w", err)
	}
	if ai == nil {
		ai = MockAIClient{Model: cfg.OpenAIModel}
	}
	return &App{
		cfg:          cfg,
		store:        st,
		tracker:      nutrition.NewTracker(st, st, loc, log),
		extractor:    nutrition.NewExtractor(log),
		classifier:   classifier,
		personalizer: personalization.NewPersonalizer(st, log),
		ai:           ai,
		log:          log,
	}, nil
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	if a.cfg.OtelEnabled {
		router.Use(otelgin.Middleware(a.cfg.AppName))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", a.health)

	api := router.Group(a.cfg.APIPrefix)
	api.Use(a.authMiddleware())

	api.GET("/users/me/profile", a.getMyProfile)
	api.PUT("/users/me/profile", a.upsertMyProfile)

	nutritionGroup := api.Group("/nutrition")
	nutritionGroup.GET("/daily-stats", a.getDailyStats)
	nutritionGroup.GET("/weekly-stats", a.getWeeklyStats)
	nutritionGroup.GET("/monthly-stats", a.getMonthlyStats)
	nutritionGroup.GET("/food-entries", a.listFoodEntries)
	nutritionGroup.PUT("/food-entries/:entryId", a.updateFoodEntry)
	nutritionGroup.DELETE("/food-entries/:entryId", a.deleteFoodEntry)
	nutritionGroup.GET("/chart-data/daily", a.dailyChartData)
	nutritionGroup.GET("/chart-data/weekly", a.weeklyChartData)
	nutritionGroup.GET("/chart-data/monthly", a.monthlyChartData)
	nutritionGroup.GET("/nutrition-breakdown", a.nutritionBreakdown)
	nutritionGroup.POST("/parse-food", a.parseFood)
	nutritionGroup.POST("/parse-conversation", a.parseConversation)

	api.POST("/chat/query", a.chatQuery)
	api.POST("/personalization/classify", a.classifyRequest)
	api.GET("/mcp/tools", a.listTools)
	api.POST("/mcp/tools/call", a.callTool)

	return router
}

func (a *App) health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if a.store != nil {
		if err := a.store.Ping(c.Request.Context()); err != nil {
			a.log.Warn("health check store ping failed", "error", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{
		"status":  status,
		"service": "dietexpert-api",
	})
}

func (a *App) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}
		tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if token.Method == nil || token.Method.Alg() != a.cfg.JWTAlgorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(a.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(c, http.StatusUnauthorized, "Invalid bearer token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Invalid token payload")
			return
		}
		if a.cfg.JWTAudience != "" && !claimHasAudience(claims["aud"], a.cfg.JWTAudience) {
			writeError(c, http.StatusUnauthorized, "Invalid token audience")
			return
		}
		if a.cfg.JWTIssuer != "" {
			issuer, _ := claims["iss"].(string)
			if issuer != a.cfg.JWTIssuer {
				writeError(c, http.StatusUnauthorized, "Invalid token issuer")
				return
			}
		}
		sub, _ := claims["sub"].(string)
		sub = strings.TrimSpace(sub)
		if sub == "" {
			writeError(c, http.StatusUnauthorized, "Token subject missing")
			return
		}

		user, err := a.getOrCreateUser(c.Request.Context(), a.store, sub, claims)
		if err != nil {
			if !errors.Is(err, profile.ErrUserNotFound) {
				a.log.Error("failed to resolve token subject", "sub", sub, "error", err)
			}
			writeError(c, http.StatusUnauthorized, "User not found")
			return
		}

		c.Set("authUser", user)
		c.Next()
	}
}

func claimHasAudience(value any, audience string) bool {
	switch v := value.(type) {
	case string:
		return v == audience
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == audience {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if item == audience {
				return true
			}
		}
	}
	return false
}

func providerFromClaim(raw any) string {
	if s, ok := raw.(string); ok {
		switch s {
		case "apple", "google", "email":
			return s
		}
	}
	return "email"
}

func toOptionalString(raw any) *string {
	if s, ok := raw.(string); ok {
		trimmed := strings.TrimSpace(s)
		if trimmed != "" {
			return &trimmed
		}
	}
	return nil
}

func (a *App) getOrCreateUser(ctx context.Context, users UserStore, userID string, claims jwt.MapClaims) (AuthUser, error) {
	existing, err := users.GetUser(ctx, userID)
	if err == nil {
		return AuthUser{
			ID:          existing.ID,
			Provider:    existing.Provider,
			ProviderUID: existing.ProviderUID,
			Email:       existing.Email,
			Name:        existing.FirstName,
		}, nil
	}
	if !errors.Is(err, profile.ErrUserNotFound) {
		return AuthUser{}, err
	}
	if !a.cfg.AuthAutoCreateUser {
		return AuthUser{}, err
	}

	name := ""
	for _, key := range []string{"given_name", "first_name", "name"} {
		if rawName, ok := claims[key].(string); ok && strings.TrimSpace(rawName) != "" {
			name = strings.TrimSpace(rawName)
			break
		}
	}
	if name == "" {
		name = fmt.Sprintf("user-%s", truncate(userID, 8))
	}

	created := store.User{
		ID:          userID,
		Provider:    providerFromClaim(claims["provider"]),
		ProviderUID: toOptionalString(claims["provider_uid"]),
		Email:       toOptionalString(claims["email"]),
		FirstName:   name,
	}
	if err := users.CreateUser(ctx, created); err != nil {
		return AuthUser{}, err
	}
	a.log.Info("auto-created user from token", "user_id", userID, "provider", created.Provider)

	return AuthUser{
		ID:          created.ID,
		Provider:    created.Provider,
		ProviderUID: created.ProviderUID,
		Email:       created.Email,
		Name:        created.FirstName,
	}, nil
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}

func authUserFromContext(c *gin.Context) (AuthUser, bool) {
	raw, ok := c.Get("authUser")
	if !ok {
		return AuthUser{}, false
	}
	user, ok := raw.(AuthUser)
	return user, ok
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

// parseDate reads a YYYY-MM-DD value as midnight in loc.
func parseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(time.DateOnly, strings.TrimSpace(value), loc)
}

func extractNumberFromMap(data map[string]any, keys ...string) float64 {
	if data == nil {
		return 0
	}
	for _, key := range keys {
		raw, ok := data[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return v
		case float32:
			return float64(v)
		case int:
			return float64(v)
		case int64:
			return float64(v)
		case json.Number:
			f, err := v.Float64()
			if err == nil {
				return f
			}
		case string:
			var parsed float64
			_, err := fmt.Sscanf(v, "%f", &parsed)
			if err == nil {
				return parsed
			}
		}
	}
	return 0
}

func parseJSONStringMap(input []byte) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	var result map[string]any
	if err := json.Unmarshal(input, &result); err != nil || result == nil {
		return map[string]any{}
	}
	return result
}
