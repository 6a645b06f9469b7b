package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"iprisk-backend/internal/shared/telemetry"
)

// Context keys handlers may set to enrich the request log.
const (
	AnalysisRunIDKey    = "analysisRunId"
	StageKey            = "stage"
	StatusTransitionKey = "statusTransition"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		userID, _ := c.Get(userIDKey)
		isGuest, _ := c.Get(isGuestKey)
		runID, _ := c.Get(AnalysisRunIDKey)
		stage, _ := c.Get(StageKey)

		telemetry.Info("request.complete", map[string]any{
			"request_id":        RequestIDFromContext(c),
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"route":             c.FullPath(),
			"status":            c.Writer.Status(),
			"status_transition": c.GetString(StatusTransitionKey),
			"duration_ms":       float64(latency.Microseconds()) / 1000.0,
			"user_id":           userID,
			"analysis_run_id":   runID,
			"stage":             stage,
			"is_guest":          isGuest,
			"client_ip":         c.ClientIP(),
			"user_agent":        c.Request.UserAgent(),
		})
	}
}
