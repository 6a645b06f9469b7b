package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"iprisk-backend/internal/shared/server/respond"
	"iprisk-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 and logs the run and stage the
// request was working on.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"error":      rec,
				"stack":      string(debug.Stack()),
				"path":       c.Request.URL.Path,
				"method":     c.Request.Method,
			}
			if runID := c.GetString(AnalysisRunIDKey); runID != "" {
				fields["analysis_run_id"] = runID
			}
			if stage := c.GetString(StageKey); stage != "" {
				fields["stage"] = stage
			}
			telemetry.Error("http.panic", fields)
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Unexpected server error", nil)
		}()
		c.Next()
	}
}
