package respond

import (
	"github.com/gin-gonic/gin"

	"iprisk-backend/internal/shared/telemetry"
)

// Context keys written by the middleware package. Duplicated here to avoid an
// import cycle.
const (
	requestIDKey = "requestId"
	userIDKey    = "userId"
	isGuestKey   = "isGuest"
	runIDKey     = "analysisRunId"
)

// ErrorBody is the error object every endpoint returns.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error logs the failure and aborts with a standardized error body.
// 5xx responses log at error level, the rest at warn.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString(requestIDKey),
	}
	if userID := c.GetString(userIDKey); userID != "" {
		fields["user_id"] = userID
	}
	if isGuest, ok := c.Get(isGuestKey); ok {
		fields["is_guest"] = isGuest
	}
	if runID := c.GetString(runIDKey); runID != "" {
		fields["analysis_run_id"] = runID
	}
	if status >= 500 {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
