package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"iprisk-backend/internal/shared/server/respond"
)

const (
	userIDKey  = "userId"
	isGuestKey = "isGuest"

	// UserIDHeader carries the authenticated user id set by the upstream gateway.
	UserIDHeader = "X-User-Id"
	// GuestIDHeader carries an anonymous browser id.
	GuestIDHeader = "X-Guest-Id"
	// InternalTokenHeader authenticates internal callers such as billing and stage invokers.
	InternalTokenHeader = "X-Internal-Token"
)

// Identity stores the caller identity in context. Authentication itself
// happens upstream; this only trusts the forwarded user id or a guest id.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		if userID := strings.TrimSpace(c.GetHeader(UserIDHeader)); userID != "" {
			c.Set(userIDKey, userID)
			c.Set(isGuestKey, false)
			c.Next()
			return
		}

		guestID := strings.TrimSpace(c.GetHeader(GuestIDHeader))
		if guestID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}

		c.Set(userIDKey, "guest:"+guestID)
		c.Set(isGuestKey, true)
		c.Next()
	}
}

// InternalOnly rejects requests that do not present the shared internal token.
// An empty token disables the check for local development.
func InternalOnly(token string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(token))
	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}
		got := []byte(strings.TrimSpace(c.GetHeader(InternalTokenHeader)))
		if subtle.ConstantTimeCompare(expected, got) != 1 {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "invalid internal token", nil)
			return
		}
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the identity middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// IsGuest reports whether the caller is an anonymous guest.
func IsGuest(c *gin.Context) bool {
	if c == nil {
		return false
	}
	val, ok := c.Get(isGuestKey)
	if !ok {
		return false
	}
	guest, _ := val.(bool)
	return guest
}
