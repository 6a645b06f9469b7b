package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iprisk-backend/internal/shared/server/middleware"
)

func TestSaveContactValidatesEmail(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	assert.ErrorIs(t, svc.SaveContact(ctx, User{ID: "u1", Email: "not-an-email"}), ErrInvalidContact)
	assert.ErrorIs(t, svc.SaveContact(ctx, User{ID: " ", Email: "a@example.com"}), ErrInvalidContact)

	require.NoError(t, svc.SaveContact(ctx, User{ID: "u1", Email: " a@example.com ", FullName: "Ada"}))
	user, err := svc.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", user.Email)
	assert.Equal(t, "Ada", user.DisplayName())
}

func TestDisplayNameFallback(t *testing.T) {
	assert.Equal(t, "there", User{}.DisplayName())
}

func TestHandlerSaveAndLoadContact(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Identity())
	NewHandler(NewService(NewMemoryRepo())).RegisterRoutes(r.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/me", strings.NewReader(`{"email":"inventor@example.com","fullName":"Ina Ventor"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "inventor@example.com")
}

func TestHandlerRejectsGuest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Identity())
	NewHandler(NewService(NewMemoryRepo())).RegisterRoutes(r.Group("/api/v1"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
