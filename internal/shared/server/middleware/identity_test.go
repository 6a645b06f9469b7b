package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func identityRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Identity())
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserIDFromContext(c), "guest": IsGuest(c)})
	})
	router.OPTIONS("/whoami", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestIdentityAllowsOptionsWithoutIdentity(t *testing.T) {
	resp := httptest.NewRecorder()
	identityRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodOptions, "/whoami", nil))
	assert.Equal(t, http.StatusNoContent, resp.Code)
}

func TestIdentityPrefersUserHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(UserIDHeader, "user-42")
	req.Header.Set(GuestIDHeader, "g1")
	resp := httptest.NewRecorder()
	identityRouter().ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"userId":"user-42","guest":false}`, resp.Body.String())
}

func TestIdentityGuest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(GuestIDHeader, "g1")
	resp := httptest.NewRecorder()
	identityRouter().ServeHTTP(resp, req)

	assert.JSONEq(t, `{"userId":"guest:g1","guest":true}`, resp.Body.String())
}

func TestIdentityRejectsAnonymous(t *testing.T) {
	resp := httptest.NewRecorder()
	identityRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestInternalOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(InternalOnly("s3cret"))
	router.POST("/internal/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/internal/x", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	req := httptest.NewRequest(http.MethodPost, "/internal/x", nil)
	req.Header.Set(InternalTokenHeader, "s3cret")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestInternalOnlyDisabledWithoutToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(InternalOnly(""))
	router.POST("/internal/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/internal/x", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}
