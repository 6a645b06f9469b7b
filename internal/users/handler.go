package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"iprisk-backend/internal/shared/server/middleware"
	"iprisk-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
	rg.PUT("/me", h.saveContact)
}

type contactRequest struct {
	Email       string `json:"email" binding:"required,email"`
	FullName    string `json:"fullName" binding:"max=200"`
	EmailOptOut bool   `json:"emailOptOut"`
}

func contactBody(user User) gin.H {
	return gin.H{
		"id":          user.ID,
		"email":       user.Email,
		"fullName":    user.FullName,
		"emailOptOut": user.EmailOptOut,
	}
}

func (h *Handler) me(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	if middleware.IsGuest(c) {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "login required", nil)
		return
	}
	user, err := h.Svc.GetByID(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
		return
	}
	respond.JSON(c, http.StatusOK, contactBody(user))
}

func (h *Handler) saveContact(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	if middleware.IsGuest(c) {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "login required", nil)
		return
	}
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid contact details", nil)
		return
	}
	user := User{
		ID:          middleware.UserIDFromContext(c),
		Email:       req.Email,
		FullName:    req.FullName,
		EmailOptOut: req.EmailOptOut,
	}
	if err := h.Svc.SaveContact(c.Request.Context(), user); err != nil {
		if errors.Is(err, ErrInvalidContact) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to save contact", nil)
		return
	}
	respond.JSON(c, http.StatusOK, contactBody(user))
}
