package pipeline

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"iprisk-backend/internal/invoker"
	"iprisk-backend/internal/patents"
	"iprisk-backend/internal/runs"
	"iprisk-backend/internal/shared/server/middleware"
	"iprisk-backend/internal/shared/server/respond"
	"iprisk-backend/internal/stages"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes mounts the intake and polling routes on an identified group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analysis-runs", h.submit)
	rg.GET("/analysis-runs", h.list)
	rg.GET("/analysis-runs/:id", h.get)
	rg.GET("/analysis-runs/:id/executions", h.executions)
}

// RegisterInternalRoutes mounts stage and billing routes on an internal group.
func (h *Handler) RegisterInternalRoutes(rg *gin.RouterGroup) {
	rg.POST("/stages/:stage", h.runStage)
	rg.POST("/analysis-runs/:id/paid", h.markPaid)
}

func (h *Handler) submit(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	var req InventionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	run, err := h.Svc.Submit(c.Request.Context(), middleware.UserIDFromContext(c), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrDescriptionTooLong):
			respond.Error(c, http.StatusBadRequest, "description_too_long", err.Error(), nil)
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		}
		return
	}
	c.Set(middleware.AnalysisRunIDKey, run.ID)
	respond.Accepted(c, c.Request.URL.Path+"/"+run.ID, run)
}

func (h *Handler) list(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	limit := queryInt(c, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	items, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analysis runs", nil)
		return
	}
	respond.List(c, items, limit, offset)
}

func (h *Handler) get(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	id := c.Param("id")
	c.Set(middleware.AnalysisRunIDKey, id)
	view, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		h.runError(c, err, "failed to load analysis run")
		return
	}
	respond.OK(c, view)
}

func (h *Handler) executions(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	id := c.Param("id")
	c.Set(middleware.AnalysisRunIDKey, id)
	entries, err := h.Svc.Executions(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		h.runError(c, err, "failed to load executions")
		return
	}
	respond.OK(c, gin.H{"items": entries})
}

type stageRequest struct {
	AnalysisRunID string              `json:"analysisRunId" binding:"required"`
	RequestID     string              `json:"requestId"`
	EnqueuedAt    string              `json:"enqueuedAt"`
	Version       int                 `json:"version"`
	Candidates    []patents.Candidate `json:"candidates"`
}

func (h *Handler) runStage(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	stage, err := stages.Parse(c.Param("stage"))
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "unknown stage", nil)
		return
	}
	c.Set(middleware.StageKey, string(stage))

	var req stageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysisRunId is required", nil)
		return
	}
	c.Set(middleware.AnalysisRunIDKey, req.AnalysisRunID)

	requestID := req.RequestID
	if requestID == "" {
		requestID = middleware.RequestIDFromContext(c)
	}
	task := invoker.Task{
		AnalysisRunID: req.AnalysisRunID,
		Stage:         stage,
		RequestID:     requestID,
		EnqueuedAt:    req.EnqueuedAt,
		Version:       req.Version,
		Candidates:    req.Candidates,
	}
	// The invoking client may time out before a long stage finishes.
	summary, err := h.Svc.Execute(context.WithoutCancel(c.Request.Context()), task)
	if summary.Status != "" {
		c.Set(middleware.StatusTransitionKey, string(summary.Status))
	}
	if err != nil {
		switch {
		case errors.Is(err, invoker.ErrInvalidTask):
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid stage task", nil)
		case errors.Is(err, runs.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis run not found", nil)
		case errors.Is(err, ErrNotificationFailed):
			respond.Error(c, http.StatusBadGateway, "notification_failed", "run completed but notification failed", summary)
		default:
			respond.Error(c, http.StatusInternalServerError, "stage_failed", string(stage)+" stage failed", summary)
		}
		return
	}
	respond.OK(c, summary)
}

func (h *Handler) markPaid(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	id := c.Param("id")
	c.Set(middleware.AnalysisRunIDKey, id)
	if err := h.Svc.MarkPaid(c.Request.Context(), id); err != nil {
		h.runError(c, err, "failed to mark run paid")
		return
	}
	respond.OK(c, gin.H{"analysisRunId": id, "paid": true})
}

func (h *Handler) runError(c *gin.Context, err error, message string) {
	if errors.Is(err, runs.ErrNotFound) {
		respond.Error(c, http.StatusNotFound, "not_found", "analysis run not found", nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", message, nil)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
