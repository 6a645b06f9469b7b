package pipeline

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iprisk-backend/internal/runs"
	"iprisk-backend/internal/shared/server/middleware"
	"iprisk-backend/internal/stages"
)

const testInternalToken = "internal-secret"

func newTestRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	h := NewHandler(f.svc)

	api := r.Group("/api/v1")
	api.Use(middleware.Identity())
	h.RegisterRoutes(api)

	internal := r.Group("/internal")
	internal.Use(middleware.InternalOnly(testInternalToken))
	h.RegisterInternalRoutes(internal)
	return r
}

func doRequest(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func userHeaders(id string) map[string]string {
	return map[string]string{middleware.UserIDHeader: id}
}

func internalHeaders() map[string]string {
	return map[string]string{middleware.InternalTokenHeader: testInternalToken}
}

func TestSubmitEndpointCreatesRun(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	rec := doRequest(r, http.MethodPost, "/api/v1/analysis-runs",
		`{"inventionDescription":"A folding bicycle frame.","technicalKeywords":["hinge"]}`, userHeaders("user-1"))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var run runs.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, runs.StatusSearching, run.Status)
	assert.Equal(t, 5, run.ProgressPercentage)
	assert.Equal(t, "user-1", run.UserID)
	assert.Equal(t, "/api/v1/analysis-runs/"+run.ID, rec.Header().Get("Location"))
	require.Len(t, f.invoker.tasks, 1)
	assert.Equal(t, rec.Header().Get("X-Request-Id"), f.invoker.tasks[0].RequestID)
}

func TestSubmitEndpointValidation(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	rec := doRequest(r, http.MethodPost, "/api/v1/analysis-runs", `{"inventionDescription":"   "}`, userHeaders("user-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")

	long := strings.Repeat("a", MaxDescriptionRunes+1)
	rec = doRequest(r, http.MethodPost, "/api/v1/analysis-runs", `{"inventionDescription":"`+long+`"}`, userHeaders("user-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "description_too_long")

	assert.Empty(t, f.invoker.tasks)
}

func TestGetEndpointScopesToOwner(t *testing.T) {
	f := newFixture(t)
	run := f.seedRun(t, nil)
	r := newTestRouter(f)

	rec := doRequest(r, http.MethodGet, "/api/v1/analysis-runs/"+run.ID, "", userHeaders("user-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var view RunView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, run.ID, view.Run.ID)
	assert.NotNil(t, view.Conflicts)
	assert.Nil(t, view.Report)

	rec = doRequest(r, http.MethodGet, "/api/v1/analysis-runs/"+run.ID, "", userHeaders("user-2"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStageEndpointRunsStage(t *testing.T) {
	f := newFixture(t)
	run := f.seedRun(t, nil)
	r := newTestRouter(f)

	rec := doRequest(r, http.MethodPost, "/internal/stages/search", `{"analysisRunId":"`+run.ID+`","requestId":"req-7"}`, internalHeaders())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, stages.Search, summary.Stage)
	assert.Equal(t, runs.StatusAnalyzing, summary.Status)
	assert.Equal(t, "req-7", f.invoker.last().RequestID)
}

func TestStageEndpointErrors(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	rec := doRequest(r, http.MethodPost, "/internal/stages/search", `{"analysisRunId":"x"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(r, http.MethodPost, "/internal/stages/billing", `{"analysisRunId":"x"}`, internalHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(r, http.MethodPost, "/internal/stages/search", `{}`, internalHeaders())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(r, http.MethodPost, "/internal/stages/search", `{"analysisRunId":"missing"}`, internalHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	blank := f.seedRun(t, func(run *runs.Run) { run.InventionDescription = "" })
	rec = doRequest(r, http.MethodPost, "/internal/stages/search", `{"analysisRunId":"`+blank.ID+`"}`, internalHeaders())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "stage_failed")
}

func TestMarkPaidEndpoint(t *testing.T) {
	f := newFixture(t)
	run := f.seedRun(t, nil)
	r := newTestRouter(f)

	rec := doRequest(r, http.MethodPost, "/internal/analysis-runs/"+run.ID+"/paid", "", internalHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	got, err := f.runs.GetByID(t.Context(), run.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid)

	rec = doRequest(r, http.MethodPost, "/internal/analysis-runs/nope/paid", "", internalHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
