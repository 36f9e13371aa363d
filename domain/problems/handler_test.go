package problems

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/emergent-company/modelforge/domain/runs"
	"github.com/emergent-company/modelforge/internal/config"
	"github.com/emergent-company/modelforge/pkg/apperror"
	"github.com/emergent-company/modelforge/pkg/logger"
)

func newTestEcho(h *harness, limiter *rate.Limiter) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(logger.Discard())
	RegisterRoutes(e, NewHandler(h.svc, limiter))
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestHandler_Solve(t *testing.T) {
	h := newHarness(t)
	e := newTestEcho(h, nil)

	rec := do(e, http.MethodPost, "/api/problems/solve", `{"findTargets":["Shelf"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var first SolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.False(t, first.Cached)
	_, err := uuid.Parse(first.ProblemID)
	assert.NoError(t, err)

	rec = do(e, http.MethodPost, "/api/problems/solve", `{"findTargets":["Shelf"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var second SolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.True(t, second.Cached)
	assert.Equal(t, first.ProblemID, second.ProblemID)
}

func TestHandler_SolveErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"empty targets", `{"findTargets":[]}`, http.StatusUnprocessableEntity, "empty_find_targets"},
		{"missing targets", `{}`, http.StatusUnprocessableEntity, "empty_find_targets"},
		{"malformed body", `{"findTargets":`, http.StatusBadRequest, "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho(newHarness(t), nil)
			rec := do(e, http.MethodPost, "/api/problems/solve", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, rec))
		})
	}
}

func TestHandler_SolveRateLimited(t *testing.T) {
	h := newHarness(t)
	e := newTestEcho(h, rate.NewLimiter(rate.Every(1<<62), 1))

	rec := do(e, http.MethodPost, "/api/problems/solve", `{"findTargets":["Shelf"]}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(e, http.MethodPost, "/api/problems/solve", `{"findTargets":["Shelf"]}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errorCode(t, rec))
}

func TestHandler_GetRun(t *testing.T) {
	h := newHarness(t)
	e := newTestEcho(h, nil)

	res, err := h.svc.Solve(t.Context(), []string{"Shelf"})
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, h.store.Update(t.Context(), res.ProblemID, runs.Patch{
		StartedAt:       &now,
		EndedAt:         &now,
		Solved:          runs.Ptr(true),
		Ran:             runs.Ptr(true),
		RawSolutions:    []string{"letting x be 1"},
		ParsedSolutions: []string{`{"x": 1}`, "not json"},
	}))

	rec := do(e, http.MethodGet, "/api/problems/"+res.ProblemID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, runs.StatusSolved, body.Status)
	assert.Equal(t, res.Hash, body.Hash)
	require.Len(t, body.Solutions, 2)
	assert.JSONEq(t, `{"x": 1}`, string(body.Solutions[0]))
	assert.JSONEq(t, `"not json"`, string(body.Solutions[1]))
	assert.NotEmpty(t, body.IndexMap)
}

func TestHandler_GetModel(t *testing.T) {
	h := newHarness(t)
	e := newTestEcho(h, nil)

	res, err := h.svc.Solve(t.Context(), []string{"Shelf"})
	require.NoError(t, err)

	rec := do(e, http.MethodGet, "/api/problems/"+res.ProblemID.String()+"/model", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, res.Hash, rec.Header().Get("X-Model-Hash"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "language Essence 1.3"))
}

func TestHandler_LookupErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"invalid id", "/api/problems/nope", http.StatusBadRequest, "bad_request"},
		{"invalid model id", "/api/problems/nope/model", http.StatusBadRequest, "bad_request"},
		{"unknown id", "/api/problems/" + uuid.NewString(), http.StatusNotFound, "problem_not_found"},
		{"unknown model", "/api/problems/" + uuid.NewString() + "/model", http.StatusNotFound, "problem_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho(newHarness(t), nil)
			rec := do(e, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, rec))
		})
	}
}

func TestHandler_SolverStats(t *testing.T) {
	h := newHarness(t)
	e := newTestEcho(h, nil)
	_, err := h.svc.Solve(t.Context(), []string{"Shelf"})
	require.NoError(t, err)

	rec := do(e, http.MethodGet, "/api/problems/stats/solver", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"submitted":1,"running":0,"succeeded":0,"failed":0}`, rec.Body.String())
}

func TestNewSolveLimiter(t *testing.T) {
	assert.Nil(t, NewSolveLimiter(&config.Config{}))

	l := NewSolveLimiter(&config.Config{SolveRateLimit: 2, SolveRateBurst: 0})
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())
}
