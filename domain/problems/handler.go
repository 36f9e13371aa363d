package problems

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/emergent-company/modelforge/pkg/apperror"
)

// Handler handles HTTP requests for problems.
type Handler struct {
	svc     *Service
	limiter *rate.Limiter
}

// NewHandler creates a handler. A nil limiter disables throttling.
func NewHandler(svc *Service, limiter *rate.Limiter) *Handler {
	return &Handler{svc: svc, limiter: limiter}
}

// Solve handles POST /api/problems/solve
func (h *Handler) Solve(c echo.Context) error {
	if h.limiter != nil && !h.limiter.Allow() {
		return apperror.ErrTooManyRequests
	}

	var req SolveRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	res, err := h.svc.Solve(c.Request().Context(), req.FindTargets)
	if err != nil {
		return err
	}

	status := http.StatusAccepted
	if res.Cached {
		status = http.StatusOK
	}
	return c.JSON(status, SolveResponse{
		ProblemID: res.ProblemID.String(),
		Hash:      res.Hash,
		Cached:    res.Cached,
	})
}

// GetRun handles GET /api/problems/:id
func (h *Handler) GetRun(c echo.Context) error {
	id, err := problemID(c)
	if err != nil {
		return err
	}
	run, err := h.svc.GetRun(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewRunResponse(run))
}

// GetModel handles GET /api/problems/:id/model
// Returns the compiled model as plain text.
func (h *Handler) GetModel(c echo.Context) error {
	id, err := problemID(c)
	if err != nil {
		return err
	}
	run, err := h.svc.GetRun(c.Request().Context(), id)
	if err != nil {
		return err
	}
	c.Response().Header().Set("X-Model-Hash", run.Hash)
	return c.String(http.StatusOK, run.Model)
}

// SolverStats handles GET /api/problems/stats/solver
func (h *Handler) SolverStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.PoolMetrics())
}

func problemID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.NewBadRequest("invalid problem id")
	}
	return id, nil
}
