package health

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler handles health check requests
type Handler struct {
	db      Pinger
	startAt time.Time
}

// NewHandler creates a new health handler. db may be nil when the process runs
// without Postgres.
func NewHandler(db Pinger) *Handler {
	return &Handler{db: db, startAt: time.Now()}
}

// Response is the /health body.
type Response struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Checks    map[string]Check `json:"checks"`
}

// Check is a single dependency result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health reports database connectivity and uptime.
func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp := Response{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startAt).Round(time.Second).String(),
		Checks:    map[string]Check{},
	}

	if h.db != nil {
		check := Check{Status: "healthy"}
		if err := h.db.Ping(ctx); err != nil {
			check = Check{Status: "unhealthy", Message: err.Error()}
			resp.Status = "unhealthy"
		}
		resp.Checks["database"] = check
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, resp)
}

// Healthz is a liveness probe that never touches dependencies.
func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
