package problems

import "github.com/labstack/echo/v4"

// RegisterRoutes registers problem routes
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/api/problems")

	g.POST("/solve", h.Solve)
	g.GET("/stats/solver", h.SolverStats)
	g.GET("/:id", h.GetRun)
	g.GET("/:id/model", h.GetModel)
}
