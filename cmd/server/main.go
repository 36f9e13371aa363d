// Package main is the modelforge API server: graph compilation, the run
// cache and the background solve pool.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/emergent-company/modelforge/domain/compiler"
	"github.com/emergent-company/modelforge/domain/graph"
	"github.com/emergent-company/modelforge/domain/health"
	"github.com/emergent-company/modelforge/domain/problems"
	"github.com/emergent-company/modelforge/domain/runs"
	"github.com/emergent-company/modelforge/domain/scheduler"
	"github.com/emergent-company/modelforge/domain/solver"
	"github.com/emergent-company/modelforge/internal/config"
	"github.com/emergent-company/modelforge/internal/database"
	"github.com/emergent-company/modelforge/internal/jobs"
	"github.com/emergent-company/modelforge/internal/server"
	"github.com/emergent-company/modelforge/pkg/logger"
)

func main() {
	// .env.local overrides .env
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure
		logger.Module,
		config.Module,
		database.Module,
		server.Module,
		jobs.Module,

		// Domain
		health.Module,
		graph.Module,
		compiler.Module,
		runs.Module,
		solver.Module,
		problems.Module,
		scheduler.Module,
	).Run()
}
