package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"3002"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	Database  DatabaseConfig
	Solver    SolverConfig
	RunStore  RunStoreConfig
	Scheduler SchedulerConfig
	Otel      OtelConfig

	// SolveRateLimit caps solve submissions per second; 0 disables the limiter.
	SolveRateLimit float64 `env:"SOLVE_RATE_LIMIT" envDefault:"0"`
	SolveRateBurst int     `env:"SOLVE_RATE_BURST" envDefault:"10"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"modelforge"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"modelforge"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// Solver backends.
const (
	BackendConjure     = "conjure"
	BackendLocalSearch = "localsearch"
)

// SolverConfig controls how the external solver is launched.
type SolverConfig struct {
	// Backend selects the solver family: "conjure" or "localsearch".
	Backend string `env:"SOLVER_BACKEND" envDefault:"conjure"`

	ConjureBin   string   `env:"CONJURE_BIN" envDefault:"conjure"`
	AthanorBin   string   `env:"ATHANOR_BIN" envDefault:"athanor"`
	ConverterBin string   `env:"SOLUTION_CONVERTER_BIN" envDefault:"conjure"`
	WorkdirRoot  string   `env:"SOLVER_WORKDIR_ROOT" envDefault:""`
	ExtraArgs    []string `env:"SOLVER_EXTRA_ARGS" envSeparator:" "`

	AttemptTimeout time.Duration `env:"SOLVER_ATTEMPT_TIMEOUT" envDefault:"60s"`
	MaxAttempts    int           `env:"SOLVER_MAX_ATTEMPTS" envDefault:"10"`
	MaxSolutions   int           `env:"SOLVER_MAX_SOLUTIONS" envDefault:"10"`

	// PoolConcurrency bounds concurrently running solves; 0 means unlimited.
	PoolConcurrency int `env:"SOLVER_POOL_CONCURRENCY" envDefault:"0"`
}

// Validate rejects settings the orchestrator cannot run with.
func (s *SolverConfig) Validate() error {
	switch s.Backend {
	case BackendConjure, BackendLocalSearch:
	default:
		return fmt.Errorf("unknown solver backend %q", s.Backend)
	}
	if s.MaxAttempts < 1 {
		return fmt.Errorf("SOLVER_MAX_ATTEMPTS must be positive, got %d", s.MaxAttempts)
	}
	if s.MaxSolutions < 1 {
		return fmt.Errorf("SOLVER_MAX_SOLUTIONS must be positive, got %d", s.MaxSolutions)
	}
	if s.AttemptTimeout <= 0 {
		return fmt.Errorf("SOLVER_ATTEMPT_TIMEOUT must be positive, got %s", s.AttemptTimeout)
	}
	if s.PoolConcurrency < 0 {
		return fmt.Errorf("SOLVER_POOL_CONCURRENCY must not be negative, got %d", s.PoolConcurrency)
	}
	return nil
}

// Run store drivers.
const (
	RunStorePostgres = "postgres"
	RunStoreBadger   = "badger"
)

// RunStoreConfig selects where Runs are persisted.
type RunStoreConfig struct {
	Driver     string `env:"RUN_STORE" envDefault:"postgres"`
	BadgerPath string `env:"BADGER_PATH" envDefault:"./data/runs"`
}

// SchedulerConfig controls the maintenance cron tasks.
type SchedulerConfig struct {
	Enabled bool `env:"SCHEDULER_ENABLED" envDefault:"true"`

	// StaleRunMinutes is how long a started Run may stay open before the sweep
	// marks it interrupted.
	StaleRunMinutes     int           `env:"STALE_RUN_MINUTES" envDefault:"30"`
	StaleSweepInterval  time.Duration `env:"STALE_SWEEP_INTERVAL" envDefault:"5m"`
	WorkdirJanitorEvery time.Duration `env:"WORKDIR_JANITOR_INTERVAL" envDefault:"15m"`
}

// attemptGrace covers the pipe drain after a killed solver and a killed
// converter (two process waits of 5s each) on top of SOLVER_ATTEMPT_TIMEOUT.
const attemptGrace = 10 * time.Second

// runMargin covers workdir setup and the Run store writes around a solve.
const runMargin = time.Minute

// MaxRunDuration is the longest a single solve can own its Run.
func (s *SolverConfig) MaxRunDuration() time.Duration {
	return time.Duration(s.MaxAttempts) * (s.AttemptTimeout + attemptGrace)
}

// validateStaleAfter keeps the stale sweep and the workdir janitor away
// from Runs a live solve still owns.
func validateStaleAfter(sc SchedulerConfig, solver *SolverConfig) error {
	if !sc.Enabled {
		return nil
	}
	limit := solver.MaxRunDuration() + runMargin
	if sc.StaleAfter() <= limit {
		return fmt.Errorf("STALE_RUN_MINUTES (%s) must exceed SOLVER_MAX_ATTEMPTS x (SOLVER_ATTEMPT_TIMEOUT + %s) + %s = %s",
			sc.StaleAfter(), attemptGrace, runMargin, limit)
	}
	return nil
}

// StaleAfter returns the stale threshold as a duration.
func (s SchedulerConfig) StaleAfter() time.Duration {
	return time.Duration(s.StaleRunMinutes) * time.Minute
}

// NewConfig creates a new Config from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Solver.Validate(); err != nil {
		return nil, fmt.Errorf("invalid solver config: %w", err)
	}
	if err := validateStaleAfter(cfg.Scheduler, &cfg.Solver); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}
	switch cfg.RunStore.Driver {
	case RunStorePostgres, RunStoreBadger:
	default:
		return nil, fmt.Errorf("unknown run store %q", cfg.RunStore.Driver)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.String("solver_backend", cfg.Solver.Backend),
		slog.String("run_store", cfg.RunStore.Driver),
	)

	return cfg, nil
}
