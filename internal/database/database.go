package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/fx"

	"github.com/emergent-company/modelforge/internal/config"
	"github.com/emergent-company/modelforge/pkg/logger"
)

var Module = fx.Module("database",
	fx.Provide(
		NewPgxPool,
		NewBunDB,
		fx.Annotate(
			func(db *bun.DB) bun.IDB { return db },
			fx.As(new(bun.IDB)),
		),
	),
)

const (
	// queries slower than this are logged at warn
	slowQueryThreshold = 3 * time.Second
	// queries are truncated to this many bytes in logs
	maxLoggedQuery = 512

	connectAttempts = 5
	connectBackoff  = time.Second
)

// NewPgxPool connects to Postgres. The first ping is retried a few times so
// the server can start alongside a database that is still booting.
func NewPgxPool(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	log = log.With(logger.Scope("database"))

	pc, err := poolConfig(cfg.Database)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := ping(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("postgres connected",
		slog.String("addr", fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)),
		slog.String("database", cfg.Database.Database),
		slog.Int("max_conns", int(pc.MaxConns)),
	)

	lc.Append(fx.StopHook(func() {
		log.Info("closing postgres pool")
		pool.Close()
	}))
	return pool, nil
}

func poolConfig(db config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(db.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	pc.MaxConns = int32(db.MaxOpenConns)
	pc.MinConns = int32(min(db.MaxIdleConns, db.MaxOpenConns))
	pc.MaxConnIdleTime = db.MaxIdleTime
	return pc, nil
}

func ping(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = pool.Ping(ctx); err == nil {
			return nil
		}
		log.Warn("postgres not reachable yet", slog.Int("attempt", attempt), logger.Error(err))
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping database: %w", errors.Join(err, ctx.Err()))
		case <-time.After(time.Duration(attempt) * connectBackoff):
		}
	}
	return fmt.Errorf("ping database: %w", err)
}

// NewBunDB exposes the pgx pool through bun.
func NewBunDB(lc fx.Lifecycle, pool *pgxpool.Pool, cfg *config.Config, log *slog.Logger) (*bun.DB, error) {
	db := Wrap(stdlib.OpenDBFromPool(pool), cfg.Database.QueryDebug, log)
	lc.Append(fx.StopHook(db.Close))
	return db, nil
}

// Wrap builds a bun.DB over an existing sql.DB. The CLI uses it with its own
// pgdriver connection.
func Wrap(sqldb *sql.DB, queryDebug bool, log *slog.Logger) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(&queryLogger{
		log:   log.With(logger.Scope("bun")),
		slow:  slowQueryThreshold,
		debug: queryDebug,
	})
	return db
}

// queryLogger reports failed and slow queries, and every query when debug
// is set.
type queryLogger struct {
	log   *slog.Logger
	slow  time.Duration
	debug bool
}

func (h *queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogger) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	attrs := []slog.Attr{
		slog.String("op", event.Operation()),
		slog.String("query", truncate(event.Query, maxLoggedQuery)),
		slog.Duration("elapsed", elapsed),
	}

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.log.LogAttrs(ctx, slog.LevelError, "query failed", append(attrs, logger.Error(event.Err))...)
	case elapsed > h.slow:
		h.log.LogAttrs(ctx, slog.LevelWarn, "slow query", attrs...)
	case h.debug:
		h.log.LogAttrs(ctx, slog.LevelDebug, "query", attrs...)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
