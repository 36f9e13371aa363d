package runs

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/emergent-company/modelforge/pkg/apperror"
	"github.com/emergent-company/modelforge/pkg/logger"
	"github.com/emergent-company/modelforge/pkg/pgutils"
)

// Repository is the Postgres-backed Store.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new run repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("runs.repo")),
	}
}

func (r *Repository) Insert(ctx context.Context, run *Run) error {
	if run.RawSolutions == nil {
		run.RawSolutions = []string{}
	}
	if run.ParsedSolutions == nil {
		run.ParsedSolutions = []string{}
	}
	_, err := r.db.NewInsert().Model(run).Returning("created_at").Exec(ctx)
	if pgutils.IsUniqueViolation(err) {
		return ErrDuplicateHash
	}
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, patch Patch) error {
	run := &Run{ProblemID: id}
	cols := patch.Apply(run)
	if len(cols) == 0 {
		return nil
	}
	res, err := r.db.NewUpdate().
		Model(run).
		Column(cols...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	return r.findOne(ctx, "r.problem_id = ?", id)
}

func (r *Repository) FindByHash(ctx context.Context, hash string) (*Run, error) {
	return r.findOne(ctx, "r.hash = ?", hash)
}

func (r *Repository) findOne(ctx context.Context, where string, arg any) (*Run, error) {
	run := new(Run)
	err := r.db.NewSelect().Model(run).Where(where, arg).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return run, nil
}

func (r *Repository) ListOpen(ctx context.Context, startedBefore time.Time) ([]*Run, error) {
	var out []*Run
	err := r.db.NewSelect().
		Model(&out).
		ExcludeColumn("model", "problem_state", "index_map").
		Where("r.ended_at IS NULL").
		Where("r.started_at < ?", startedBefore).
		Order("r.started_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return out, nil
}
