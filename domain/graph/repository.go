package graph

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/emergent-company/modelforge/pkg/apperror"
	"github.com/emergent-company/modelforge/pkg/logger"
)

// Repository is the Postgres-backed Store.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new graph repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("graph.repo")),
	}
}

func (r *Repository) FindThing(ctx context.Context, id string) (*Thing, error) {
	t := new(Thing)
	err := r.db.NewSelect().Model(t).Where("t.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrThingNotFound
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return t, nil
}

func (r *Repository) FindThingsByType(ctx context.Context, kind ThingKind) ([]*Thing, error) {
	var things []*Thing
	err := r.db.NewSelect().
		Model(&things).
		Where("t.kind = ?", kind).
		Order("t.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return things, nil
}

func (r *Repository) FindThingByName(ctx context.Context, name string) (*Thing, error) {
	t := new(Thing)
	err := r.db.NewSelect().
		Model(t).
		Where("t.type_attributes->>'name' = ?", name).
		Order("t.id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrThingNotFound
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return t, nil
}

func (r *Repository) FindConnectionsByType(ctx context.Context, kind ConnectionType) ([]*Connection, error) {
	var conns []*Connection
	err := r.db.NewSelect().
		Model(&conns).
		Where("c.type = ?", kind).
		Order("c.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return conns, nil
}

// Import upserts a snapshot in one transaction. Existing rows with the same
// ids are overwritten (last write wins).
func (r *Repository) Import(ctx context.Context, snap *Snapshot) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(snap.Things) > 0 {
			_, err := tx.NewInsert().
				Model(&snap.Things).
				On("CONFLICT (id) DO UPDATE").
				Set("kind = EXCLUDED.kind").
				Set("type_attributes = EXCLUDED.type_attributes").
				Set("attributes = EXCLUDED.attributes").
				Set("picked_relationships = EXCLUDED.picked_relationships").
				Set("picked_attributes = EXCLUDED.picked_attributes").
				Set("updated_at = now()").
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		if len(snap.Connections) > 0 {
			_, err := tx.NewInsert().
				Model(&snap.Connections).
				On("CONFLICT (id) DO UPDATE").
				Set("source_id = EXCLUDED.source_id").
				Set("destination_id = EXCLUDED.destination_id").
				Set("source_position = EXCLUDED.source_position").
				Set("destination_position = EXCLUDED.destination_position").
				Set("type = EXCLUDED.type").
				Set("connector_attributes = EXCLUDED.connector_attributes").
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}

	r.log.Info("snapshot imported",
		slog.Int("things", len(snap.Things)),
		slog.Int("connections", len(snap.Connections)),
	)
	return nil
}
