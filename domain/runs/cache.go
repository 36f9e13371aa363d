package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/emergent-company/modelforge/domain/compiler"
	"github.com/emergent-company/modelforge/pkg/logger"
)

// Cache memoizes compiled models by hash. A hit returns the Run created for
// the same model text earlier, whatever its state.
type Cache struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// NewCache creates a cache over store.
func NewCache(store Store, log *slog.Logger) *Cache {
	return &Cache{
		store: store,
		log:   log.With(logger.Scope("runs.cache")),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// LookupOrCreate returns the problem id for hash, inserting a fresh Run when
// none exists. isNew is true only for the caller whose insert won.
func (c *Cache) LookupOrCreate(ctx context.Context, hash, text string, state *compiler.ProblemState) (problemID uuid.UUID, isNew bool, err error) {
	existing, err := c.store.FindByHash(ctx, hash)
	if err == nil {
		cacheLookups.WithLabelValues("hit").Inc()
		return existing.ProblemID, false, nil
	}
	if !errors.Is(err, ErrRunNotFound) {
		return uuid.Nil, false, err
	}

	run, err := c.newRun(hash, text, state)
	if err != nil {
		return uuid.Nil, false, err
	}

	err = c.store.Insert(ctx, run)
	if errors.Is(err, ErrDuplicateHash) {
		// lost the race to a concurrent request for the same model
		existing, ferr := c.store.FindByHash(ctx, hash)
		if ferr != nil {
			return uuid.Nil, false, ferr
		}
		cacheLookups.WithLabelValues("hit").Inc()
		c.log.Debug("cache collision", slog.String("hash", hash), slog.String("problem_id", existing.ProblemID.String()))
		return existing.ProblemID, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}

	cacheLookups.WithLabelValues("miss").Inc()
	c.log.Info("run created", slog.String("hash", hash), slog.String("problem_id", run.ProblemID.String()))
	return run.ProblemID, true, nil
}

func (c *Cache) newRun(hash, text string, state *compiler.ProblemState) (*Run, error) {
	stateJSON, err := compiler.EncodeState(state)
	if err != nil {
		return nil, fmt.Errorf("encode problem state: %w", err)
	}
	indexJSON, err := json.Marshal(state.Index)
	if err != nil {
		return nil, fmt.Errorf("encode index map: %w", err)
	}
	return &Run{
		ProblemID:       uuid.New(),
		Hash:            hash,
		Model:           text,
		IndexMap:        indexJSON,
		ProblemState:    stateJSON,
		CreatedAt:       c.now(),
		RawSolutions:    []string{},
		ParsedSolutions: []string{},
	}, nil
}
