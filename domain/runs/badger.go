package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/emergent-company/modelforge/pkg/logger"
)

const (
	runPrefix  = "run/"
	hashPrefix = "hash/"
)

// BadgerOptions configures OpenBadger.
type BadgerOptions struct {
	Path     string
	InMemory bool
	Logger   *slog.Logger
}

type badgerLogger struct {
	log *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens a badger database for Runs.
func OpenBadger(opts BadgerOptions) (*badger.DB, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, errors.New("badger path is required for a persistent run store")
	}

	var bo badger.Options
	if opts.InMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create run store directory %s: %w", opts.Path, err)
		}
		bo = badger.DefaultOptions(opts.Path).WithSyncWrites(true)
	}
	bo = bo.WithNumVersionsToKeep(1)
	if opts.Logger != nil {
		bo = bo.WithLogger(&badgerLogger{log: opts.Logger.With(logger.Scope("runs.badger"))})
	} else {
		bo = bo.WithLogger(nil)
	}

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("open badger run store: %w", err)
	}
	return db, nil
}

// BadgerStore keeps Runs as JSON values in badger with a secondary hash key.
type BadgerStore struct {
	db  *badger.DB
	log *slog.Logger
}

// NewBadgerStore wraps an open database. The caller owns db.
func NewBadgerStore(db *badger.DB, log *slog.Logger) *BadgerStore {
	return &BadgerStore{db: db, log: log.With(logger.Scope("runs.badger"))}
}

func runKey(id uuid.UUID) []byte { return []byte(runPrefix + id.String()) }
func hashKey(hash string) []byte { return []byte(hashPrefix + hash) }

func (s *BadgerStore) Insert(_ context.Context, run *Run) error {
	c := run.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range [][]byte{hashKey(c.Hash), runKey(c.ProblemID)} {
			_, err := txn.Get(key)
			if err == nil {
				return ErrDuplicateHash
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		if err := txn.Set(runKey(c.ProblemID), data); err != nil {
			return err
		}
		return txn.Set(hashKey(c.Hash), []byte(c.ProblemID.String()))
	})
	if errors.Is(err, badger.ErrConflict) {
		return ErrDuplicateHash
	}
	return err
}

func (s *BadgerStore) Update(_ context.Context, id uuid.UUID, patch Patch) error {
	return s.db.Update(func(txn *badger.Txn) error {
		run, err := getRun(txn, id)
		if err != nil {
			return err
		}
		patch.Apply(run)
		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("encode run: %w", err)
		}
		return txn.Set(runKey(id), data)
	})
}

func (s *BadgerStore) FindByID(_ context.Context, id uuid.UUID) (*Run, error) {
	var run *Run
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		run, err = getRun(txn, id)
		return err
	})
	return run, err
}

func (s *BadgerStore) FindByHash(_ context.Context, hash string) (*Run, error) {
	var run *Run
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(hashKey(hash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrRunNotFound
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id, err := uuid.ParseBytes(raw)
		if err != nil {
			return fmt.Errorf("corrupt hash index for %s: %w", hash, err)
		}
		run, err = getRun(txn, id)
		return err
	})
	return run, err
}

func (s *BadgerStore) ListOpen(_ context.Context, startedBefore time.Time) ([]*Run, error) {
	var out []*Run
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var run Run
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			}); err != nil {
				s.log.Warn("skipping undecodable run", slog.String("key", string(it.Item().Key())), logger.Error(err))
				continue
			}
			if isOpen(&run, startedBefore) {
				out = append(out, &run)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByStart(out)
	return out, nil
}

func getRun(txn *badger.Txn, id uuid.UUID) (*Run, error) {
	item, err := txn.Get(runKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	run := new(Run)
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, run) }); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, nil
}

func sortByStart(runs []*Run) {
	slices.SortFunc(runs, func(a, b *Run) int {
		if c := a.StartedAt.Compare(*b.StartedAt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
