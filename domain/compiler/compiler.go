// Package compiler turns a model graph and its constraint graph into a
// deterministic Essence model.
//
// Compilation runs in four steps: instance resolution over instanceOf edges,
// index assignment, containment resolution over putInto edges starting at
// the find targets, and emission. Elements that cannot be wired are logged
// and skipped; only an empty target list is an error.
package compiler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/emergent-company/modelforge/domain/graph"
	"github.com/emergent-company/modelforge/pkg/logger"
	"github.com/emergent-company/modelforge/pkg/tracing"
)

// ErrEmptyFindTargets rejects a compile with nothing to solve for.
var ErrEmptyFindTargets = errors.New("at least one find target is required")

// Model is the output of a compile.
type Model struct {
	Text  string
	Hash  string
	Index *orderedmap.OrderedMap[string, int]
	State *ProblemState
	// Skipped counts constraint nodes that produced no text.
	Skipped int
}

// Compiler compiles graphs. It holds no per-compile state and is safe for
// concurrent use.
type Compiler struct {
	log *slog.Logger
}

// NewCompiler creates a compiler.
func NewCompiler(log *slog.Logger) *Compiler {
	return &Compiler{log: log.With(logger.Scope("compiler"))}
}

// Compile resolves g and emits the model for findTargets, which may be Thing
// ids or names.
func (c *Compiler) Compile(ctx context.Context, g *graph.Graph, findTargets []string) (*Model, error) {
	if len(findTargets) == 0 {
		compilesTotal.WithLabelValues("rejected").Inc()
		return nil, ErrEmptyFindTargets
	}

	_, span := tracing.Start(ctx, "compiler.compile",
		attribute.Int("modelforge.find_targets", len(findTargets)),
		attribute.Int("modelforge.things", g.Len()),
	)
	defer span.End()
	start := time.Now()

	state := NewProblemState()
	ResolveGraph(g, state, c.log)
	state.AssignIndices()

	NewContainmentResolver(g, c.log).Resolve(state, c.targets(g, findTargets))

	e := newEmitter(g, state, c.log)
	text := e.emit()

	m := &Model{
		Text:    text,
		Hash:    Hash(text),
		Index:   state.Index,
		State:   state,
		Skipped: e.walker.Skipped(),
	}

	compilesTotal.WithLabelValues("ok").Inc()
	compileDuration.Observe(time.Since(start).Seconds())
	skippedNodes.Add(float64(m.Skipped))
	span.SetAttributes(
		attribute.String("modelforge.hash", m.Hash),
		attribute.Int("modelforge.instances", state.Index.Len()),
	)

	c.log.Debug("model compiled",
		slog.String("hash", m.Hash),
		slog.Int("instances", state.Index.Len()),
		slog.Int("containers", state.Contents.Len()),
		slog.Int("skipped", m.Skipped),
	)
	return m, nil
}

func (c *Compiler) targets(g *graph.Graph, refs []string) []*graph.Thing {
	var out []*graph.Thing
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		t, ok := g.Thing(ref)
		if !ok {
			t, ok = g.ThingByName(ref)
		}
		if !ok {
			c.log.Warn("unknown find target", slog.String("target", ref))
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}
