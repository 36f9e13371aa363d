package compiler

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/emergent-company/modelforge/domain/graph"
	"github.com/emergent-company/modelforge/pkg/logger"
)

// Resolvers substitute leaves of the constraint graph. A false result means
// the leaf cannot be wired yet and the consuming node is skipped.
type Resolvers struct {
	// Attribute resolves an attribute read from an instance or selector.
	Attribute func(source *graph.Thing, attributeID string) (string, bool)
	// Reducer resolves a reducer node to the name of its statement.
	Reducer func(source *graph.Thing) (string, bool)
	// Relationship resolves a relationship node to a membership test or count.
	Relationship func(source *graph.Thing) (string, bool)
	// Aggregate renders an aggregation over the range source.
	Aggregate func(op AggregateOp, source *graph.Thing, attributeID string) (string, bool)
	// Constant renders a literal; nil falls back to the built-in rendering.
	Constant func(value string) (string, bool)
}

type walked struct {
	text    string
	ok      bool
	boolean bool
}

// Walker evaluates operator, aggregate and reducer nodes into expressions.
// Results are memoized per node; a node reached again while it is being
// evaluated is a cycle and evaluates to nothing.
type Walker struct {
	g   *graph.Graph
	res Resolvers
	log *slog.Logger

	memo     map[string]walked
	visiting map[string]struct{}
	skipped  int
}

// NewWalker creates a walker over g.
func NewWalker(g *graph.Graph, res Resolvers, log *slog.Logger) *Walker {
	return &Walker{
		g:        g,
		res:      res,
		log:      log.With(logger.Scope("compiler.walker")),
		memo:     make(map[string]walked),
		visiting: make(map[string]struct{}),
	}
}

// Expr returns the text of the node with the given id.
func (w *Walker) Expr(id string) (string, bool) {
	r := w.eval(id)
	return r.text, r.ok
}

// IsBoolean reports whether the node evaluates to a truth value.
func (w *Walker) IsBoolean(id string) bool {
	return w.eval(id).boolean
}

// Skipped counts nodes that produced no text.
func (w *Walker) Skipped() int { return w.skipped }

func (w *Walker) eval(id string) walked {
	if r, ok := w.memo[id]; ok {
		return r
	}
	if _, cycle := w.visiting[id]; cycle {
		w.log.Warn("constraint cycle", slog.String("node", id))
		return walked{}
	}
	w.visiting[id] = struct{}{}
	r := w.evalNode(id)
	delete(w.visiting, id)

	if !r.ok {
		w.skipped++
		w.log.Debug("node skipped", slog.String("node", id))
	}
	w.memo[id] = r
	return r
}

func (w *Walker) evalNode(id string) walked {
	node, ok := w.g.Thing(id)
	if !ok {
		return walked{}
	}

	switch node.Kind {
	case graph.KindOperator:
		op, ok := lookupOperator(opName(node.TypeAttributes.Operator, node.Name()))
		if !ok {
			w.log.Warn("unknown operator", slog.String("node", id), slog.String("operator", node.TypeAttributes.Operator))
			return walked{}
		}
		edges := w.g.Edges(id, graph.Incoming, graph.ConnOperand)
		args := make([]string, 0, len(edges))
		for _, e := range edges {
			text, ok := w.operand(e)
			if !ok {
				return walked{}
			}
			args = append(args, text)
		}
		text, ok := op.render(args)
		return walked{text: text, ok: ok, boolean: op.boolean}

	case graph.KindAggregate:
		op, ok := lookupAggregate(opName(node.TypeAttributes.Operator, node.Name()))
		if !ok {
			return walked{}
		}
		return w.aggregate(op, rangeEdge(w.g.Edges(id, graph.Incoming, graph.ConnOperand)))

	case graph.KindReducer:
		op, ok := lookupAggregate(node.TypeAttributes.Operator)
		if !ok {
			return walked{}
		}
		return w.aggregate(op, rangeEdge(w.g.Edges(id, graph.Incoming, graph.ConnReduce)))
	}
	return walked{}
}

// rangeEdge picks the operand at position 0, or the first edge.
func rangeEdge(edges []*graph.Connection) *graph.Connection {
	for _, e := range edges {
		if e.DestinationPosition == 0 {
			return e
		}
	}
	if len(edges) > 0 {
		return edges[0]
	}
	return nil
}

func (w *Walker) aggregate(op AggregateOp, edge *graph.Connection) walked {
	if edge == nil || w.res.Aggregate == nil {
		return walked{}
	}
	source, ok := w.g.Thing(edge.SourceID)
	if !ok {
		return walked{}
	}
	text, ok := w.res.Aggregate(op, source, edge.ConnectorAttributes.AttributeID)
	return walked{text: text, ok: ok}
}

// operand renders the source end of an operand edge.
func (w *Walker) operand(e *graph.Connection) (string, bool) {
	src, ok := w.g.Thing(e.SourceID)
	if !ok {
		return "", false
	}
	switch src.Kind {
	case graph.KindConstant:
		if w.res.Constant != nil {
			return w.res.Constant(src.Name())
		}
		return literal(src.Name())
	case graph.KindOperator, graph.KindAggregate:
		return w.Expr(src.ID)
	case graph.KindReducer:
		if w.res.Reducer == nil {
			return "", false
		}
		return w.res.Reducer(src)
	case graph.KindRelationship:
		if w.res.Relationship == nil {
			return "", false
		}
		return w.res.Relationship(src)
	case graph.KindObject, graph.KindContainer, graph.KindSelector:
		attrID := e.ConnectorAttributes.AttributeID
		if attrID == "" || w.res.Attribute == nil {
			return "", false
		}
		return w.res.Attribute(src, attrID)
	}
	return "", false
}

// literal renders a constant: integers and booleans as is, anything else as
// an enum value identifier.
func literal(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	if _, err := strconv.Atoi(v); err == nil {
		return v, true
	}
	switch strings.ToLower(v) {
	case "true", "false":
		return strings.ToLower(v), true
	}
	return Sanitize(v), true
}
