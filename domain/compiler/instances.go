package compiler

import (
	"fmt"
	"log/slog"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/emergent-company/modelforge/domain/graph"
	"github.com/emergent-company/modelforge/pkg/logger"
)

// EdgeFunc expands a node id to its neighbours along one instanceOf direction.
type EdgeFunc func(id string) []*graph.Thing

// InstanceEdges returns the outgoing (prototype) and incoming (instance)
// instanceOf expansions over g.
func InstanceEdges(g *graph.Graph) (out, in EdgeFunc) {
	out = func(id string) []*graph.Thing { return g.Neighbors(id, graph.Outgoing, graph.ConnInstanceOf) }
	in = func(id string) []*graph.Thing { return g.Neighbors(id, graph.Incoming, graph.ConnInstanceOf) }
	return out, in
}

// InstanceResolver walks the inheritance graph depth first from base
// definitions, merging attributes down the chain and synthesizing the
// instances a type's amount asks for.
type InstanceResolver struct {
	parents  EdgeFunc
	children EdgeFunc
	log      *slog.Logger

	visited  map[string]struct{}
	visiting map[string]struct{}
}

// NewInstanceResolver creates a resolver over the two expansion functions.
func NewInstanceResolver(parents, children EdgeFunc, log *slog.Logger) *InstanceResolver {
	return &InstanceResolver{
		parents:  parents,
		children: children,
		log:      log.With(logger.Scope("compiler.instances")),
		visited:  make(map[string]struct{}),
		visiting: make(map[string]struct{}),
	}
}

// ResolveGraph resolves every base definition of g into state.
func ResolveGraph(g *graph.Graph, state *ProblemState, log *slog.Logger) {
	out, in := InstanceEdges(g)
	r := NewInstanceResolver(out, in, log)
	for _, base := range g.BaseDefinitions() {
		if err := r.Resolve(base, state); err != nil {
			r.log.Warn("skipping base definition", slog.String("thing", base.ID), logger.Error(err))
		}
	}
}

// Resolve resolves the subtree rooted at the base definition root.
func (r *InstanceResolver) Resolve(root *graph.Thing, state *ProblemState) error {
	if !root.Kind.IsModel() {
		return fmt.Errorf("thing %s of kind %s is not a model thing", root.ID, root.Kind)
	}
	for _, p := range r.parents(root.ID) {
		if p.Kind.IsModel() {
			return fmt.Errorf("thing %s is an instance of %s, not a base definition", root.ID, p.ID)
		}
	}
	r.visit(root, orderedmap.New[string, AttrValue](), nil, nil, state)
	return nil
}

// visit merges node's attributes over inherited and either emits node as an
// instance or, for a type, recurses and tops up its amount.
func (r *InstanceResolver) visit(node *graph.Thing, inherited *orderedmap.OrderedMap[string, AttrValue], chain []string, shape *Shape, state *ProblemState) {
	if _, seen := r.visited[node.ID]; seen {
		return
	}
	if _, cycle := r.visiting[node.ID]; cycle {
		r.log.Warn("instanceOf cycle", slog.String("thing", node.ID))
		return
	}
	r.visiting[node.ID] = struct{}{}
	defer func() {
		delete(r.visiting, node.ID)
		r.visited[node.ID] = struct{}{}
	}()

	merged := mergeAttributes(inherited, node.Attributes)
	shape = mergeShape(shape, node)

	if node.Kind.IsType() {
		chain = append([]string{node.Name()}, chain...)
		state.EnsureType(node.Name())
	} else {
		r.emit(state, &Instance{
			Name:    node.Name(),
			ThingID: node.ID,
			Kind:    node.Kind,
			Types:   slices.Clone(chain),
		}, merged, shape)
	}

	existing := 0
	for _, child := range r.children(node.ID) {
		if !child.Kind.IsModel() {
			continue
		}
		if !child.Kind.IsType() {
			existing++
		}
		r.visit(child, merged, chain, shape, state)
	}

	if !node.Kind.IsType() {
		return
	}
	kind := graph.KindObject
	if node.Kind == graph.KindContainerType {
		kind = graph.KindContainer
	}
	for i := 1; i <= node.TypeAttributes.Amount-existing; i++ {
		r.emit(state, &Instance{
			Name:        fmt.Sprintf("%s auto%d", node.Name(), i),
			ThingID:     node.ID,
			Kind:        kind,
			Types:       slices.Clone(chain),
			Synthesized: true,
		}, merged, shape)
	}
}

func (r *InstanceResolver) emit(state *ProblemState, inst *Instance, merged *orderedmap.OrderedMap[string, AttrValue], shape *Shape) {
	inst.Attributes = orderedmap.New[string, AttrValue]()
	for pair := merged.Oldest(); pair != nil; pair = pair.Next() {
		if inst.IsContainer() && !pair.Value.Initial {
			continue
		}
		inst.Attributes.Set(pair.Key, pair.Value)
	}
	if inst.IsContainer() {
		s := Shape{}
		if shape != nil {
			s = *shape
		}
		inst.Shape = &s
	}
	if !state.AddInstance(inst) {
		r.log.Warn("duplicate instance name", slog.String("name", inst.Name), slog.String("thing", inst.ThingID))
	}
}

// mergeAttributes overlays own onto inherited by attribute id. Overridden
// entries keep their inherited position.
func mergeAttributes(inherited *orderedmap.OrderedMap[string, AttrValue], own []graph.Attribute) *orderedmap.OrderedMap[string, AttrValue] {
	merged := orderedmap.New[string, AttrValue](inherited.Len() + len(own))
	for pair := inherited.Oldest(); pair != nil; pair = pair.Next() {
		merged.Set(pair.Key, pair.Value)
	}
	for _, a := range own {
		merged.Set(a.MergeKey(), AttrValue{Key: a.Key, Value: a.Value, Initial: a.Initial})
	}
	return merged
}

func mergeShape(inherited *Shape, node *graph.Thing) *Shape {
	if !node.Kind.IsContainer() {
		return inherited
	}
	s := Shape{}
	if inherited != nil {
		s = *inherited
	}
	ta := node.TypeAttributes
	if ta.Capacity != nil {
		c := *ta.Capacity
		s.Capacity = &c
	}
	s.Ordered = s.Ordered || ta.Ordered
	s.Circular = s.Circular || ta.Circular
	s.Repeated = s.Repeated || ta.Repeated
	return &s
}
