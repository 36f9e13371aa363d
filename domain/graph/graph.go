package graph

import (
	"cmp"
	"slices"
)

// Direction selects which end of an edge a traversal follows.
type Direction int

const (
	// Outgoing follows edges whose source is the current node.
	Outgoing Direction = iota
	// Incoming follows edges whose destination is the current node.
	Incoming
)

// Graph is an immutable, canonically ordered view over Things and
// Connections. Things are ordered by id and edges by (destination position,
// source position, id), so traversals do not depend on storage order.
type Graph struct {
	things      map[string]*Thing
	order       []*Thing
	connections map[string]*Connection
	out         map[string]map[ConnectionType][]*Connection
	in          map[string]map[ConnectionType][]*Connection
}

// New builds a Graph. Later duplicates of an id are ignored. Edges whose
// endpoints are unknown are kept in the connection index but never traversed.
func New(things []*Thing, connections []*Connection) *Graph {
	g := &Graph{
		things:      make(map[string]*Thing, len(things)),
		connections: make(map[string]*Connection, len(connections)),
		out:         make(map[string]map[ConnectionType][]*Connection),
		in:          make(map[string]map[ConnectionType][]*Connection),
	}

	for _, t := range things {
		if t == nil || t.ID == "" {
			continue
		}
		if _, dup := g.things[t.ID]; dup {
			continue
		}
		g.things[t.ID] = t
		g.order = append(g.order, t)
	}
	slices.SortFunc(g.order, func(a, b *Thing) int { return cmp.Compare(a.ID, b.ID) })

	sorted := make([]*Connection, 0, len(connections))
	for _, c := range connections {
		if c == nil || c.ID == "" {
			continue
		}
		if _, dup := g.connections[c.ID]; dup {
			continue
		}
		g.connections[c.ID] = c
		sorted = append(sorted, c)
	}
	slices.SortFunc(sorted, compareEdges)

	for _, c := range sorted {
		if g.things[c.SourceID] == nil || g.things[c.DestinationID] == nil {
			continue
		}
		addEdge(g.out, c.SourceID, c)
		addEdge(g.in, c.DestinationID, c)
	}
	return g
}

func compareEdges(a, b *Connection) int {
	return cmp.Or(
		cmp.Compare(a.DestinationPosition, b.DestinationPosition),
		cmp.Compare(a.SourcePosition, b.SourcePosition),
		cmp.Compare(a.ID, b.ID),
	)
}

func addEdge(idx map[string]map[ConnectionType][]*Connection, id string, c *Connection) {
	byKind := idx[id]
	if byKind == nil {
		byKind = make(map[ConnectionType][]*Connection)
		idx[id] = byKind
	}
	byKind[c.Type] = append(byKind[c.Type], c)
}

// Thing returns the node with the given id.
func (g *Graph) Thing(id string) (*Thing, bool) {
	t, ok := g.things[id]
	return t, ok
}

// Connection returns the edge with the given id.
func (g *Graph) Connection(id string) (*Connection, bool) {
	c, ok := g.connections[id]
	return c, ok
}

// Things returns every node in canonical order.
func (g *Graph) Things() []*Thing {
	return slices.Clone(g.order)
}

// ThingsOfKind returns the nodes of the given kinds in canonical order.
func (g *Graph) ThingsOfKind(kinds ...ThingKind) []*Thing {
	var out []*Thing
	for _, t := range g.order {
		if slices.Contains(kinds, t.Kind) {
			out = append(out, t)
		}
	}
	return out
}

// ThingByName returns the first node, in canonical order, with the given name.
func (g *Graph) ThingByName(name string) (*Thing, bool) {
	for _, t := range g.order {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Edges returns the edges of kind touching id in the given direction.
func (g *Graph) Edges(id string, dir Direction, kind ConnectionType) []*Connection {
	idx := g.out
	if dir == Incoming {
		idx = g.in
	}
	return idx[id][kind]
}

// Neighbors returns the Things at the far end of Edges(id, dir, kind).
func (g *Graph) Neighbors(id string, dir Direction, kind ConnectionType) []*Thing {
	edges := g.Edges(id, dir, kind)
	out := make([]*Thing, 0, len(edges))
	for _, c := range edges {
		out = append(out, g.things[g.Far(c, dir)])
	}
	return out
}

// Far returns the endpoint of c opposite to the one dir starts from.
func (g *Graph) Far(c *Connection, dir Direction) string {
	if dir == Outgoing {
		return c.DestinationID
	}
	return c.SourceID
}

// IsBaseDefinition reports whether t has no instanceOf edge to a model-kind
// Thing. Only base definitions seed instance resolution.
func (g *Graph) IsBaseDefinition(t *Thing) bool {
	if !t.Kind.IsModel() {
		return false
	}
	for _, parent := range g.Neighbors(t.ID, Outgoing, ConnInstanceOf) {
		if parent.Kind.IsModel() {
			return false
		}
	}
	return true
}

// BaseDefinitions returns every base definition in canonical order.
func (g *Graph) BaseDefinitions() []*Thing {
	var out []*Thing
	for _, t := range g.order {
		if g.IsBaseDefinition(t) {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of Things.
func (g *Graph) Len() int { return len(g.order) }
