package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emergent-company/modelforge/domain/graph"
	"github.com/emergent-company/modelforge/pkg/logger"
)

type fixture struct {
	things []*graph.Thing
	conns  []*graph.Connection
}

type thingOpt func(*graph.Thing)
type connOpt func(*graph.Connection)

func (f *fixture) add(id string, kind graph.ThingKind, name string, opts ...thingOpt) *fixture {
	t := &graph.Thing{ID: id, Kind: kind, TypeAttributes: graph.TypeAttributes{Name: name}}
	for _, o := range opts {
		o(t)
	}
	f.things = append(f.things, t)
	return f
}

func (f *fixture) link(id, src, dst string, typ graph.ConnectionType, opts ...connOpt) *fixture {
	c := &graph.Connection{ID: id, SourceID: src, DestinationID: dst, Type: typ}
	for _, o := range opts {
		o(c)
	}
	f.conns = append(f.conns, c)
	return f
}

func (f *fixture) graph() *graph.Graph { return graph.New(f.things, f.conns) }

func amount(n int) thingOpt { return func(t *graph.Thing) { t.TypeAttributes.Amount = n } }

func capacity(lo, hi int) thingOpt {
	return func(t *graph.Thing) { t.TypeAttributes.Capacity = &graph.Bounds{lo, hi} }
}

func ordered() thingOpt  { return func(t *graph.Thing) { t.TypeAttributes.Ordered = true } }
func repeated() thingOpt { return func(t *graph.Thing) { t.TypeAttributes.Repeated = true } }
func circular() thingOpt { return func(t *graph.Thing) { t.TypeAttributes.Circular = true } }
func op(o string) thingOpt {
	return func(t *graph.Thing) { t.TypeAttributes.Operator = o }
}

func attr(key, id, value string, initial bool) thingOpt {
	return func(t *graph.Thing) {
		t.Attributes = append(t.Attributes, graph.Attribute{Key: key, AttributeID: id, Value: value, Initial: initial})
	}
}

func picked(connID string, counted bool) thingOpt {
	return func(t *graph.Thing) {
		t.PickedRelationships = append(t.PickedRelationships, graph.PickedRelationship{ConnectionID: connID, RelationshipAttribute: counted})
	}
}

func pickedAttr(id, parentID string) thingOpt {
	return func(t *graph.Thing) {
		t.PickedAttributes = append(t.PickedAttributes, graph.PickedAttribute{AttributeID: id, ParentAttributeID: parentID})
	}
}

func pos(n int) connOpt { return func(c *graph.Connection) { c.DestinationPosition = n } }
func reads(attrID string) connOpt {
	return func(c *graph.Connection) { c.ConnectorAttributes.AttributeID = attrID }
}
func howMany(lo, hi int) connOpt {
	return func(c *graph.Connection) { c.ConnectorAttributes.HowMany = &graph.Bounds{lo, hi} }
}

func compile(t *testing.T, g *graph.Graph, targets ...string) *Model {
	t.Helper()
	m, err := NewCompiler(logger.Discard()).Compile(context.Background(), g, targets)
	require.NoError(t, err)
	return m
}

// shelfFixture: two auto items of weight 4 that may go on one shelf with
// capacity [1,3].
func shelfFixture() *fixture {
	f := &fixture{}
	f.add("ct-shelf", graph.KindContainerType, "Shelf", amount(1), capacity(1, 3)).
		add("ot-item", graph.KindObjectType, "Item", amount(2), attr("weight", "a-w", "4", true)).
		link("c-put", "ot-item", "ct-shelf", graph.ConnPutInto)
	return f
}

// capacityFixture: three auto items of weight 4 and one shelf with capacity
// [1,3], so every item fits only when the shelf is full.
func capacityFixture() *fixture {
	f := &fixture{}
	f.add("ct-shelf", graph.KindContainerType, "Shelf", amount(1), capacity(1, 3)).
		add("ot-item", graph.KindObjectType, "Item", amount(3), attr("weight", "a-w", "4", true)).
		link("c-put", "ot-item", "ct-shelf", graph.ConnPutInto)
	return f
}
