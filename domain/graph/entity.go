package graph

import (
	"time"

	"github.com/uptrace/bun"
)

// ThingKind is the kind of a graph node.
type ThingKind string

// Model kinds.
const (
	KindObject        ThingKind = "object"
	KindContainer     ThingKind = "container"
	KindObjectType    ThingKind = "object_type"
	KindContainerType ThingKind = "container_type"
)

// Constraint-graph kinds.
const (
	KindConstant     ThingKind = "constant"
	KindOperator     ThingKind = "operator"
	KindAggregate    ThingKind = "aggregate"
	KindReducer      ThingKind = "reducer"
	KindDirective    ThingKind = "directive"
	KindSelector     ThingKind = "selector"
	KindRelationship ThingKind = "relationship"
)

// AllKinds lists every kind a store may hold, model kinds first.
var AllKinds = []ThingKind{
	KindObject, KindContainer, KindObjectType, KindContainerType,
	KindConstant, KindOperator, KindAggregate, KindReducer,
	KindDirective, KindSelector, KindRelationship,
}

// IsModel reports whether k takes part in instantiation.
func (k ThingKind) IsModel() bool {
	switch k {
	case KindObject, KindContainer, KindObjectType, KindContainerType:
		return true
	}
	return false
}

// IsType reports whether k is a type definition.
func (k ThingKind) IsType() bool {
	return k == KindObjectType || k == KindContainerType
}

// IsContainer reports whether k is a container or container type.
func (k ThingKind) IsContainer() bool {
	return k == KindContainer || k == KindContainerType
}

// Bounds is an inclusive [min,max] pair where -1 means unbounded.
type Bounds [2]int

// Unbounded is the value used for an open bound.
const Unbounded = -1

func (b Bounds) Min() int { return b[0] }
func (b Bounds) Max() int { return b[1] }

// TypeAttributes are the structural settings of a Thing.
type TypeAttributes struct {
	Name         string  `json:"name" yaml:"name"`
	Amount       int     `json:"amount,omitempty" yaml:"amount,omitempty"`
	Capacity     *Bounds `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	Ordered      bool    `json:"ordered,omitempty" yaml:"ordered,omitempty"`
	Circular     bool    `json:"circular,omitempty" yaml:"circular,omitempty"`
	Repeated     bool    `json:"repeated,omitempty" yaml:"repeated,omitempty"`
	TypeRepeated bool    `json:"typeRepeated,omitempty" yaml:"typeRepeated,omitempty"`

	// Operator is the symbol name of operator, aggregate, reducer and directive nodes.
	Operator string `json:"operator,omitempty" yaml:"operator,omitempty"`
}

// Attribute is one entry of a Thing's ordered attribute list. AttributeID is
// the merge key across the inheritance chain; Key is the compiled name.
type Attribute struct {
	Key         string `json:"key" yaml:"key"`
	AttributeID string `json:"attributeId" yaml:"attributeId"`
	Value       string `json:"value,omitempty" yaml:"value,omitempty"`
	Initial     bool   `json:"initial,omitempty" yaml:"initial,omitempty"`
}

// MergeKey returns AttributeID, or Key when no id was assigned.
func (a Attribute) MergeKey() string {
	if a.AttributeID != "" {
		return a.AttributeID
	}
	return a.Key
}

// PickedRelationship references a putInto connection by id.
type PickedRelationship struct {
	ConnectionID          string `json:"connectionId" yaml:"connectionId"`
	RelationshipAttribute bool   `json:"relationshipAttribute,omitempty" yaml:"relationshipAttribute,omitempty"`
}

// PickedAttribute exposes a parent attribute of the selected container on a selector.
type PickedAttribute struct {
	AttributeID       string `json:"attributeId" yaml:"attributeId"`
	ParentAttributeID string `json:"parentAttributeId" yaml:"parentAttributeId"`
}

// Thing is a node of the model or constraint graph.
type Thing struct {
	bun.BaseModel `bun:"table:things,alias:t" json:"-" yaml:"-"`

	ID                  string               `bun:"id,pk" json:"id" yaml:"id"`
	Kind                ThingKind            `bun:"kind,notnull" json:"kind" yaml:"kind"`
	TypeAttributes      TypeAttributes       `bun:"type_attributes,type:jsonb,notnull" json:"typeAttributes" yaml:"typeAttributes"`
	Attributes          []Attribute          `bun:"attributes,type:jsonb,notnull" json:"attributes,omitempty" yaml:"attributes,omitempty"`
	PickedRelationships []PickedRelationship `bun:"picked_relationships,type:jsonb,notnull" json:"pickedRelationships,omitempty" yaml:"pickedRelationships,omitempty"`
	PickedAttributes    []PickedAttribute    `bun:"picked_attributes,type:jsonb,notnull" json:"pickedAttributes,omitempty" yaml:"pickedAttributes,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:now()" json:"updatedAt" yaml:"-"`
}

// Name is shorthand for TypeAttributes.Name.
func (t *Thing) Name() string { return t.TypeAttributes.Name }

// ConnectionType is the kind of an edge.
type ConnectionType string

const (
	ConnInstanceOf     ConnectionType = "instanceOf"
	ConnPutInto        ConnectionType = "putInto"
	ConnSelector       ConnectionType = "selector"
	ConnRepresentative ConnectionType = "representative"
	ConnOperand        ConnectionType = "operand"
	ConnReduce         ConnectionType = "reduce"
)

// AllConnectionTypes lists every edge kind.
var AllConnectionTypes = []ConnectionType{
	ConnInstanceOf, ConnPutInto, ConnSelector, ConnRepresentative, ConnOperand, ConnReduce,
}

// ConnectorAttributes carry per-edge settings.
type ConnectorAttributes struct {
	HowMany     *Bounds `json:"howMany,omitempty" yaml:"howMany,omitempty"`
	AttributeID string  `json:"attributeId,omitempty" yaml:"attributeId,omitempty"`
}

// Connection is a directed typed edge. For instanceOf the source is the
// instance and the destination its prototype; for putInto the source is the
// member and the destination the container; operand and reduce edges point
// from the operand into the consuming node.
type Connection struct {
	bun.BaseModel `bun:"table:connections,alias:c" json:"-" yaml:"-"`

	ID                  string              `bun:"id,pk" json:"id" yaml:"id"`
	SourceID            string              `bun:"source_id,notnull" json:"sourceId" yaml:"sourceId"`
	DestinationID       string              `bun:"destination_id,notnull" json:"destinationId" yaml:"destinationId"`
	SourcePosition      int                 `bun:"source_position,notnull" json:"sourcePosition" yaml:"sourcePosition,omitempty"`
	DestinationPosition int                 `bun:"destination_position,notnull" json:"destinationPosition" yaml:"destinationPosition,omitempty"`
	Type                ConnectionType      `bun:"type,notnull" json:"type" yaml:"type"`
	ConnectorAttributes ConnectorAttributes `bun:"connector_attributes,type:jsonb,notnull" json:"connectorAttributes" yaml:"connectorAttributes,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"createdAt" yaml:"-"`
}
