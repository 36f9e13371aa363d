package compiler

import (
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/emergent-company/modelforge/domain/graph"
)

// AttrValue is one merged attribute of an instance.
type AttrValue struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Initial bool   `json:"initial,omitempty"`
}

// Shape holds the container settings that drive find declarations.
type Shape struct {
	Capacity *graph.Bounds `json:"capacity,omitempty"`
	Ordered  bool          `json:"ordered,omitempty"`
	Circular bool          `json:"circular,omitempty"`
	Repeated bool          `json:"repeated,omitempty"`
}

// Instance is a concrete or synthesized object or container.
type Instance struct {
	Name    string          `json:"name"`
	ThingID string          `json:"thingId"`
	Kind    graph.ThingKind `json:"kind"`
	// Types is the accumulated type-name chain, nearest type first.
	Types       []string                                  `json:"types,omitempty"`
	Attributes  *orderedmap.OrderedMap[string, AttrValue] `json:"attributes"`
	Shape       *Shape                                    `json:"shape,omitempty"`
	Synthesized bool                                      `json:"synthesized,omitempty"`
}

// IsContainer reports whether the instance is a container.
func (i *Instance) IsContainer() bool { return i.Kind == graph.KindContainer }

// Link records one putInto edge seen during containment resolution.
type Link struct {
	ConnectionID  string          `json:"connectionId"`
	Member        string          `json:"member"`
	MemberKind    graph.ThingKind `json:"memberKind"`
	Container     string          `json:"container"`
	ContainerKind graph.ThingKind `json:"containerKind"`
	HowMany       *graph.Bounds   `json:"howMany,omitempty"`
}

// ProblemState is the resolved model for one compile. Every map keeps
// insertion order, which is the canonical discovery order.
type ProblemState struct {
	// Objects and Containers map instance name to instance.
	Objects    *orderedmap.OrderedMap[string, *Instance]
	Containers *orderedmap.OrderedMap[string, *Instance]
	// TypeMembers maps a type name to the instances whose chain contains it.
	TypeMembers *orderedmap.OrderedMap[string, []string]
	// Values maps an attribute key to instance name to value, the reverse of
	// Instance.Attributes.
	Values *orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, string]]
	// AttributeKeys maps attribute ids to their compiled key.
	AttributeKeys *orderedmap.OrderedMap[string, string]
	// Index maps instance names to 1-based indices.
	Index *orderedmap.OrderedMap[string, int]
	// Contents maps a container to its candidate members; Parents is the
	// reverse direction.
	Contents *orderedmap.OrderedMap[string, []string]
	Parents  *orderedmap.OrderedMap[string, []string]
	Links    []Link

	names []string
}

// NewProblemState returns an empty state.
func NewProblemState() *ProblemState {
	return &ProblemState{
		Objects:       orderedmap.New[string, *Instance](),
		Containers:    orderedmap.New[string, *Instance](),
		TypeMembers:   orderedmap.New[string, []string](),
		Values:        orderedmap.New[string, *orderedmap.OrderedMap[string, string]](),
		AttributeKeys: orderedmap.New[string, string](),
		Index:         orderedmap.New[string, int](),
		Contents:      orderedmap.New[string, []string](),
		Parents:       orderedmap.New[string, []string](),
	}
}

// Instance looks an instance up by name in objects, then containers.
func (s *ProblemState) Instance(name string) (*Instance, bool) {
	if inst, ok := s.Objects.Get(name); ok {
		return inst, true
	}
	return s.Containers.Get(name)
}

// AddInstance records inst and its reverse mappings. It returns false when
// the name is already taken by an instance of either kind.
func (s *ProblemState) AddInstance(inst *Instance) bool {
	if _, taken := s.Instance(inst.Name); taken {
		return false
	}
	if inst.IsContainer() {
		s.Containers.Set(inst.Name, inst)
	} else {
		s.Objects.Set(inst.Name, inst)
	}

	for _, typ := range inst.Types {
		members, _ := s.TypeMembers.Get(typ)
		s.TypeMembers.Set(typ, append(members, inst.Name))
	}

	for pair := inst.Attributes.Oldest(); pair != nil; pair = pair.Next() {
		attrID, av := pair.Key, pair.Value
		if _, ok := s.AttributeKeys.Get(attrID); !ok {
			s.AttributeKeys.Set(attrID, av.Key)
		}
		if av.Value == "" {
			continue
		}
		byInstance, ok := s.Values.Get(av.Key)
		if !ok {
			byInstance = orderedmap.New[string, string]()
			s.Values.Set(av.Key, byInstance)
		}
		byInstance.Set(inst.Name, av.Value)
	}
	return true
}

// EnsureType registers a type name with no members yet.
func (s *ProblemState) EnsureType(name string) {
	if _, ok := s.TypeMembers.Get(name); !ok {
		s.TypeMembers.Set(name, nil)
	}
}

// AssignIndices numbers objects first, then containers, from 1.
func (s *ProblemState) AssignIndices() {
	s.Index = orderedmap.New[string, int]()
	s.names = s.names[:0]
	for _, m := range []*orderedmap.OrderedMap[string, *Instance]{s.Objects, s.Containers} {
		for pair := m.Oldest(); pair != nil; pair = pair.Next() {
			s.names = append(s.names, pair.Key)
			s.Index.Set(pair.Key, len(s.names))
		}
	}
}

// IndexOf returns the index of an instance.
func (s *ProblemState) IndexOf(name string) (int, bool) {
	return s.Index.Get(name)
}

// NameAt returns the instance name with index i.
func (s *ProblemState) NameAt(i int) (string, bool) {
	if s.names == nil && s.Index.Len() > 0 {
		s.rebuildNames()
	}
	if i < 1 || i > len(s.names) {
		return "", false
	}
	return s.names[i-1], true
}

func (s *ProblemState) rebuildNames() {
	s.names = make([]string, s.Index.Len())
	for pair := s.Index.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value >= 1 && pair.Value <= len(s.names) {
			s.names[pair.Value-1] = pair.Key
		}
	}
}

// Expand resolves a Thing to instance names: a concrete Thing to itself when
// it was resolved, a type to the members of the matching kind.
func (s *ProblemState) Expand(t *graph.Thing) []string {
	return s.ExpandName(t.Name(), t.Kind)
}

// ExpandName is Expand for a name and kind pair.
func (s *ProblemState) ExpandName(name string, kind graph.ThingKind) []string {
	if !kind.IsType() {
		if _, ok := s.Instance(name); ok {
			return []string{name}
		}
		return nil
	}
	members, _ := s.TypeMembers.Get(name)
	wantContainer := kind == graph.KindContainerType
	var out []string
	for _, m := range members {
		inst, ok := s.Instance(m)
		if ok && inst.IsContainer() == wantContainer {
			out = append(out, m)
		}
	}
	return out
}

// AddContent records member inside container in both directions.
func (s *ProblemState) AddContent(container, member string) {
	members, _ := s.Contents.Get(container)
	if !slices.Contains(members, member) {
		s.Contents.Set(container, append(members, member))
	}
	parents, _ := s.Parents.Get(member)
	if !slices.Contains(parents, container) {
		s.Parents.Set(member, append(parents, container))
	}
}

// Indices maps names to their sorted indices, dropping unindexed names.
func (s *ProblemState) Indices(names []string) []int {
	out := make([]int, 0, len(names))
	for _, n := range names {
		if i, ok := s.Index.Get(n); ok {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
