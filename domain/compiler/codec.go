package compiler

import (
	"encoding/json"
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// StateVersion is the version written by EncodeState.
const StateVersion = 1

// ErrStateVersion is returned when decoding a state written by another version.
var ErrStateVersion = errors.New("unsupported problem state version")

// Map kinds inside an encoded state.
const (
	mapObjects       = "objects"
	mapContainers    = "containers"
	mapTypeMembers   = "typeMembers"
	mapValues        = "values"
	mapAttributeKeys = "attributeKeys"
	mapIndex         = "index"
	mapContents      = "contents"
	mapParents       = "parents"
	mapLinks         = "links"
)

type taggedMap struct {
	Kind    string          `json:"kind"`
	Entries json.RawMessage `json:"entries"`
}

type stateEnvelope struct {
	Version int         `json:"version"`
	Maps    []taggedMap `json:"maps"`
}

// EncodeState serializes s for the Run store. Map order is preserved.
func EncodeState(s *ProblemState) ([]byte, error) {
	env := stateEnvelope{Version: StateVersion}

	parts := []struct {
		kind string
		v    any
	}{
		{mapObjects, s.Objects},
		{mapContainers, s.Containers},
		{mapTypeMembers, s.TypeMembers},
		{mapValues, s.Values},
		{mapAttributeKeys, s.AttributeKeys},
		{mapIndex, s.Index},
		{mapContents, s.Contents},
		{mapParents, s.Parents},
		{mapLinks, s.Links},
	}
	for _, p := range parts {
		raw, err := json.Marshal(p.v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", p.kind, err)
		}
		env.Maps = append(env.Maps, taggedMap{Kind: p.kind, Entries: raw})
	}
	return json.Marshal(env)
}

// DecodeState is the inverse of EncodeState.
func DecodeState(data []byte) (*ProblemState, error) {
	var env stateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode problem state: %w", err)
	}
	if env.Version != StateVersion {
		return nil, fmt.Errorf("%w: %d", ErrStateVersion, env.Version)
	}

	s := NewProblemState()
	for _, m := range env.Maps {
		var target any
		switch m.Kind {
		case mapObjects:
			target = s.Objects
		case mapContainers:
			target = s.Containers
		case mapTypeMembers:
			target = s.TypeMembers
		case mapValues:
			target = s.Values
		case mapAttributeKeys:
			target = s.AttributeKeys
		case mapIndex:
			target = s.Index
		case mapContents:
			target = s.Contents
		case mapParents:
			target = s.Parents
		case mapLinks:
			target = &s.Links
		default:
			return nil, fmt.Errorf("decode problem state: unknown map kind %q", m.Kind)
		}
		if err := json.Unmarshal(m.Entries, target); err != nil {
			return nil, fmt.Errorf("decode %s: %w", m.Kind, err)
		}
	}

	for _, m := range []*orderedmap.OrderedMap[string, *Instance]{s.Objects, s.Containers} {
		for pair := m.Oldest(); pair != nil; pair = pair.Next() {
			if pair.Value.Attributes == nil {
				pair.Value.Attributes = orderedmap.New[string, AttrValue]()
			}
		}
	}
	return s, nil
}
