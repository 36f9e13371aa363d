package graph

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Snapshot is a serialized graph document, used for fixtures and the CLI.
type Snapshot struct {
	Things      []*Thing      `yaml:"things" json:"things"`
	Connections []*Connection `yaml:"connections" json:"connections"`
}

// LoadSnapshot reads a YAML snapshot from path.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

// ParseSnapshot decodes a YAML snapshot. Unknown fields are rejected so that
// typos in hand-written fixtures surface early.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var snap Snapshot
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Validate checks id uniqueness and edge endpoints.
func (s *Snapshot) Validate() error {
	ids := make(map[string]struct{}, len(s.Things))
	for i, t := range s.Things {
		if t == nil || t.ID == "" {
			return fmt.Errorf("thing %d: missing id", i)
		}
		if _, dup := ids[t.ID]; dup {
			return fmt.Errorf("thing %q: duplicate id", t.ID)
		}
		ids[t.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(s.Connections))
	for i, c := range s.Connections {
		if c == nil || c.ID == "" {
			return fmt.Errorf("connection %d: missing id", i)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("connection %q: duplicate id", c.ID)
		}
		seen[c.ID] = struct{}{}
		if _, ok := ids[c.SourceID]; !ok {
			return fmt.Errorf("connection %q: unknown source %q", c.ID, c.SourceID)
		}
		if _, ok := ids[c.DestinationID]; !ok {
			return fmt.Errorf("connection %q: unknown destination %q", c.ID, c.DestinationID)
		}
	}
	return nil
}

// Store returns a MemoryStore over the snapshot.
func (s *Snapshot) Store() *MemoryStore {
	return NewMemoryStore(s.Things, s.Connections)
}

// Graph builds a Graph over the snapshot.
func (s *Snapshot) Graph() *Graph {
	return New(s.Things, s.Connections)
}
