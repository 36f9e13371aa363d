package graph

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSnapshot(t *testing.T) {
	snap, err := LoadSnapshot(filepath.Join("testdata", "shelves.yaml"))
	require.NoError(t, err)

	require.Len(t, snap.Things, 3)
	require.Len(t, snap.Connections, 2)

	shelf := snap.Things[2]
	assert.Equal(t, KindContainerType, shelf.Kind)
	require.NotNil(t, shelf.TypeAttributes.Capacity)
	assert.Equal(t, 1, shelf.TypeAttributes.Capacity.Min())
	assert.Equal(t, 3, shelf.TypeAttributes.Capacity.Max())

	item := snap.Things[0]
	require.Len(t, item.Attributes, 1)
	assert.Equal(t, Attribute{Key: "weight", AttributeID: "a-weight", Value: "2", Initial: true}, item.Attributes[0])

	put := snap.Connections[1]
	require.NotNil(t, put.ConnectorAttributes.HowMany)
	assert.Equal(t, Bounds{0, 2}, *put.ConnectorAttributes.HowMany)

	g := snap.Graph()
	assert.Len(t, g.BaseDefinitions(), 2)
}

func TestParseSnapshot_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "unknown field",
			doc:     "things:\n  - id: a\n    kind: object\n    colour: red\n",
			wantErr: "decode snapshot",
		},
		{
			name:    "missing id",
			doc:     "things:\n  - kind: object\n",
			wantErr: "missing id",
		},
		{
			name:    "duplicate thing",
			doc:     "things:\n  - {id: a, kind: object}\n  - {id: a, kind: object}\n",
			wantErr: "duplicate id",
		},
		{
			name:    "dangling edge",
			doc:     "things:\n  - {id: a, kind: object}\nconnections:\n  - {id: c, sourceId: a, destinationId: b, type: putInto}\n",
			wantErr: "unknown destination",
		},
		{
			name:    "bad capacity arity",
			doc:     "things:\n  - {id: a, kind: container, typeAttributes: {name: A, capacity: [1, 2, 3]}}\n",
			wantErr: "decode snapshot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSnapshot([]byte(tt.doc))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
