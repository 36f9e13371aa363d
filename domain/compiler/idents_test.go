package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Shelf auto1", "Shelf_auto1"},
		{"big  red--box", "big_red_box"},
		{"3 drawers", "n_3_drawers"},
		{"", "n_"},
		{"find", "find_"},
		{"sum", "sum_"},
		{"déjà vu", "d_j_vu"},
		{"already_ok", "already_ok"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), tt.in)
	}
}

func TestNamer(t *testing.T) {
	n := newNamer()
	n.reserve("x")

	assert.Equal(t, "Shelf_A", n.ident("container", "Shelf A"))
	assert.Equal(t, "Shelf_A_2", n.ident("container", "Shelf-A"))
	assert.Equal(t, "Shelf_A", n.ident("container", "Shelf A"), "stable per name")
	assert.Equal(t, "Shelf_A_3", n.ident("type", "Shelf A"), "scopes do not share")
	assert.Equal(t, "x_2", n.ident("attr", "x"))
}

func TestHash(t *testing.T) {
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", Hash("abc"))
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", Hash(""))
}
