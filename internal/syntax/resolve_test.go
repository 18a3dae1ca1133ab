package syntax

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleModule() *Module {
	g := &FuncDef{Name: "g", Params: []string{"x"}}
	buzz := &FuncDef{Name: "buzz", Params: []string{"self"}, Body: []Stmt{
		&Simple{Text: Text{Source: "y = 1"}},
		g,
	}}
	return &Module{Body: []Stmt{
		&Simple{Text: Text{Source: "import os"}},
		&FuncDef{Name: "foo", Params: []string{"a", "b"}},
		&ClassDef{Name: "Bar", Body: []Stmt{buzz}},
		&FuncDef{Name: "foo", Params: []string{"shadowed"}},
	}}
}

func TestResolve(t *testing.T) {
	m := sampleModule()

	tests := []struct {
		path string
		want string
	}{
		{"foo", "foo"},
		{"Bar", "Bar"},
		{"Bar.buzz", "buzz"},
		{"Bar.buzz.g", "g"},
		{"  Bar.buzz  ", "buzz"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			def, err := Resolve(m, tt.path)
			require.NoError(t, err)
			require.NotNil(t, def)
			assert.Equal(t, tt.want, def.DefName())
		})
	}
}

func TestResolve_FirstMatchWins(t *testing.T) {
	def, err := Resolve(sampleModule(), "foo")
	require.NoError(t, err)

	fn, ok := def.(*FuncDef)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, fn.Params)
}

func TestResolve_EmptyPath(t *testing.T) {
	def, err := Resolve(sampleModule(), "")
	require.NoError(t, err)
	assert.Nil(t, def)
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		path    string
		segment string
	}{
		{"Bar.nonexistent", "nonexistent"},
		{"missing", "missing"},
		{"foo.inner", "inner"},
		{"Bar..buzz", ""},
		{"Bar.buzz.y", "y"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := Resolve(sampleModule(), tt.path)
			require.Error(t, err)

			var selErr *SelectionError
			require.True(t, errors.As(err, &selErr))
			assert.Equal(t, tt.segment, selErr.Segment)
			assert.Contains(t, err.Error(), tt.path)
		})
	}
}

func TestDefs(t *testing.T) {
	defs := Defs(sampleModule().Body)
	require.Len(t, defs, 3)
	assert.Equal(t, "foo", defs[0].DefName())
	assert.Equal(t, "Bar", defs[1].DefName())
}
