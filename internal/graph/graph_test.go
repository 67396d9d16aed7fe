package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNode_NoOpOnSameContentHash(t *testing.T) {
	g := New()

	changed := g.AddNode("a.go", []string{"b.go"}, []string{"Foo"}, "go", "package a")
	assert.True(t, changed)

	changed = g.AddNode("a.go", []string{"b.go"}, []string{"Foo"}, "go", "package a")
	assert.False(t, changed, "re-adding identical content must be a no-op")
}

func TestAddNode_RebuildsEdgesOnChange(t *testing.T) {
	g := New()

	g.AddNode("a.go", []string{"b.go"}, nil, "go", "v1")
	require.Equal(t, []string{"b.go"}, g.DirectImports("a.go"))

	changed := g.AddNode("a.go", []string{"c.go"}, nil, "go", "v2")
	assert.True(t, changed)
	assert.Equal(t, []string{"c.go"}, g.DirectImports("a.go"))
	assert.Empty(t, g.DirectDependents("b.go"))
}

func TestRemoveNode_DropsTouchingEdges(t *testing.T) {
	g := New()
	g.AddNode("a.go", []string{"b.go"}, nil, "go", "a")
	g.AddNode("b.go", nil, []string{"Foo"}, "go", "b")

	require.Equal(t, []string{"a.go"}, g.DirectDependents("b.go"))

	g.RemoveNode("a.go")
	assert.Nil(t, g.Node("a.go"))
	assert.Empty(t, g.DirectDependents("b.go"))
}

func TestHasChanged(t *testing.T) {
	g := New()
	assert.True(t, g.HasChanged("new.go", "content"), "untracked file is always changed")

	g.AddNode("new.go", nil, nil, "go", "content")
	assert.False(t, g.HasChanged("new.go", "content"))
	assert.True(t, g.HasChanged("new.go", "different content"))
}

func TestDirectDependents_LiteralStringEquality(t *testing.T) {
	g := New()
	g.AddNode("a.go", []string{"pkg/util"}, nil, "go", "a")
	g.AddNode("b.go", []string{"pkg/util"}, nil, "go", "b")
	g.AddNode("pkg/util", nil, []string{"Util"}, "go", "u")

	deps := g.DirectDependents("pkg/util")
	assert.ElementsMatch(t, []string{"a.go", "b.go"}, deps)
}

func TestDependencies_BFSTruncatesAtMaxDepth(t *testing.T) {
	g := New()
	g.AddNode("a.go", []string{"b.go"}, nil, "go", "a")
	g.AddNode("b.go", []string{"c.go"}, nil, "go", "b")
	g.AddNode("c.go", []string{"d.go"}, nil, "go", "c")
	g.AddNode("d.go", nil, nil, "go", "d")

	deps := g.Dependencies("a.go", 2)
	_, hasB := deps["b.go"]
	_, hasC := deps["c.go"]
	_, hasD := deps["d.go"]
	assert.True(t, hasB)
	assert.True(t, hasC)
	assert.False(t, hasD, "d.go is 3 hops away, beyond maxDepth=2")
}

func TestDependencies_CyclicGraphTerminates(t *testing.T) {
	g := New()
	g.AddNode("a.go", []string{"b.go"}, nil, "go", "a")
	g.AddNode("b.go", []string{"a.go"}, nil, "go", "b")

	deps := g.Dependencies("a.go", 10)
	_, ok := deps["b.go"]
	assert.True(t, ok)
}

func TestDistance(t *testing.T) {
	g := New()
	g.AddNode("a.go", []string{"b.go"}, nil, "go", "a")
	g.AddNode("b.go", []string{"c.go"}, nil, "go", "b")
	g.AddNode("c.go", nil, nil, "go", "c")
	g.AddNode("isolated.go", nil, nil, "go", "z")

	assert.Equal(t, 0, g.Distance("a.go", "a.go"))
	assert.Equal(t, 1, g.Distance("a.go", "b.go"))
	assert.Equal(t, 2, g.Distance("a.go", "c.go"))
	assert.Equal(t, -1, g.Distance("a.go", "isolated.go"))
	// Edges are directed for traversal, but distance is undirected.
	assert.Equal(t, 1, g.Distance("b.go", "a.go"))
}

func TestDistanceScores(t *testing.T) {
	g := New()
	g.AddNode("a.go", []string{"b.go"}, nil, "go", "a")
	g.AddNode("b.go", nil, nil, "go", "b")
	g.AddNode("isolated.go", nil, nil, "go", "z")

	scores := g.DistanceScores("a.go")
	assert.Equal(t, 1.0, scores["a.go"])
	assert.InDelta(t, 0.5, scores["b.go"], 1e-9)
	assert.Equal(t, 0.0, scores["isolated.go"])
}

func TestToJSONFromJSON_RoundTrip(t *testing.T) {
	g := New()
	g.AddNode("a.go", []string{"b.go"}, []string{"Foo"}, "go", "package a")
	g.AddNode("b.go", nil, []string{"Bar"}, "go", "package b")

	data, err := g.ToJSON()
	require.NoError(t, err)

	restored, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"b.go"}, restored.DirectImports("a.go"))
	assert.Equal(t, 1, restored.Distance("a.go", "b.go"))
	assert.Equal(t, g.Node("a.go").ContentHash, restored.Node("a.go").ContentHash)
}

func TestSaveLoad_AtomicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db", "graph.json")

	g := New()
	g.AddNode("a.go", []string{"b.go"}, nil, "go", "a")

	require.NoError(t, Save(g, path))
	assert.FileExists(t, path)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.go"}, loaded.DirectImports("a.go"))
}

func TestLoad_MissingFileReturnsEmptyGraph(t *testing.T) {
	g, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, g.Stats().NodeCount)
}

func TestLoad_CorruptFileReturnsEmptyGraphWithWarning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	g, err := Load(path)
	assert.Error(t, err)
	assert.Equal(t, 0, g.Stats().NodeCount)
}
