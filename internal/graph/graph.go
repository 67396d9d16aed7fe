package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	dgraph "github.com/dominikbraun/graph"
)

// Graph is the dependency graph: vertices are file paths plus every raw
// import string a file references (resolved or not); edges run from a
// file's path to each of its raw import strings. All mutation and read
// operations are safe for concurrent use by one writer and many readers.
type Graph struct {
	mu    sync.RWMutex
	g     dgraph.Graph[string, string]
	nodes map[string]*Node
}

// New returns an empty dependency graph.
func New() *Graph {
	return &Graph{
		g:     dgraph.New(identityHash, dgraph.Directed()),
		nodes: make(map[string]*Node),
	}
}

func identityHash(s string) string { return s }

// ContentHash returns the 8-hex-char content hash spec used throughout the
// graph and chunker for change detection.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:8]
}

// AddNode inserts or replaces a node. If a node already exists at path with
// an identical content hash, this is a no-op and AddNode reports no change.
// Otherwise outgoing edges are rebuilt from the new import list.
func (g *Graph) AddNode(path string, imports, exports []string, language, content string) bool {
	hash := ContentHash(content)

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.nodes[path]; ok && existing.ContentHash == hash {
		return false
	}

	g.removeOutgoingEdgesLocked(path)

	_ = g.g.AddVertex(path)
	for _, imp := range imports {
		_ = g.g.AddVertex(imp)
		_ = g.g.AddEdge(path, imp)
	}

	g.nodes[path] = &Node{
		Path:        path,
		Language:    language,
		Imports:     append([]string(nil), imports...),
		Exports:     append([]string(nil), exports...),
		ContentHash: hash,
	}
	return true
}

// removeOutgoingEdgesLocked drops every edge owned by path's previous import
// list. Callers must hold g.mu.
func (g *Graph) removeOutgoingEdgesLocked(path string) {
	existing, ok := g.nodes[path]
	if !ok {
		return
	}
	for _, imp := range existing.Imports {
		_ = g.g.RemoveEdge(path, imp)
	}
}

// RemoveNode drops a node and every edge touching it, in either direction.
func (g *Graph) RemoveNode(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeOutgoingEdgesLocked(path)

	if preds, err := g.g.PredecessorMap(); err == nil {
		for src := range preds[path] {
			_ = g.g.RemoveEdge(src, path)
		}
	}

	_ = g.g.RemoveVertex(path)
	delete(g.nodes, path)
}

// HasChanged reports whether content's hash differs from the stored node's,
// or whether path has never been indexed.
func (g *Graph) HasChanged(path, content string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	existing, ok := g.nodes[path]
	if !ok {
		return true
	}
	return existing.ContentHash != ContentHash(content)
}

// Node returns the stored node, or nil if path isn't tracked.
func (g *Graph) Node(path string) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[path]
	if !ok {
		return nil
	}
	cp := *n
	return &cp
}

// DirectImports returns path's raw import strings, in declared order.
func (g *Graph) DirectImports(path string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[path]
	if !ok {
		return nil
	}
	return append([]string(nil), n.Imports...)
}

// DirectDependents returns every tracked file whose raw import list contains
// path by literal string equality — no import resolution is attempted.
func (g *Graph) DirectDependents(path string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	preds, err := g.g.PredecessorMap()
	if err != nil {
		return nil
	}
	var out []string
	for src := range preds[path] {
		if _, ok := g.nodes[src]; ok {
			out = append(out, src)
		}
	}
	sort.Strings(out)
	return out
}

// Dependencies returns the set of vertices reachable from path by following
// import edges outward, truncated at maxDepth hops. path itself is excluded.
func (g *Graph) Dependencies(path string, maxDepth int) map[string]struct{} {
	g.mu.RLock()
	defer g.mu.RUnlock()

	adj, err := g.g.AdjacencyMap()
	if err != nil {
		return map[string]struct{}{}
	}

	visited := map[string]int{path: 0}
	queue := []string{path}
	result := map[string]struct{}{}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		depth := visited[cur]
		if depth >= maxDepth {
			continue
		}
		for next := range adj[cur] {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = depth + 1
			result[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return result
}

// Distance returns the shortest undirected hop count between a and b, 0 if
// equal, or -1 if b is unreachable from a.
func (g *Graph) Distance(a, b string) int {
	if a == b {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	hops, ok := g.undirectedHopsLocked(a)[b]
	if !ok {
		return -1
	}
	return hops
}

// DistanceScores returns, for every tracked file reachable from origin
// (including origin itself), a decay score: 1.0 at hop 0, 1/(1+hops)
// thereafter. Unreached tracked files are scored 0.
func (g *Graph) DistanceScores(origin string) map[string]float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	hops := g.undirectedHopsLocked(origin)
	scores := make(map[string]float64, len(g.nodes))
	for path := range g.nodes {
		if h, ok := hops[path]; ok {
			scores[path] = 1.0 / float64(1+h)
		} else {
			scores[path] = 0
		}
	}
	if _, ok := g.nodes[origin]; ok {
		scores[origin] = 1.0
	}
	return scores
}

// undirectedHopsLocked BFS's the graph treating every edge as bidirectional.
// Callers must hold g.mu (read or write).
func (g *Graph) undirectedHopsLocked(origin string) map[string]int {
	adj, err := g.g.AdjacencyMap()
	if err != nil {
		return map[string]int{origin: 0}
	}
	preds, err := g.g.PredecessorMap()
	if err != nil {
		preds = map[string]map[string]dgraph.Edge[string]{}
	}

	hops := map[string]int{origin: 0}
	queue := []string{origin}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		d := hops[cur]

		neighbors := make(map[string]struct{})
		for n := range adj[cur] {
			neighbors[n] = struct{}{}
		}
		for n := range preds[cur] {
			neighbors[n] = struct{}{}
		}
		for n := range neighbors {
			if _, seen := hops[n]; seen {
				continue
			}
			hops[n] = d + 1
			queue = append(queue, n)
		}
	}
	return hops
}

// Stats summarizes the current graph for diagnostics.
type Stats struct {
	NodeCount int
	EdgeCount int
}

// Stats reports node and edge counts.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	size, _ := g.g.Size()
	return Stats{NodeCount: len(g.nodes), EdgeCount: size}
}

// ToJSON serializes the graph's nodes to a stable representation.
func (g *Graph) ToJSON() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return marshalSnapshot(g.nodes)
}

// FromJSON replaces the graph's contents with the serialized snapshot.
func FromJSON(data []byte) (*Graph, error) {
	nodes, err := unmarshalSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("parsing graph snapshot: %w", err)
	}

	g := New()
	for path, n := range nodes {
		_ = g.g.AddVertex(path)
		for _, imp := range n.Imports {
			_ = g.g.AddVertex(imp)
			_ = g.g.AddEdge(path, imp)
		}
		cp := *n
		g.nodes[path] = &cp
	}
	return g, nil
}
