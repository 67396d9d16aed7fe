package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

func marshalSnapshot(nodes map[string]*Node) ([]byte, error) {
	snap := snapshot{Version: currentVersion, Nodes: nodes}
	return json.MarshalIndent(snap, "", "  ")
}

func unmarshalSnapshot(data []byte) (map[string]*Node, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	if snap.Nodes == nil {
		return map[string]*Node{}, nil
	}
	return snap.Nodes, nil
}

// Load reads a graph snapshot from path. A missing file returns a fresh,
// empty graph with no error. A corrupt file also returns a fresh, empty
// graph, together with an error the caller should log as a warning rather
// than treat as fatal.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return New(), fmt.Errorf("reading graph file %s: %w", path, err)
	}

	g, err := FromJSON(data)
	if err != nil {
		return New(), fmt.Errorf("graph file %s is corrupt, starting empty: %w", path, err)
	}
	return g, nil
}

// Save writes the graph to path atomically (write to a temp file in the
// same directory, then rename).
func Save(g *Graph, path string) error {
	data, err := g.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing graph: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating graph directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".graph-*.json.tmp")
	if err != nil {
		return fmt.Errorf("creating temp graph file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp graph file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp graph file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming graph file into place: %w", err)
	}
	return nil
}
