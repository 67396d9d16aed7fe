// Package rank implements the hybrid ranker: it combines a lexical overlap
// signal, a structural graph-distance signal, and a vector-similarity
// signal into a single per-file score, the way the indexer's old RRF
// fusion combined BM25 and vector ranks — except the combination here is
// the spec-literal weighted sum the ranking contract calls for, not RRF.
package rank

import (
	"github.com/contextos/contextos/internal/chunk"
	"github.com/contextos/contextos/internal/config"
)

// Score breaks a file's final ranking score down by signal.
type Score struct {
	Lexical    float64 `json:"lexical"`
	Structural float64 `json:"structural"`
	Vector     float64 `json:"vector"`
	Final      float64 `json:"final"`
}

// RankedFile is one candidate file with its score and the chunks that will
// be eligible for packing by the budgeter.
type RankedFile struct {
	Path   string        `json:"path"`
	Score  Score         `json:"score"`
	Chunks []*chunk.Chunk `json:"chunks"`
}

// Options parameterizes a single ranking pass.
type Options struct {
	Goal string
	// TargetFile, if set, anchors the structural signal on distanceScores(TargetFile).
	TargetFile string
	// RecentlyChanged is consulted for the structural signal when TargetFile
	// is empty: the highest distanceScores(g)[path] over g in this set wins.
	RecentlyChanged []string
	// Files is the candidate universe: path -> its chunks.
	Files map[string][]*chunk.Chunk
	// Rules are constraint-aware exclusions; any rule with a non-empty
	// Scope glob matching a candidate path zeroes that file's score.
	Rules []config.Constraint
}
