// Package budget implements the Token Budgeter: it packs a ranked file list
// plus a core text block and the project's rules into a fixed token budget,
// and reports how much was left out.
package budget

import (
	"github.com/contextos/contextos/internal/chunk"
	"github.com/contextos/contextos/internal/config"
	"github.com/contextos/contextos/internal/rank"
)

// PackedFile is one file that made it into the packed context, carrying
// only the chunks that fit.
type PackedFile struct {
	Path   string        `json:"path"`
	Score  rank.Score    `json:"score"`
	Chunks []*chunk.Chunk `json:"chunks"`
	Tokens int           `json:"tokens"`
}

// Savings summarizes how much the packing pass trimmed relative to the
// full candidate set.
type Savings struct {
	RawTokens    int `json:"raw_tokens"`
	PackedTokens int `json:"packed_tokens"`
	Percentage   int `json:"percentage"`
}

// Result is the Budgeter's output: the packed core, the packed files in
// rank order, the rules carried along (if configured to), and the
// resulting savings accounting.
type Result struct {
	Core        string             `json:"core"`
	CoreTruncated bool             `json:"core_truncated"`
	CoreTokens  int                `json:"core_tokens"`
	Files       []PackedFile       `json:"files"`
	Rules       []config.Constraint `json:"rules"`
	TotalTokens int                `json:"total_tokens"`
	Savings     Savings            `json:"savings"`
}
