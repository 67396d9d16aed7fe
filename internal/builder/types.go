// Package builder implements the Context Builder: the orchestrator that
// turns a goal (explicit or inferred) into a packed, budgeted
// BuiltContext by driving the Ranker and the Budgeter over a lazily
// initialized graph and vector store.
package builder

import (
	"github.com/contextos/contextos/internal/budget"
	"github.com/contextos/contextos/internal/config"
)

// BuildOptions parameterizes a single Build call.
type BuildOptions struct {
	// Goal, if empty, is inferred from VCS state (and, optionally, an LLM).
	Goal string
	// TargetFile, if set, anchors the Ranker's structural signal.
	TargetFile string
	MaxTokens  int
	// IncludeRules mirrors config.BudgetConfig.IncludeRules but lets a
	// single call override it.
	IncludeRules bool
	ModelID      string
}

// BuiltContext is the Builder's output: a packed, Markdown-formatted
// excerpt of the codebase with rules and token accounting.
type BuiltContext struct {
	Goal        string               `json:"goal"`
	Files       []budget.PackedFile  `json:"files"`
	Rules       []config.Constraint  `json:"rules"`
	TotalTokens int                  `json:"total_tokens"`
	Savings     budget.Savings       `json:"savings"`
	Markdown    string               `json:"markdown"`
}
