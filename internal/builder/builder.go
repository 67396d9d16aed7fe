package builder

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/contextos/contextos/internal/budget"
	"github.com/contextos/contextos/internal/chunk"
	"github.com/contextos/contextos/internal/config"
	"github.com/contextos/contextos/internal/embed"
	"github.com/contextos/contextos/internal/graph"
	"github.com/contextos/contextos/internal/llm"
	"github.com/contextos/contextos/internal/rank"
	"github.com/contextos/contextos/internal/store"
	"github.com/contextos/contextos/internal/vcs"
)

// Loader produces the graph, vector store, and file->chunks universe a
// Builder ranks and packs over. It runs at most once per Builder: see
// Builder.ensureLoaded.
type Loader func(ctx context.Context) (*graph.Graph, store.VectorStore, map[string][]*chunk.Chunk, error)

// Builder is the Context Builder: it lazily loads the graph and vector
// store, infers a goal when none is given, then drives the Ranker and the
// Budgeter to produce a packed, Markdown-rendered BuiltContext. A Builder
// never mutates the graph or the vector store it loads.
type Builder struct {
	loader            Loader
	embedder          embed.Embedder
	weights           rank.Weights
	budgetCfg         config.BudgetConfig
	rules             []config.Constraint
	vcs               vcs.Collaborator
	goalAdapter       llm.Adapter
	projectDescriptor string

	mu      sync.Mutex
	sf      singleflight.Group
	loaded  bool
	graph   *graph.Graph
	vectors store.VectorStore
	files   map[string][]*chunk.Chunk
}

// New constructs a Builder. vcsCollab and goalAdapter may be nil — goal
// inference then degrades to the empty string (explicit goals only).
func New(loader Loader, embedder embed.Embedder, weights rank.Weights, budgetCfg config.BudgetConfig, rules []config.Constraint, vcsCollab vcs.Collaborator, goalAdapter llm.Adapter, projectDescriptor string) *Builder {
	return &Builder{
		loader:            loader,
		embedder:          embedder,
		weights:           weights,
		budgetCfg:         budgetCfg,
		rules:             rules,
		vcs:               vcsCollab,
		goalAdapter:       goalAdapter,
		projectDescriptor: projectDescriptor,
	}
}

// Build runs one Builder pass: ensure the graph/vector store are loaded,
// resolve the goal, rank candidate files, pack them into the token budget,
// and render the Markdown wire format.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) (*BuiltContext, error) {
	g, vectors, files, err := b.ensureLoaded(ctx)
	if err != nil {
		return nil, fmt.Errorf("builder: initializing graph/vector store: %w", err)
	}

	goal := opts.Goal
	if strings.TrimSpace(goal) == "" {
		goal = b.inferGoal(ctx)
	}

	ranker := rank.New(g, vectors, b.embedder, b.weights)
	rankedFiles, err := ranker.Rank(ctx, rank.Options{
		Goal:       goal,
		TargetFile: opts.TargetFile,
		Files:      files,
		Rules:      b.rules,
	})
	if err != nil {
		return nil, fmt.Errorf("builder: ranking: %w", err)
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = b.budgetCfg.MaxTokens
	}
	modelID := opts.ModelID
	if modelID == "" {
		modelID = b.budgetCfg.TargetModel
	}

	budgetCfg := b.budgetCfg
	budgetCfg.IncludeRules = opts.IncludeRules
	budgeter := budget.New(budgetCfg)
	packed := budgeter.Pack(rankedFiles, b.projectDescriptor, b.rules, maxTokens, modelID)

	bc := &BuiltContext{
		Goal:        goal,
		Files:       packed.Files,
		Rules:       packed.Rules,
		TotalTokens: packed.TotalTokens,
		Savings:     packed.Savings,
	}
	bc.Markdown = renderMarkdown(bc, packed.Core)
	return bc, nil
}

// ensureLoaded runs the Loader at most once. Concurrent callers during the
// in-flight window share the single call via singleflight; a failure
// leaves loaded false so the next call retries instead of replaying the
// error forever.
func (b *Builder) ensureLoaded(ctx context.Context) (*graph.Graph, store.VectorStore, map[string][]*chunk.Chunk, error) {
	b.mu.Lock()
	if b.loaded {
		g, vs, f := b.graph, b.vectors, b.files
		b.mu.Unlock()
		return g, vs, f, nil
	}
	b.mu.Unlock()

	_, err, _ := b.sf.Do("load", func() (interface{}, error) {
		g, vs, f, err := b.loader(ctx)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.graph, b.vectors, b.files = g, vs, f
		b.loaded = true
		b.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return nil, nil, nil, err
	}

	b.mu.Lock()
	g, vs, f := b.graph, b.vectors, b.files
	b.mu.Unlock()
	return g, vs, f, nil
}

// renderMarkdown produces the BuiltContext wire format callers receive. The
// packed core text is rendered right after the goal line (when non-empty)
// so the footer's token count, which already includes the core's tokens via
// the Budgeter, matches what actually appears in the document.
func renderMarkdown(bc *BuiltContext, core string) string {
	var out strings.Builder

	out.WriteString("# Project Context\n\n")
	out.WriteString("**Goal:** " + bc.Goal + "\n\n")

	if strings.TrimSpace(core) != "" {
		out.WriteString(core + "\n\n")
	}

	out.WriteString("## Coding Rules\n")
	for _, rule := range bc.Rules {
		out.WriteString(severityIcon(rule.Severity) + " " + rule.Rule + "\n")
	}

	out.WriteString("\n## Relevant Files\n")
	for _, f := range bc.Files {
		out.WriteString("### " + f.Path + "\n")
		out.WriteString("```\n")
		for _, c := range f.Chunks {
			out.WriteString(c.Content)
			if !strings.HasSuffix(c.Content, "\n") {
				out.WriteString("\n")
			}
		}
		out.WriteString("```\n\n")
	}

	out.WriteString("---\n")
	fmt.Fprintf(&out, "*Context: %d tokens | %d files | %d%% token savings*\n", bc.TotalTokens, len(bc.Files), bc.Savings.Percentage)
	return out.String()
}

func severityIcon(severity string) string {
	switch severity {
	case "error":
		return "❌"
	case "warning":
		return "⚠️"
	case "info":
		return "ℹ️"
	default:
		return "•"
	}
}
