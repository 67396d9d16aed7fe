// Package parse implements the Parser (C1): it turns a file's raw content
// into a language-tagged summary of imports, exports, and top-level
// declarations with line spans, over the same tree-sitter grammars the
// chunker uses for symbol extraction. An unsupported or unparseable
// language never fails the parse — it degrades to an opaque result with
// regex-based import/export extraction only.
package parse

import (
	"context"
	"regexp"

	"github.com/contextos/contextos/internal/chunk"
)

// Result is one file's parse: the declarations the Dependency Graph (edges)
// and the Chunker's type-tagging pass (symbol spans) both consume.
type Result struct {
	Language  string
	Imports   []string
	Exports   []string
	Functions []*chunk.Symbol
	Classes   []*chunk.Symbol
}

// Parser wraps the chunk package's tree-sitter plumbing (the same grammars
// the Chunker uses) behind the Parser (C1) contract: declarations with
// line spans, degrading gracefully rather than failing outright.
type Parser struct {
	treeParser *chunk.Parser
	extractor  *chunk.SymbolExtractor
	registry   *chunk.LanguageRegistry
}

// New builds a Parser over the chunk package's default language registry.
func New() *Parser {
	registry := chunk.DefaultRegistry()
	return &Parser{
		treeParser: chunk.NewParserWithRegistry(registry),
		extractor:  chunk.NewSymbolExtractorWithRegistry(registry),
		registry:   registry,
	}
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	p.treeParser.Close()
}

// Parse extracts imports, exports, functions, and classes from content.
// An unsupported language, or a source tree-sitter can't parse, never
// returns an error: the result degrades to regex-extracted imports/exports
// with no functions/classes, matching the "opaque text" fallback the
// Indexer relies on to keep walking the rest of the tree.
func (p *Parser) Parse(ctx context.Context, language string, content []byte) *Result {
	result := &Result{
		Language: language,
		Imports:  extractImports(content),
		Exports:  extractExports(content),
	}

	if _, ok := p.registry.GetByName(language); !ok {
		return result
	}

	tree, err := p.treeParser.Parse(ctx, content, language)
	if err != nil {
		return result
	}

	for _, sym := range p.extractor.Extract(tree, content) {
		switch sym.Type {
		case chunk.SymbolTypeFunction, chunk.SymbolTypeMethod:
			result.Functions = append(result.Functions, sym)
		case chunk.SymbolTypeClass, chunk.SymbolTypeInterface, chunk.SymbolTypeType:
			result.Classes = append(result.Classes, sym)
		}
	}
	return result
}

// Language-agnostic import/export patterns, the same fallback family
// spec.md's CQAPI getImports/getExports use for files the host language
// grammar doesn't recognize: ES import/require, and Python's "from X
// import". Imports/exports are extracted this way (not AST-walked) because
// the LanguageConfig the registry exposes doesn't carry per-language import
// node types — only declaration node types for symbol extraction.
var (
	esImportPattern  = regexp.MustCompile(`(?m)^\s*import\s+.*?from\s+['"]([^'"]+)['"]`)
	esRequirePattern = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	pyImportPattern  = regexp.MustCompile(`(?m)^\s*from\s+(\S+)\s+import\b`)
	esExportPattern  = regexp.MustCompile(`(?m)^\s*export\s+(?:default\s+)?(?:async\s+)?(?:function|class|const|let|var|interface|type)\s+(\w+)`)
	goExportPattern  = regexp.MustCompile(`(?m)^\s*func\s+(?:\([^)]*\)\s*)?([A-Z]\w*)\s*\(`)
)

func extractImports(content []byte) []string {
	s := string(content)
	var out []string
	seen := map[string]struct{}{}
	add := func(v string) {
		if _, ok := seen[v]; ok || v == "" {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, m := range esImportPattern.FindAllStringSubmatch(s, -1) {
		add(m[1])
	}
	for _, m := range esRequirePattern.FindAllStringSubmatch(s, -1) {
		add(m[1])
	}
	for _, m := range pyImportPattern.FindAllStringSubmatch(s, -1) {
		add(m[1])
	}
	return out
}

func extractExports(content []byte) []string {
	s := string(content)
	var out []string
	seen := map[string]struct{}{}
	add := func(v string) {
		if _, ok := seen[v]; ok || v == "" {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, m := range esExportPattern.FindAllStringSubmatch(s, -1) {
		add(m[1])
	}
	for _, m := range goExportPattern.FindAllStringSubmatch(s, -1) {
		add(m[1])
	}
	return out
}
