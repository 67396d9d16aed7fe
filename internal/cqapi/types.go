// Package cqapi implements the Context Query API: a read-only, pure-function
// surface over an assembled context string. Every operation is
// deterministic and does no I/O — the context string is the only input.
package cqapi

// GrepMatch is one line matched by Grep, 1-indexed.
type GrepMatch struct {
	Line    int    `json:"line"`
	Content string `json:"content"`
}

// OutlineItem describes one top-level declaration surfaced by GetOutline.
type OutlineItem struct {
	Type      string        `json:"type"`
	Name      string        `json:"name"`
	Signature string        `json:"signature"`
	StartLine int           `json:"start_line"`
	EndLine   int           `json:"end_line"`
	Children  []OutlineItem `json:"children,omitempty"`
}

// File is one section of a multi-file context, as produced by splitting on
// file-marker lines.
type File struct {
	Path    string
	Content string
}
