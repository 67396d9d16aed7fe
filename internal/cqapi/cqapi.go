package cqapi

import (
	"log/slog"
	"regexp"
	"strings"
)

// maxRegexMatches caps every regex scan: a pattern matching more than this
// many times returns only the first maxRegexMatches hits, with a warning
// logged rather than spending unbounded time on a pathological pattern.
const maxRegexMatches = 1000

var fileMarkerPattern = regexp.MustCompile(`(?m)^=== FILE: (.+) ===$`)

var (
	importPatterns = []*regexp.Regexp{
		regexp.MustCompile(`import\s+.*?\s+from\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`),
		regexp.MustCompile(`from\s+([\w.]+)\s+import`),
		regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`),
	}
	exportPatterns = []*regexp.Regexp{
		regexp.MustCompile(`export\s+(?:default\s+)?(?:async\s+)?function\s+(\w+)`),
		regexp.MustCompile(`export\s+(?:default\s+)?class\s+(\w+)`),
		regexp.MustCompile(`export\s+const\s+(\w+)`),
		regexp.MustCompile(`^func\s+([A-Z]\w*)\s*\(`),
	}
	functionPattern = regexp.MustCompile(`(?m)^(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\([^)]*\)|^func\s+(\w+)\s*\(`)
	classPattern    = regexp.MustCompile(`(?m)^(?:export\s+)?class\s+(\w+)|^type\s+(\w+)\s+struct`)
)

// CQAPI is a read-only query surface over a single immutable context
// string. All methods are deterministic and safe for concurrent use.
type CQAPI struct {
	content string
	lines   []string
	logger  *slog.Logger
}

// New wraps content for querying. A nil logger falls back to slog.Default().
func New(content string, logger *slog.Logger) *CQAPI {
	if logger == nil {
		logger = slog.Default()
	}
	return &CQAPI{
		content: content,
		lines:   strings.Split(content, "\n"),
		logger:  logger,
	}
}

// Content returns the full, unmodified context string the handle queries.
func (c *CQAPI) Content() string { return c.content }

// Length returns the byte length of the context.
func (c *CQAPI) Length() int { return len(c.content) }

// Lines returns the total number of lines.
func (c *CQAPI) Lines() int { return len(c.lines) }

// Find returns the byte offset of needle's first occurrence, or -1.
func (c *CQAPI) Find(needle string) int { return strings.Index(c.content, needle) }

// FindAll returns every byte offset where needle occurs, capped at
// maxRegexMatches occurrences.
func (c *CQAPI) FindAll(needle string) []int {
	if needle == "" {
		return nil
	}
	var offsets []int
	start := 0
	for len(offsets) < maxRegexMatches {
		idx := strings.Index(c.content[start:], needle)
		if idx < 0 {
			break
		}
		offsets = append(offsets, start+idx)
		start += idx + len(needle)
	}
	if len(offsets) == maxRegexMatches {
		c.logger.Warn("cqapi.FindAll: match cap reached, returning partial results", "needle", needle, "cap", maxRegexMatches)
	}
	return offsets
}

// Search returns the first regex match, or nil if none.
func (c *CQAPI) Search(pattern string) (string, bool) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		c.logger.Warn("cqapi.Search: invalid pattern", "pattern", pattern, "error", err)
		return "", false
	}
	m := re.FindString(c.content)
	if m == "" && !re.MatchString(c.content) {
		return "", false
	}
	return m, true
}

// Grep returns every line matching pattern, 1-indexed, capped at
// maxRegexMatches lines.
func (c *CQAPI) Grep(pattern string) ([]GrepMatch, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	var matches []GrepMatch
	for i, line := range c.lines {
		if len(matches) >= maxRegexMatches {
			c.logger.Warn("cqapi.Grep: match cap reached, returning partial results", "pattern", pattern, "cap", maxRegexMatches)
			break
		}
		if re.MatchString(line) {
			matches = append(matches, GrepMatch{Line: i + 1, Content: line})
		}
	}
	return matches, nil
}

// Slice returns content[start:end], byte-indexed, end exclusive. end<0
// means "to the end of the content".
func (c *CQAPI) Slice(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end < 0 || end > len(c.content) {
		end = len(c.content)
	}
	if start >= end {
		return ""
	}
	return c.content[start:end]
}

// GetLines returns lines [startLine, endLine], 1-indexed and inclusive.
func (c *CQAPI) GetLines(startLine, endLine int) string {
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(c.lines) {
		endLine = len(c.lines)
	}
	if startLine > endLine {
		return ""
	}
	return strings.Join(c.lines[startLine-1:endLine], "\n")
}

// Head returns the first n lines.
func (c *CQAPI) Head(n int) string { return c.GetLines(1, n) }

// Tail returns the last n lines.
func (c *CQAPI) Tail(n int) string {
	total := len(c.lines)
	start := total - n + 1
	if start < 1 {
		start = 1
	}
	return c.GetLines(start, total)
}

// GetFunction attempts to extract the named top-level function by a
// brace-balance scan starting at its declaration line. Returns "" and false
// on miss.
func (c *CQAPI) GetFunction(name string) (string, bool) {
	return c.extractBlock(name, functionPattern)
}

// GetClass attempts to extract the named top-level class/struct the same
// way GetFunction does. Returns "" and false on miss.
func (c *CQAPI) GetClass(name string) (string, bool) {
	return c.extractBlock(name, classPattern)
}

func (c *CQAPI) extractBlock(name string, declPattern *regexp.Regexp) (string, bool) {
	for i, line := range c.lines {
		loc := declPattern.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		if !declNameMatches(line, loc, name) {
			continue
		}
		return c.scanBraceBlock(i), true
	}
	return "", false
}

func declNameMatches(line string, loc []int, name string) bool {
	for g := 1; g*2+1 < len(loc); g++ {
		if loc[g*2] < 0 {
			continue
		}
		if line[loc[g*2]:loc[g*2+1]] == name {
			return true
		}
	}
	return false
}

// scanBraceBlock returns the lines from startLine through the line where
// the brace depth opened on startLine returns to zero. If the declaration
// line never opens a brace (e.g. a one-line signature with no body visible
// in this context), only that line is returned.
func (c *CQAPI) scanBraceBlock(startLine int) string {
	depth := 0
	opened := false
	end := startLine
	for i := startLine; i < len(c.lines); i++ {
		for _, r := range c.lines[i] {
			switch r {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
			}
		}
		end = i
		if opened && depth <= 0 {
			break
		}
	}
	return strings.Join(c.lines[startLine:end+1], "\n")
}

// GetImports scans for import-style statements using language-agnostic
// fallback patterns, returning the referenced module/source strings in
// order of first appearance, deduplicated.
func (c *CQAPI) GetImports() []string { return scanCaptures(c.content, importPatterns, c.logger, "GetImports") }

// GetExports scans for export-style declarations the same way GetImports
// scans for imports.
func (c *CQAPI) GetExports() []string { return scanCaptures(c.content, exportPatterns, c.logger, "GetExports") }

func scanCaptures(content string, patterns []*regexp.Regexp, logger *slog.Logger, op string) []string {
	seen := make(map[string]struct{})
	var out []string
	total := 0
	for _, re := range patterns {
		matches := re.FindAllStringSubmatch(content, maxRegexMatches)
		if len(matches) == maxRegexMatches {
			logger.Warn("cqapi: match cap reached, returning partial results", "op", op, "cap", maxRegexMatches)
		}
		for _, m := range matches {
			total++
			if total > maxRegexMatches {
				return out
			}
			if len(m) < 2 || m[1] == "" {
				continue
			}
			if _, dup := seen[m[1]]; dup {
				continue
			}
			seen[m[1]] = struct{}{}
			out = append(out, m[1])
		}
	}
	return out
}

// GetOutline returns every top-level function/class declaration found by
// pattern scan, in file order.
func (c *CQAPI) GetOutline() []OutlineItem {
	var items []OutlineItem
	for i, line := range c.lines {
		if loc := functionPattern.FindStringSubmatchIndex(line); loc != nil {
			name := firstGroup(line, loc)
			if name != "" {
				items = append(items, c.outlineItem("function", name, i))
			}
			continue
		}
		if loc := classPattern.FindStringSubmatchIndex(line); loc != nil {
			name := firstGroup(line, loc)
			if name != "" {
				items = append(items, c.outlineItem("class", name, i))
			}
		}
	}
	return items
}

func (c *CQAPI) outlineItem(kind, name string, lineIdx int) OutlineItem {
	block := c.scanBraceBlock(lineIdx)
	endLine := lineIdx + strings.Count(block, "\n") + 1
	return OutlineItem{
		Type:      kind,
		Name:      name,
		Signature: strings.TrimSpace(c.lines[lineIdx]),
		StartLine: lineIdx + 1,
		EndLine:   endLine,
	}
}

func firstGroup(line string, loc []int) string {
	for g := 1; g*2+1 < len(loc); g++ {
		if loc[g*2] >= 0 {
			return line[loc[g*2]:loc[g*2+1]]
		}
	}
	return ""
}

// ListFiles returns every path named by a file-marker line, in order.
func (c *CQAPI) ListFiles() []string {
	matches := fileMarkerPattern.FindAllStringSubmatch(c.content, maxRegexMatches)
	var out []string
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// GetFile returns the body between path's marker and the next marker (or
// EOF), or "" and false if path has no marker.
func (c *CQAPI) GetFile(path string) (string, bool) {
	for _, f := range SplitContextToFiles(c.content) {
		if f.Path == path {
			return f.Content, true
		}
	}
	return "", false
}

// SplitContextToFiles splits a marker-delimited context string into its
// File sections. Content with no markers at all yields no files.
func SplitContextToFiles(content string) []File {
	locs := fileMarkerPattern.FindAllStringSubmatchIndex(content, maxRegexMatches)
	if len(locs) == 0 {
		return nil
	}
	files := make([]File, 0, len(locs))
	for i, loc := range locs {
		path := content[loc[2]:loc[3]]
		bodyStart := loc[1]
		if bodyStart < len(content) && content[bodyStart] == '\n' {
			bodyStart++
		}
		bodyEnd := len(content)
		if i+1 < len(locs) {
			bodyEnd = locs[i+1][0]
		}
		body := content[bodyStart:bodyEnd]
		// Merge always appends a trailing "\n" after each file's content so
		// the next marker starts at a line boundary; strip that one back off
		// to recover the original content exactly.
		if strings.HasSuffix(body, "\n") {
			body = body[:len(body)-1]
		}
		files = append(files, File{Path: path, Content: body})
	}
	return files
}

// MergeFilesToContext is the inverse of SplitContextToFiles: it reassembles
// a file list into a single marker-delimited string. A "\n" always follows
// each file's content so a following "=== FILE: ... ===" marker starts at
// the beginning of a line even when the content itself doesn't end in one.
func MergeFilesToContext(files []File) string {
	var b strings.Builder
	for _, f := range files {
		b.WriteString("=== FILE: ")
		b.WriteString(f.Path)
		b.WriteString(" ===\n")
		b.WriteString(f.Content)
		b.WriteString("\n")
	}
	return b.String()
}
