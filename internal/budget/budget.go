package budget

import (
	"math"
	"strings"

	"github.com/contextos/contextos/internal/config"
	"github.com/contextos/contextos/internal/rank"
)

const defaultCharsPerToken = 4.0

// truncationMarker is appended whenever the core text alone exceeds the
// budget and has to be cut at a line boundary.
const truncationMarker = "\n... [truncated: core text exceeded token budget]"

// Budgeter packs ranked files and a core text block into a fixed token
// budget, filling whole chunks in rank order and stopping at the first
// chunk that doesn't fit.
type Budgeter struct {
	cfg config.BudgetConfig
}

// New constructs a Budgeter from its configuration.
func New(cfg config.BudgetConfig) *Budgeter {
	return &Budgeter{cfg: cfg}
}

// Pack fills maxTokens (at modelID's chars-per-token ratio) with coreText
// first, then walks rankedFiles in rank order, including whole chunks
// until the first one that doesn't fit the remaining budget, at which
// point packing stops entirely — later chunks are never tried even if
// they're individually smaller. This is a strict prefix of the flattened
// (file, chunk) sequence, so raising maxTokens can only extend that
// prefix: it never removes a chunk a prior, lower-budget call included.
// Skip-and-continue to smaller later chunks was considered but rejected:
// it lets an early chunk that only fits at a higher budget displace a
// later chunk that fit at a lower one, violating that guarantee.
func (b *Budgeter) Pack(rankedFiles []rank.RankedFile, coreText string, rules []config.Constraint, maxTokens int, modelID string) *Result {
	cpt := b.charsPerToken(modelID)

	core, coreTokens, truncated := packCore(coreText, maxTokens, cpt)
	remaining := maxTokens - coreTokens
	if remaining < 0 {
		remaining = 0
	}

	rawTokens := coreTokens
	for _, rf := range rankedFiles {
		for _, c := range rf.Chunks {
			rawTokens += countTokens(c.Content, cpt)
		}
	}

	var files []PackedFile
	packedTokens := coreTokens
outer:
	for _, rf := range rankedFiles {
		pf := PackedFile{Path: rf.Path, Score: rf.Score}
		for _, c := range rf.Chunks {
			ct := countTokens(c.Content, cpt)
			if ct > remaining {
				if len(pf.Chunks) > 0 {
					files = append(files, pf)
					packedTokens += pf.Tokens
				}
				break outer
			}
			pf.Chunks = append(pf.Chunks, c)
			pf.Tokens += ct
			remaining -= ct
		}
		if len(pf.Chunks) == 0 {
			continue
		}
		files = append(files, pf)
		packedTokens += pf.Tokens
	}

	var outRules []config.Constraint
	if b.cfg.IncludeRules {
		outRules = rules
	}

	percentage := 0
	if rawTokens > 0 {
		percentage = int(math.Round(100 * (1 - float64(packedTokens)/float64(rawTokens))))
	}

	return &Result{
		Core:          core,
		CoreTruncated: truncated,
		CoreTokens:    coreTokens,
		Files:         files,
		Rules:         outRules,
		TotalTokens:   packedTokens,
		Savings: Savings{
			RawTokens:    rawTokens,
			PackedTokens: packedTokens,
			Percentage:   percentage,
		},
	}
}

func (b *Budgeter) charsPerToken(modelID string) float64 {
	if b.cfg.CharsPerToken != nil {
		if v, ok := b.cfg.CharsPerToken[modelID]; ok && v > 0 {
			return v
		}
		if v, ok := b.cfg.CharsPerToken["default"]; ok && v > 0 {
			return v
		}
	}
	return defaultCharsPerToken
}

func countTokens(s string, charsPerToken float64) int {
	if s == "" {
		return 0
	}
	return int(math.Ceil(float64(len(s)) / charsPerToken))
}

// packCore returns (possibly truncated) core text, its token count, and
// whether it was truncated. Truncation happens at a line boundary with a
// trailing marker, and the marker's own tokens count against the budget.
func packCore(coreText string, maxTokens int, charsPerToken float64) (string, int, bool) {
	full := countTokens(coreText, charsPerToken)
	if full <= maxTokens {
		return coreText, full, false
	}

	markerTokens := countTokens(truncationMarker, charsPerToken)
	budget := maxTokens - markerTokens
	if budget < 0 {
		budget = 0
	}
	charBudget := int(float64(budget) * charsPerToken)

	lines := strings.Split(coreText, "\n")
	var kept strings.Builder
	for i, line := range lines {
		candidateLen := kept.Len() + len(line)
		if i > 0 {
			candidateLen++
		}
		if candidateLen > charBudget && kept.Len() > 0 {
			break
		}
		if i > 0 {
			kept.WriteByte('\n')
		}
		kept.WriteString(line)
	}

	truncatedText := kept.String() + truncationMarker
	return truncatedText, countTokens(truncatedText, charsPerToken), true
}
