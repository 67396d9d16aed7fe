package rank

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/contextos/contextos/internal/chunk"
	"github.com/contextos/contextos/internal/config"
	"github.com/contextos/contextos/internal/embed"
	"github.com/contextos/contextos/internal/gitignore"
	"github.com/contextos/contextos/internal/graph"
	"github.com/contextos/contextos/internal/store"
)

// minGoalTokenLength drops goal tokens shorter than this many characters,
// overridable via Weights.MinTokenLength.
const minGoalTokenLength = 4

var goalTokenPattern = regexp.MustCompile(`[A-Za-z0-9_]+`)

// Weights are the per-signal multipliers used to combine lexical,
// structural, and vector scores into the final score. Callers are expected
// to have validated that they sum to 1.0 (internal/config.Validate does).
type Weights struct {
	Lexical        float64
	Structural     float64
	Vector         float64
	MinTokenLength int
}

// vectorScorer is the narrow slice of store.VectorStore the ranker needs.
type vectorScorer interface {
	Search(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error)
}

// Ranker computes RankedFile lists for a goal against a candidate universe
// of chunked files, combining lexical, structural, and vector signals.
type Ranker struct {
	graph    *graph.Graph
	vectors  vectorScorer
	embedder embed.Embedder
	weights  Weights
}

// New constructs a Ranker. vectors and embedder may be nil: the vector
// signal then degrades to 0 for every candidate, matching the spec's
// "embedding provider unavailable" degradation contract.
func New(g *graph.Graph, vectors store.VectorStore, embedder embed.Embedder, weights Weights) *Ranker {
	r := &Ranker{graph: g, embedder: embedder, weights: weights}
	if vectors != nil {
		r.vectors = vectors
	}
	return r
}

// Rank scores every candidate in opts.Files and returns them ordered by
// final score descending, ties broken lexicographically on path. Files
// whose final score is zero are dropped.
func (r *Ranker) Rank(ctx context.Context, opts Options) ([]RankedFile, error) {
	minLen := r.weights.MinTokenLength
	if minLen <= 0 {
		minLen = minGoalTokenLength
	}
	goalTokens := tokenizeGoal(opts.Goal, minLen)

	vecScores := r.vectorScores(ctx, opts.Goal)
	structural := r.structuralScores(opts.TargetFile, opts.RecentlyChanged)

	results := make([]RankedFile, 0, len(opts.Files))
	for path, chunks := range opts.Files {
		score := Score{
			Lexical:    lexicalScore(path, chunks, goalTokens),
			Structural: structural[path],
			Vector:     maxVectorScore(chunks, vecScores),
		}
		score.Final = r.weights.Lexical*score.Lexical +
			r.weights.Structural*score.Structural +
			r.weights.Vector*score.Vector

		if ruleExcludes(path, opts.Rules) {
			score.Final = 0
		}
		if score.Final == 0 {
			continue
		}

		results = append(results, RankedFile{Path: path, Score: score, Chunks: chunks})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score.Final != results[j].Score.Final {
			return results[i].Score.Final > results[j].Score.Final
		}
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// structuralScores computes distanceScores anchored on targetFile, or (when
// targetFile is empty) the best distanceScores(g) over every g in
// recentlyChanged. Returns an empty map when neither anchor is available.
func (r *Ranker) structuralScores(targetFile string, recentlyChanged []string) map[string]float64 {
	if r.graph == nil {
		return map[string]float64{}
	}
	if targetFile != "" {
		return r.graph.DistanceScores(targetFile)
	}
	if len(recentlyChanged) == 0 {
		return map[string]float64{}
	}

	best := map[string]float64{}
	for _, g := range recentlyChanged {
		for path, score := range r.graph.DistanceScores(g) {
			if score > best[path] {
				best[path] = score
			}
		}
	}
	return best
}

// vectorScores embeds the goal and queries the vector store, returning a
// chunk-id → cosine-similarity map. Returns nil if no embedder/store is
// configured or the goal fails to embed — callers then see a 0 vector
// score for every candidate, matching the lexical/structural-only
// degradation the spec requires.
func (r *Ranker) vectorScores(ctx context.Context, goal string) map[string]float64 {
	if r.embedder == nil || r.vectors == nil || strings.TrimSpace(goal) == "" {
		return nil
	}

	vec, err := r.embedder.Embed(ctx, goal)
	if err != nil {
		return nil
	}

	results, err := r.vectors.Search(ctx, vec, 500)
	if err != nil {
		return nil
	}

	scores := make(map[string]float64, len(results))
	for _, res := range results {
		scores[res.ID] = float64(res.Score)
	}
	return scores
}

func maxVectorScore(chunks []*chunk.Chunk, scores map[string]float64) float64 {
	if scores == nil {
		return 0
	}
	var best float64
	for _, c := range chunks {
		if s, ok := scores[c.ID]; ok && s > best {
			best = s
		}
	}
	return best
}

func ruleExcludes(path string, rules []config.Constraint) bool {
	for _, rule := range rules {
		if rule.Scope == "" {
			continue
		}
		if gitignore.MatchesAnyPattern(path, []string{rule.Scope}) {
			return true
		}
	}
	return false
}

func tokenizeGoal(goal string, minLen int) []string {
	raw := goalTokenPattern.FindAllString(strings.ToLower(goal), -1)
	seen := make(map[string]struct{}, len(raw))
	var tokens []string
	for _, tok := range raw {
		if len(tok) < minLen {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	return tokens
}

func lexicalScore(path string, chunks []*chunk.Chunk, goalTokens []string) float64 {
	if len(goalTokens) == 0 {
		return 0
	}

	var haystack strings.Builder
	haystack.WriteString(strings.ToLower(path))
	for _, c := range chunks {
		for _, sym := range c.Symbols {
			haystack.WriteByte(' ')
			haystack.WriteString(strings.ToLower(sym.Name))
		}
		haystack.WriteByte(' ')
		haystack.WriteString(strings.ToLower(c.Content))
	}
	text := haystack.String()

	matched := 0
	for _, tok := range goalTokens {
		if strings.Contains(text, tok) {
			matched++
		}
	}
	return float64(matched) / float64(len(goalTokens))
}
