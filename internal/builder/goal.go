package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/contextos/contextos/internal/llm"
)

// goalInferenceConfidenceThreshold is the minimum confidence an LLM
// collaborator's inferred goal must carry before it's accepted over the
// plain file-list fallback.
const goalInferenceConfidenceThreshold = 0.5

const goalInferenceSystemPrompt = `You summarize a code change into a short, one-sentence development goal.
Respond with exactly one JSON object: {"goal": "...", "confidence": 0.0-1.0}. Nothing else.`

type goalInferenceResponse struct {
	Goal       string  `json:"goal"`
	Confidence float64 `json:"confidence"`
}

// inferGoal implements the spec's goal-inference fallback chain: ask the
// VCS collaborator for changed files; if any, optionally ask an LLM
// collaborator to summarize the diff, accepting its answer only at
// confidence >= goalInferenceConfidenceThreshold; otherwise fall back to
// a plain "Modifying: <paths>" description. With no VCS collaborator or no
// changes, the goal is the empty string.
func (b *Builder) inferGoal(ctx context.Context) string {
	if b.vcs == nil {
		return ""
	}

	files, err := b.vcs.StagedFiles(ctx)
	if err != nil || len(files) == 0 {
		if wf, werr := b.vcs.WorkingFiles(ctx); werr == nil {
			files = wf
		}
	}
	if len(files) == 0 {
		return ""
	}

	if b.goalAdapter != nil {
		if goal, ok := b.llmInferredGoal(ctx, files); ok {
			return goal
		}
	}
	return fallbackGoal(files)
}

func (b *Builder) llmInferredGoal(ctx context.Context, files []string) (string, bool) {
	diff, err := b.vcs.StagedDiff(ctx)
	if err != nil || strings.TrimSpace(diff) == "" {
		diff, err = b.vcs.WorkingDiff(ctx)
		if err != nil {
			return "", false
		}
	}

	userMessage := fmt.Sprintf("Project: %s\n\nChanged files: %s\n\nDiff:\n%s", b.projectDescriptor, strings.Join(files, ", "), diff)
	resp, err := b.goalAdapter.Complete(ctx, llm.Request{
		SystemPrompt: goalInferenceSystemPrompt,
		UserMessage:  userMessage,
	})
	if err != nil {
		return "", false
	}

	var parsed goalInferenceResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Content)), &parsed); err != nil {
		return "", false
	}
	if parsed.Confidence < goalInferenceConfidenceThreshold || strings.TrimSpace(parsed.Goal) == "" {
		return "", false
	}
	return parsed.Goal, true
}

// fallbackGoal names the first five changed files, folding the rest into a
// "(+N more)" suffix.
func fallbackGoal(files []string) string {
	const shown = 5
	if len(files) <= shown {
		return "Modifying: " + strings.Join(files, ", ")
	}
	return fmt.Sprintf("Modifying: %s (+%d more)", strings.Join(files[:shown], ", "), len(files)-shown)
}
