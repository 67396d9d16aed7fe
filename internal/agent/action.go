package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	answerFence  = regexp.MustCompile("(?s)```answer\\s*\\n(.*?)\\n```")
	recurseFence = regexp.MustCompile("(?s)```recurse\\s*\\n(.*?)\\n```")
	codeFence    = regexp.MustCompile("(?s)```(?:code|javascript|typescript|js|ts)\\s*\\n(.*?)\\n```")
)

var implicitAnswerMarkers = []string{
	"The answer is",
	"Based on my analysis",
	"I found that",
	"The result is",
}

var codeLikePrefixes = []string{"let ", "const ", "var ", "function ", "ctx.", "context."}

type answerPayload struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

type recursePayload struct {
	SubGoal    string `json:"subGoal"`
	SubContext string `json:"subContext"`
}

// parseAction scans an LLM response for the action grammar: an ```answer```
// fenced block takes priority over ```recurse```, which takes priority over
// ```code``` (and its language aliases). If none match, a set of implicit
// heuristics decides between an implicit Answer and an implicit Code
// action.
func parseAction(text string) Action {
	if m := answerFence.FindStringSubmatch(text); m != nil {
		return parseAnswerBlock(m[1])
	}
	if m := recurseFence.FindStringSubmatch(text); m != nil {
		return parseRecurseBlock(m[1])
	}
	if m := codeFence.FindStringSubmatch(text); m != nil {
		return Action{Kind: ActionCode, Code: strings.TrimSpace(m[1])}
	}
	return implicitAction(text)
}

func parseAnswerBlock(body string) Action {
	var payload answerPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &payload); err == nil && payload.Answer != "" {
		return Action{Kind: ActionAnswer, Answer: payload.Answer, Confidence: payload.Confidence}
	}
	return Action{Kind: ActionAnswer, Answer: strings.TrimSpace(body), Confidence: 0.8}
}

func parseRecurseBlock(body string) Action {
	var payload recursePayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &payload); err == nil && payload.SubGoal != "" {
		return Action{Kind: ActionRecurse, SubGoal: payload.SubGoal, SubContextExpr: payload.SubContext}
	}
	return Action{Kind: ActionRecurse, SubGoal: strings.TrimSpace(body)}
}

func implicitAction(text string) Action {
	trimmed := strings.TrimSpace(text)
	for _, marker := range implicitAnswerMarkers {
		if strings.Contains(text, marker) {
			return Action{Kind: ActionAnswer, Answer: trimmed, Confidence: 0.6}
		}
	}
	for _, prefix := range codeLikePrefixes {
		if strings.Contains(text, prefix) {
			return Action{Kind: ActionCode, Code: extractCodeLikeLines(text)}
		}
	}
	return Action{Kind: ActionAnswer, Answer: trimmed, Confidence: 0.5}
}

// extractCodeLikeLines returns every line from the first line containing
// any recognized code prefix through the end of the text.
func extractCodeLikeLines(text string) string {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		for _, prefix := range codeLikePrefixes {
			if strings.Contains(line, prefix) {
				start = i
				break
			}
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(strings.Join(lines[start:], "\n"))
}
