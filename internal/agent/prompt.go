package agent

import "fmt"

const baseSystemPrompt = `You are an autonomous coding agent answering a developer's goal using the provided context.

Respond with exactly one of the following, as a fenced block:

` + "```answer" + `
{"answer": "...", "confidence": 0.0-1.0}
` + "```" + `

` + "```code" + `
<JavaScript, executed against a read-only ctx handle over the context>
` + "```" + `

` + "```recurse" + `
{"subGoal": "...", "subContext": "<optional expression evaluated against ctx>"}
` + "```" + `

Use code to inspect the context via ctx (length, lines, find, grep, slice, getFunction, getClass, getOutline, listFiles, getFile). Use recurse to delegate a narrower sub-goal. Use answer once you are confident.`

// systemPromptFor returns the system prompt for a named backend. Unknown
// backend names fall back to the default prompt — backendName only
// changes tone/framing, never the action grammar itself.
func systemPromptFor(backendName string) string {
	switch backendName {
	case "concise":
		return baseSystemPrompt + "\n\nBe terse. Prefer a direct answer over exploration when the context already contains enough information."
	case "thorough":
		return baseSystemPrompt + "\n\nPrefer inspecting the context with code before answering, even when you believe you already know the answer."
	default:
		return baseSystemPrompt
	}
}

func formatObservation(label, body string) string {
	return fmt.Sprintf("Observation (%s): %s", label, body)
}
