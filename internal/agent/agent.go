package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contextos/contextos/internal/config"
	"github.com/contextos/contextos/internal/cqapi"
	"github.com/contextos/contextos/internal/llm"
	"github.com/contextos/contextos/internal/sandbox"
)

// codeLoopThreshold is how many times the same code block may have already
// run before the engine refuses to run it again and instead nudges the
// model toward a final answer — one prior run is enough to call it a
// repeat, so the nudge fires on the second occurrence.
const codeLoopThreshold = 1

// Engine drives one Think-Act-Observe loop per invocation, sequentially
// recursing into sub-agents when the model asks to. An Engine is reusable
// across invocations; all per-run state lives in Run's locals.
type Engine struct {
	adapter        llm.Adapter
	cfg            config.AgentConfig
	sandboxTimeout time.Duration
	logger         *slog.Logger
}

// New builds an Engine. sandboxTimeout bounds every code action's
// wall-clock execution; cfg bounds the loop itself (depth, budget,
// iterations, overall timeout).
func New(adapter llm.Adapter, cfg config.AgentConfig, sandboxTimeout time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{adapter: adapter, cfg: cfg, sandboxTimeout: sandboxTimeout, logger: logger}
}

// Run executes the loop for one goal against one context string, at the
// given recursion depth (0 for the root invocation). It always returns a
// Result; it never returns an error, since every failure mode is itself a
// terminal State.
func (e *Engine) Run(ctx context.Context, goal, contextString string, depth int) *Result {
	start := time.Now()
	deadline := time.Duration(e.cfg.TimeoutMs) * time.Millisecond
	id := uuid.NewString()

	if depth > e.cfg.MaxDepth {
		return e.truncated(id, TruncationDepth, nil, 0, start)
	}

	cq := cqapi.New(contextString, e.logger)
	mem := newCodeMemory()

	var path []ExecutionEntry
	var transcript []string
	consumedTokens := e.adapter.CountTokens(goal) + e.adapter.CountTokens(contextString)
	var subAgentResults []*Result

	box := sandbox.New(cq, e.completionFor(ctx, depth, &consumedTokens, &subAgentResults), e.sandboxTimeout)

	for iteration := 0; ; iteration++ {
		if iteration >= e.cfg.MaxIterations {
			return e.truncated(id, TruncationIterations, path, consumedTokens, start)
		}
		if deadline > 0 && time.Since(start) >= deadline {
			return e.truncated(id, TruncationTimeout, path, consumedTokens, start)
		}
		if e.cfg.MaxTokenBudget > 0 && consumedTokens >= e.cfg.MaxTokenBudget {
			return e.truncated(id, TruncationBudget, path, consumedTokens, start)
		}

		req := llm.Request{
			SystemPrompt: systemPromptFor(e.cfg.BackendName),
			UserMessage:  e.buildUserMessage(goal, contextString, transcript),
		}

		callStart := time.Now()
		resp, err := e.adapter.Complete(ctx, req)
		callMs := time.Since(callStart).Milliseconds()
		if err != nil {
			path = append(path, ExecutionEntry{
				Timestamp:  callStart,
				Action:     "think",
				Input:      goal,
				DurationMs: callMs,
				Error:      err.Error(),
			})
			return &Result{
				ID:            id,
				ExecutionPath: path,
				TotalTokens:   consumedTokens,
				DurationMs:    time.Since(start).Milliseconds(),
				State:         StateFailed,
			}
		}

		consumedTokens += resp.TokensUsed.Total
		action := parseAction(resp.Content)

		switch action.Kind {
		case ActionAnswer:
			path = append(path, ExecutionEntry{
				Timestamp:  callStart,
				Action:     "final",
				Input:      goal,
				Output:     action.Answer,
				TokensUsed: resp.TokensUsed.Total,
				DurationMs: callMs,
			})
			return &Result{
				ID:              id,
				Answer:          action.Answer,
				Confidence:      action.Confidence,
				ExecutionPath:   path,
				TotalTokens:     consumedTokens,
				DurationMs:      time.Since(start).Milliseconds(),
				State:           StateTerminated,
				SubAgentResults: subAgentResults,
			}

		case ActionCode:
			entry, observation := e.runCode(box, mem, action.Code, callStart, resp.TokensUsed.Total)
			path = append(path, entry)
			transcript = append(transcript, observation)

		case ActionRecurse:
			entry, observation, sub := e.runRecurse(ctx, box, cq, depth, action, callStart, resp.TokensUsed.Total)
			path = append(path, entry)
			transcript = append(transcript, observation)
			if sub != nil {
				subAgentResults = append(subAgentResults, sub)
				consumedTokens += sub.TotalTokens
			}
		}
	}
}

func (e *Engine) runCode(box *sandbox.Sandbox, mem *codeMemory, code string, callStart time.Time, thinkTokens int) (ExecutionEntry, string) {
	if mem.Seen(code) >= codeLoopThreshold {
		entry := ExecutionEntry{
			Timestamp:  callStart,
			Action:     "code",
			Input:      code,
			TokensUsed: thinkTokens,
			Error:      "loop detected: repeating yourself",
			DurationMs: time.Since(callStart).Milliseconds(),
		}
		observation := formatObservation("loop", "you appear to be repeating yourself — provide your best answer now")
		return entry, observation
	}

	result := box.Run(code)
	mem.Record(code)

	entry := ExecutionEntry{
		Timestamp:  callStart,
		Action:     "code",
		Input:      code,
		Output:     result.Stdout,
		TokensUsed: thinkTokens,
		DurationMs: time.Since(callStart).Milliseconds(),
		Error:      result.Error,
	}

	if result.Error != "" {
		return entry, formatObservation("code", "error: "+result.Error)
	}
	return entry, formatObservation("code", describeCodeResult(result))
}

func describeCodeResult(result *sandbox.Result) string {
	var b strings.Builder
	if result.Stdout != "" {
		b.WriteString("stdout: " + strings.TrimRight(result.Stdout, "\n") + "\n")
	}
	if result.ReturnValue != nil {
		fmt.Fprintf(&b, "return value: %v\n", result.ReturnValue)
	}
	if len(result.Variables) > 0 {
		fmt.Fprintf(&b, "variables: %v\n", result.Variables)
	}
	if b.Len() == 0 {
		return "no output"
	}
	return strings.TrimRight(b.String(), "\n")
}

func (e *Engine) runRecurse(ctx context.Context, box *sandbox.Sandbox, cq *cqapi.CQAPI, depth int, action Action, callStart time.Time, thinkTokens int) (ExecutionEntry, string, *Result) {
	subContext := e.resolveSubContext(box, cq, action.SubContextExpr)

	sub := e.Run(ctx, action.SubGoal, subContext, depth+1)

	entry := ExecutionEntry{
		Timestamp:  callStart,
		Action:     "recurse",
		Input:      action.SubGoal,
		Output:     fmt.Sprintf("[sub-agent %s] %s", sub.ID, sub.Answer),
		TokensUsed: thinkTokens + sub.TotalTokens,
		DurationMs: time.Since(callStart).Milliseconds(),
	}
	if sub.State == StateFailed {
		entry.Error = "sub-agent failed"
	}

	observation := formatObservation("recurse", fmt.Sprintf("sub-agent for %q returned: %s", action.SubGoal, sub.Answer))
	return entry, observation, sub
}

// resolveSubContext evaluates expr (if any) against the parent's CQAPI
// handle inside a throwaway sandbox run to derive a narrower context
// string for a sub-agent. Any failure — no expression, a sandbox error, or
// a non-string result — falls back to the parent's full context.
func (e *Engine) resolveSubContext(box *sandbox.Sandbox, cq *cqapi.CQAPI, expr string) string {
	full := cq.Content()
	if strings.TrimSpace(expr) == "" {
		return full
	}
	result := box.Run(expr)
	if result.Error != "" {
		return full
	}
	if s, ok := result.ReturnValue.(string); ok && s != "" {
		return s
	}
	return full
}

// completionFor builds the CompletionFunc a sandbox injects as the `rae`
// global, letting sandboxed code trigger sub-agent recursion directly
// instead of only via the explicit recurse action. subContextExpr here is
// already a resolved string, not an expression to evaluate.
func (e *Engine) completionFor(ctx context.Context, depth int, consumedTokens *int, subAgentResults *[]*Result) sandbox.CompletionFunc {
	return func(subGoal, subContextExpr string) (map[string]interface{}, error) {
		sub := e.Run(ctx, subGoal, subContextExpr, depth+1)
		*subAgentResults = append(*subAgentResults, sub)
		*consumedTokens += sub.TotalTokens
		return map[string]interface{}{
			"id":         sub.ID,
			"answer":     sub.Answer,
			"confidence": sub.Confidence,
			"state":      string(sub.State),
		}, nil
	}
}

func (e *Engine) buildUserMessage(goal, contextString string, transcript []string) string {
	var b strings.Builder
	b.WriteString("Goal: " + goal + "\n\nContext:\n" + contextString + "\n")
	for _, t := range transcript {
		b.WriteString("\n" + t)
	}
	return b.String()
}

func (e *Engine) truncated(id string, reason TruncationReason, path []ExecutionEntry, tokens int, start time.Time) *Result {
	return &Result{
		ID:               id,
		ExecutionPath:    path,
		TotalTokens:      tokens,
		DurationMs:       time.Since(start).Milliseconds(),
		State:            StateTruncated,
		Truncated:        true,
		TruncationReason: reason,
	}
}
