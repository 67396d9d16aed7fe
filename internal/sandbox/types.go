// Package sandbox implements the Sandbox component: a single-threaded,
// cooperative executor for short JavaScript snippets, with a CQAPI handle
// injected and everything else — filesystem, network, timers, dynamic
// module loading, host-runtime reflection — unavailable by construction.
package sandbox

// Result is what one Run call returns on success.
type Result struct {
	Stdout      string                 `json:"stdout"`
	ReturnValue interface{}            `json:"return_value"`
	Variables   map[string]interface{} `json:"variables"`
	DurationMs  int64                  `json:"duration_ms"`
}

// CompletionFunc is the capability handle injected as `rae.completion`,
// only when the caller is the Recursive Agent Engine recursing into a
// sub-goal. It never imports the agent package directly, to keep the
// dependency edge one-directional (agent depends on sandbox, not the
// reverse); the result is passed through as a plain JSON-shaped value.
type CompletionFunc func(subGoal, subContextExpr string) (map[string]interface{}, error)
