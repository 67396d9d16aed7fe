package sandbox

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/contextos/contextos/internal/cqapi"
)

// Sandbox is a single-threaded, cooperative JavaScript executor. State
// (the vars object, console buffer) persists across Run calls on the same
// Sandbox until Reset wipes it.
type Sandbox struct {
	mu         sync.Mutex
	vm         *goja.Runtime
	stdout     *strings.Builder
	cq         *cqapi.CQAPI
	completion CompletionFunc
	timeout    time.Duration
}

// New builds a Sandbox bound to cq (the context the CQAPI handle queries)
// and, optionally, a completion capability the RAE injects for recursion.
// timeout bounds every Run call's wall-clock execution time.
func New(cq *cqapi.CQAPI, completion CompletionFunc, timeout time.Duration) *Sandbox {
	s := &Sandbox{cq: cq, completion: completion, timeout: timeout}
	s.Reset()
	return s
}

// Reset wipes all state and recreates a fresh restricted runtime.
func (s *Sandbox) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	stdout := &strings.Builder{}
	vm.Set("console", &consoleBridge{out: stdout})
	bridge := &cqapiBridge{cq: s.cq}
	vm.Set("ctx", bridge)
	vm.Set("context", bridge)
	vm.Set("vars", map[string]interface{}{})
	if s.completion != nil {
		vm.Set("rae", &raeBridge{fn: s.completion})
	}

	s.vm = vm
	s.stdout = stdout
}

// Run validates code against the deny-list, then executes it under the
// configured timeout. Deny-list rejections and script-level runtime
// errors are both non-fatal: they surface as Result.Error for the caller
// (typically the RAE) to observe.
func (s *Sandbox) Run(code string) *Result {
	if violation := Validate(code); violation != "" {
		return &Result{Error: "blocked: " + violation}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	timer := time.AfterFunc(s.timeout, func() {
		s.vm.Interrupt("execution timeout exceeded")
	})
	defer timer.Stop()

	start := time.Now()
	s.stdout.Reset()
	val, err := s.vm.RunString(code)
	s.vm.ClearInterrupt()
	elapsed := time.Since(start)

	if err != nil {
		result := &Result{Stdout: s.stdout.String(), DurationMs: elapsed.Milliseconds()}
		if _, timedOut := err.(*goja.InterruptedError); timedOut {
			result.Error = fmt.Sprintf("execution timed out after %s", s.timeout)
		} else {
			result.Error = err.Error()
		}
		return result
	}

	return &Result{
		Stdout:      s.stdout.String(),
		ReturnValue: exportValue(val),
		Variables:   exportVars(s.vm.Get("vars")),
		DurationMs:  elapsed.Milliseconds(),
	}
}

func exportValue(v goja.Value) interface{} {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

func exportVars(v goja.Value) map[string]interface{} {
	if v == nil {
		return nil
	}
	m, ok := v.Export().(map[string]interface{})
	if !ok {
		return nil
	}
	return m
}

// consoleBridge backs the `console` global; console.log captures its
// arguments into the sandbox's stdout buffer, space-joined and newline
// terminated, the way Node's console.log formats them.
type consoleBridge struct {
	out *strings.Builder
}

func (c *consoleBridge) Log(args ...interface{}) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	c.out.WriteString(strings.Join(parts, " "))
	c.out.WriteByte('\n')
}

// raeBridge backs the `rae` global's completion capability.
type raeBridge struct {
	fn CompletionFunc
}

func (r *raeBridge) Completion(subGoal, subContextExpr string) (map[string]interface{}, error) {
	return r.fn(subGoal, subContextExpr)
}

// cqapiBridge exposes *cqapi.CQAPI's read-only operations to sandboxed
// code under camelCase names (via goja.UncapFieldNameMapper).
type cqapiBridge struct {
	cq *cqapi.CQAPI
}

func (b *cqapiBridge) Length() int          { return b.cq.Length() }
func (b *cqapiBridge) Lines() int           { return b.cq.Lines() }
func (b *cqapiBridge) Find(needle string) int { return b.cq.Find(needle) }
func (b *cqapiBridge) FindAll(needle string) []int { return b.cq.FindAll(needle) }

func (b *cqapiBridge) Search(pattern string) interface{} {
	m, ok := b.cq.Search(pattern)
	if !ok {
		return nil
	}
	return m
}

func (b *cqapiBridge) Grep(pattern string) (interface{}, error) {
	matches, err := b.cq.Grep(pattern)
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (b *cqapiBridge) Slice(start, end int) string        { return b.cq.Slice(start, end) }
func (b *cqapiBridge) GetLines(start, end int) string     { return b.cq.GetLines(start, end) }
func (b *cqapiBridge) Head(n int) string                  { return b.cq.Head(n) }
func (b *cqapiBridge) Tail(n int) string                  { return b.cq.Tail(n) }

func (b *cqapiBridge) GetFunction(name string) interface{} {
	body, ok := b.cq.GetFunction(name)
	if !ok {
		return nil
	}
	return body
}

func (b *cqapiBridge) GetClass(name string) interface{} {
	body, ok := b.cq.GetClass(name)
	if !ok {
		return nil
	}
	return body
}

func (b *cqapiBridge) GetImports() []string     { return b.cq.GetImports() }
func (b *cqapiBridge) GetExports() []string     { return b.cq.GetExports() }
func (b *cqapiBridge) GetOutline() interface{}  { return b.cq.GetOutline() }
func (b *cqapiBridge) ListFiles() []string      { return b.cq.ListFiles() }

func (b *cqapiBridge) GetFile(path string) interface{} {
	body, ok := b.cq.GetFile(path)
	if !ok {
		return nil
	}
	return body
}
