package agent

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// codeMemoryLimit bounds how many distinct code blocks a single RAE
// invocation remembers having executed; the oldest is evicted once a new
// block arrives past the cap.
const codeMemoryLimit = 50

// codeMemory tracks how many times each code block has been executed, so a
// repeated block can be detected as a loop. Backed by an LRU cache rather
// than a plain map: unbounded memory for a long-running loop is exactly
// the failure mode the cap exists to prevent.
type codeMemory struct {
	cache *lru.Cache[string, int]
}

func newCodeMemory() *codeMemory {
	cache, err := lru.New[string, int](codeMemoryLimit)
	if err != nil {
		// codeMemoryLimit is a positive compile-time constant; lru.New only
		// errors on size <= 0.
		panic(err)
	}
	return &codeMemory{cache: cache}
}

// Seen reports how many times hash has been recorded so far.
func (m *codeMemory) Seen(code string) int {
	n, _ := m.cache.Get(shortHash(code))
	return n
}

// Record adds one occurrence of code to the memory.
func (m *codeMemory) Record(code string) {
	h := shortHash(code)
	n, _ := m.cache.Get(h)
	m.cache.Add(h, n+1)
}

// loopDetectionPrefixLen is the number of leading characters hashed for
// loop detection, per the RAE's visited-code contract.
const loopDetectionPrefixLen = 100

// shortHash is a self-contained content hash for loop detection, taken over
// only the first loopDetectionPrefixLen characters of code. It deliberately
// doesn't reuse graph.ContentHash — that hash identifies file content for
// the dependency graph, an unrelated concern.
func shortHash(code string) string {
	if len(code) > loopDetectionPrefixLen {
		code = code[:loopDetectionPrefixLen]
	}
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:8])
}
