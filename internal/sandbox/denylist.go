package sandbox

import "regexp"

// denyRule is one pre-execution rejection pattern. Violation is the string
// the RAE observes when code matches it — a non-fatal result the RAE may
// react to by trying again.
type denyRule struct {
	Violation string
	Pattern   *regexp.Regexp
}

var denyRules = []denyRule{
	{"dynamic module loading (require)", regexp.MustCompile(`\brequire\s*\(`)},
	{"dynamic import", regexp.MustCompile(`\bimport\s*\(`)},
	{"eval", regexp.MustCompile(`\beval\s*\(`)},
	{"Function constructor", regexp.MustCompile(`\bFunction\s*\(|\bnew\s+Function\b`)},
	{"process access", regexp.MustCompile(`\bprocess\b`)},
	{"global access", regexp.MustCompile(`\bglobalThis\b|\bglobal\b`)},
	{"filesystem access", regexp.MustCompile(`\bfs\.\w+|\brequire\(['"]fs['"]\)`)},
	{"child process access", regexp.MustCompile(`\bchild_process\b|\bspawn\s*\(|\bexecSync\s*\(`)},
	{"timers", regexp.MustCompile(`\bsetTimeout\s*\(|\bsetInterval\s*\(|\bsetImmediate\s*\(`)},
	{"buffer constructor", regexp.MustCompile(`\bBuffer\s*\(|\bnew\s+Buffer\b`)},
	{"prototype mutation", regexp.MustCompile(`\.prototype\s*=|\bconstructor\s*=`)},
	{"Reflect.set", regexp.MustCompile(`\bReflect\s*\.\s*set\s*\(`)},
	{"Proxy construction", regexp.MustCompile(`\bnew\s+Proxy\b`)},
	{"reserved identifier access", regexp.MustCompile(`__proto__|__dirname|__filename`)},
	{"module/exports access", regexp.MustCompile(`\bmodule\.exports\b|\bexports\.\w+\s*=`)},
}

// Validate scans code against the deny-list and returns the first
// violation string matched, or "" if code is clean.
func Validate(code string) string {
	for _, rule := range denyRules {
		if rule.Pattern.MatchString(code) {
			return rule.Violation
		}
	}
	return ""
}
