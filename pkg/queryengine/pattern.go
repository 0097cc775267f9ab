package queryengine

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

// matchTimeout bounds a single pattern's evaluation against one source text,
// so a pathological minified/obfuscated source can't hang a worker forever.
const matchTimeout = 5 * time.Second

// Pattern is a compiled regular expression over script source, anchored only
// to lexical context (never to line or file position). Patterns are
// deterministic and side-effect free.
type Pattern struct {
	source string
	re     *regexp2.Regexp
}

// newPattern compiles src. The trailing lookahead some fragments need makes
// RE2 (and so Go's standard regexp package) unable to express them, so
// every pattern is compiled with regexp2's full engine rather than
// attempting an RE2 fast path first.
func newPattern(src string) *Pattern {
	re, err := regexp2.Compile(src, regexp2.None)
	if err != nil {
		// The fragments in this package are fixed and tested; a compile
		// failure here means a future edit broke the composition, not that
		// caller input was bad (query parts are always escaped literally
		// before reaching the fragment templates).
		panic(fmt.Sprintf("queryengine: internal pattern failed to compile: %q: %v", src, err))
	}
	re.MatchTimeout = matchTimeout
	return &Pattern{source: src, re: re}
}

// matchesAny reports whether p matches any of texts.
func (p *Pattern) matchesAny(texts []string) bool {
	for _, t := range texts {
		ok, err := p.re.MatchString(t)
		if err != nil {
			// Timeout or internal regexp2 error: treat as no match for this
			// text rather than failing the whole scan (the engine's
			// operations never fail per spec).
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
