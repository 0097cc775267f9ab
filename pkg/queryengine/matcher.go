package queryengine

import (
	"crypto/sha256"
	"encoding/hex"
)

// Matcher accumulates source texts and reports which of its Compiler's
// queries are referenced by them. It is single-threaded and deterministic:
// every operation on a single Matcher must come from one goroutine at a
// time (the WorkerPool gives each worker its own Matcher precisely to avoid
// needing to share one across goroutines).
//
// Matchers hold a non-owning reference to the compiled-query snapshot handed
// to them at creation; they must not outlive the Compiler that produced it.
type Matcher struct {
	queries map[string]CompiledQuery

	sources    []string        // raw + comment-stripped source texts, in add order
	sourceKeys map[string]bool // dedup key -> seen, keyed on content hash

	matched map[string]struct{} // monotonically growing set of matched query strings

	prefilter *prefilter
}

// newMatcher constructs a Matcher over a compiled-query snapshot. Unexported:
// callers get one through Compiler.NewMatcher or the async facade.
func newMatcher(queries map[string]CompiledQuery) *Matcher {
	return &Matcher{
		queries:    queries,
		sourceKeys: make(map[string]bool),
		matched:    make(map[string]struct{}),
		prefilter:  newPrefilter(queries),
	}
}

// AddSource deduplicates and stores two entries for text: the raw copy, and
// a comment-stripped copy. Comment stripping is intentionally lexical and
// imperfect — see stripComments — so both copies are kept and matching
// either suffices. Adding the same text twice, or two texts whose
// comment-stripped forms coincide, is equivalent to adding either once.
func (m *Matcher) AddSource(text string) {
	m.addOne(text)
	m.addOne(stripComments(text))
}

func (m *Matcher) addOne(text string) {
	key := sourceKey(text)
	if m.sourceKeys[key] {
		return
	}
	m.sourceKeys[key] = true
	m.sources = append(m.sources, text)
}

func sourceKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// FindMatches evaluates every query not yet in the matched set against the
// accumulated source texts. A query's Conditions are tried in order; the
// first Condition whose patterns ALL match some stored source adds the
// query to the matched set, and no further Conditions are evaluated for
// that query (literal dominance: if the literal Condition matches, later
// alias Conditions are never consulted). Pattern-level results are memoized
// for the duration of this call by pattern identity, so a Pattern shared
// across queries (via the Compiler's Pattern Cache) is evaluated against the
// source texts at most once per call.
//
// Safe to call repeatedly: sources added between calls may cause further
// queries to match, but FindMatches never removes a query from the matched
// set (the result set is monotone).
func (m *Matcher) FindMatches() {
	patternResults := make(map[*Pattern]bool)

	evalPattern := func(p *Pattern) bool {
		if r, ok := patternResults[p]; ok {
			return r
		}
		r := p.matchesAny(m.sources)
		patternResults[p] = r
		return r
	}

	hits := m.prefilter.hits(m.sources)

	for name, cq := range m.queries {
		if _, done := m.matched[name]; done {
			continue
		}
		if !m.prefilter.mayMatch(name, hits) {
			continue
		}
		for _, cond := range cq.conditions {
			if conditionMatches(cond, evalPattern) {
				m.matched[name] = struct{}{}
				break
			}
		}
	}
}

func conditionMatches(cond Condition, eval func(*Pattern) bool) bool {
	for _, p := range cond.patterns {
		if !eval(p) {
			return false
		}
	}
	return true
}

// GetMatchedResults returns a direct reference to the internal matched-query
// set. The same map instance is returned across repeated calls on the same
// Matcher (its identity is stable for the Matcher's lifetime); mutations —
// there are none from outside this package — would be visible to later
// callers, so treat the result as read-only.
func (m *Matcher) GetMatchedResults() map[string]struct{} {
	return m.matched
}
