// Package queryengine implements the API Query Engine: a compiler that turns
// dotted API names like "storage.local.get" into lexical patterns, and a
// matcher that reports which of a set of such queries occur in a pile of
// extension script sources.
package queryengine

import (
	"regexp"
	"strings"
)

// Query is a dotted API name split into its non-empty parts, e.g.
// "storage.local.get" -> ["storage", "local", "get"].
type Query struct {
	raw   string
	parts []string
}

// NewQuery splits q at "." into a Query. The compiler never rejects a query:
// any non-empty string (even one with regex metacharacters) produces a valid
// Query, since metacharacters in parts are taken literally by the surrounding
// pattern group.
func NewQuery(q string) Query {
	return Query{raw: q, parts: strings.Split(q, ".")}
}

// String returns the original dotted query text.
func (q Query) String() string { return q.raw }

// Condition is a conjunction of compiled patterns that together imply the
// query occurs. A Condition matches a Matcher's sources iff every one of its
// patterns matches at least one of them.
type Condition struct {
	// name documents which alias tier this condition represents, for
	// diagnostics only; it has no effect on matching.
	name     string
	patterns []*Pattern
}

// CompiledQuery is the ordered list of alternative Conditions for one Query.
// The query matches if any Condition matches; Conditions are evaluated in
// order and the first one that matches short-circuits the rest.
type CompiledQuery struct {
	query      Query
	conditions []Condition
}

// compile turns a Query into a CompiledQuery, interning every pattern source
// string through cache so identical sub-patterns across queries share one
// compiled Pattern and one per-source match result.
func compile(q Query, cache *PatternCache) CompiledQuery {
	parts := q.parts
	n := len(parts)
	hasRoot := parts[0] == "browser" || parts[0] == "chrome"

	cq := CompiledQuery{query: q}

	// 1. Literal: always emitted.
	cq.conditions = append(cq.conditions, Condition{
		name:     "literal",
		patterns: []*Pattern{cache.intern(anyPattern(body(parts, 0, n)))},
	})

	// 2. First part aliased: only if n >= 2 and the query doesn't itself
	// start at a root (a query starting "browser."/"chrome." demands the
	// literal root; an alias assigned from the root shouldn't satisfy it).
	if n >= 2 && !hasRoot {
		cq.conditions = append(cq.conditions, Condition{
			name: "first-part-aliased",
			patterns: []*Pattern{
				cache.intern(rhsPattern(hostDotFrag + regexp.QuoteMeta(parts[0]))),
				cache.intern(dotPattern(body(parts, 1, n))),
			},
		})
	}

	// 3. First two parts aliased: only if n >= 3.
	if n >= 3 {
		cq.conditions = append(cq.conditions, Condition{
			name: "first-two-aliased",
			patterns: []*Pattern{
				cache.intern(rhsPattern(body(parts, 0, 2))),
				cache.intern(dotPattern(body(parts, 2, n))),
			},
		})
	}

	// 4. First three parts aliased: only if n >= 4. Conditions deeper than
	// three-part aliases are deliberately not emitted, to limit noise.
	if n >= 4 {
		cq.conditions = append(cq.conditions, Condition{
			name: "first-three-aliased",
			patterns: []*Pattern{
				cache.intern(rhsPattern(body(parts, 0, 3))),
				cache.intern(dotPattern(body(parts, 3, n))),
			},
		})
	}

	return cq
}

// body builds BODY(from..to) (half-open, 0-indexed over parts): the literal
// parts from..to-1 joined by dotFrag, each wrapped as a non-capturing group.
func body(parts []string, from, to int) string {
	wrapped := make([]string, 0, to-from)
	for _, p := range parts[from:to] {
		wrapped = append(wrapped, `(?:`+regexp.QuoteMeta(p)+`)`)
	}
	return strings.Join(wrapped, dotFrag)
}

// keyword returns the one lexical token that must literally appear in a
// source text for any of this query's conditions to have a chance of
// matching it. Every condition's BODY ranges end at the query's last part,
// so that part's literal text is a necessary (not sufficient) substring
// regardless of which condition eventually matches. Used by the prefilter to
// skip queries whose token provably cannot be present, never to decide a
// query matches.
func (cq CompiledQuery) keyword() string {
	parts := cq.query.parts
	return parts[len(parts)-1]
}
