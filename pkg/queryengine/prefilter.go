package queryengine

import "github.com/cloudflare/ahocorasick"

// prefilter is a cheap keyword gate in front of the regex Conditions:
// Aho-Corasick finds every query's necessary literal token across the
// accumulated sources in one linear pass per source, so findMatches can
// skip running a query's regex Conditions entirely when its token provably
// cannot be present.
//
// This is purely a performance optimization. It never changes findMatches'
// result set: every Condition for a query requires that query's leaf-token
// text to appear literally somewhere in its BODY range (see
// CompiledQuery.keyword), so the absence of that token rules out every
// Condition at once.
type prefilter struct {
	keywordOf map[string]string // query name -> required keyword
	keywords  []string          // distinct keywords, index-aligned with matcher
	matcher   *ahocorasick.Matcher
}

func newPrefilter(queries map[string]CompiledQuery) *prefilter {
	pf := &prefilter{keywordOf: make(map[string]string, len(queries))}

	seen := make(map[string]bool)
	for name, cq := range queries {
		kw := cq.keyword()
		pf.keywordOf[name] = kw
		if !seen[kw] {
			seen[kw] = true
			pf.keywords = append(pf.keywords, kw)
		}
	}

	if len(pf.keywords) > 0 {
		pf.matcher = ahocorasick.NewStringMatcher(pf.keywords)
	}
	return pf
}

// hits scans every source exactly once each and returns the set of keywords
// found across all of them.
func (pf *prefilter) hits(sources []string) map[string]bool {
	present := make(map[string]bool, len(pf.keywords))
	if pf.matcher == nil {
		return present
	}
	for _, src := range sources {
		for _, idx := range pf.matcher.Match([]byte(src)) {
			present[pf.keywords[idx]] = true
		}
	}
	return present
}

// mayMatch reports whether query's required keyword was found by hits. A
// false result proves no Condition can match; a true result is not a
// guarantee — the regex Conditions still have to run.
func (pf *prefilter) mayMatch(query string, hits map[string]bool) bool {
	kw, ok := pf.keywordOf[query]
	if !ok {
		return true
	}
	return hits[kw]
}
