package queryengine

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var sampleQueries = []string{
	"tabs.create",
	"storage.local.get",
	"storage.sync.onChanged.addListener",
	"runtime.sendMessage",
	"cookies.getAll",
}

var sampleSources = []string{
	"chrome.tabs.create({})",
	"browser.storage.local.get(['k'])",
	"chrome.storage.sync.onChanged.addListener(cb)",
	"console.log('no api usage here')",
	"alias = chrome.tabs; alias.create({})",
}

func newPropertyCompiler() *Compiler {
	c := NewCompiler()
	for _, q := range sampleQueries {
		_ = c.AddQuery(q)
	}
	return c
}

// TestProperty_Monotonicity: findMatches never shrinks the matched set
// across a sequence of addSource/findMatches calls.
func TestProperty_Monotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("matched set is non-decreasing across addSource/findMatches calls", prop.ForAll(
		func(indices []int) bool {
			c := newPropertyCompiler()
			m := c.NewMatcher()

			prevSize := 0
			for _, idx := range indices {
				m.AddSource(sampleSources[idx%len(sampleSources)])
				m.FindMatches()
				results := m.GetMatchedResults()
				if len(results) < prevSize {
					return false
				}
				prevSize = len(results)
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(sampleSources)-1)),
	))

	properties.TestingRun(t)
}

// TestProperty_Deduplication: adding the same source text twice is
// equivalent to adding it once.
func TestProperty_Deduplication(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("duplicate source text does not change the matched set", prop.ForAll(
		func(idx int, repeats int) bool {
			src := sampleSources[idx%len(sampleSources)]

			once := newPropertyCompiler().NewMatcher()
			once.AddSource(src)
			once.FindMatches()

			twice := newPropertyCompiler().NewMatcher()
			for i := 0; i < repeats+1; i++ {
				twice.AddSource(src)
			}
			twice.FindMatches()

			a, b := once.GetMatchedResults(), twice.GetMatchedResults()
			if len(a) != len(b) {
				return false
			}
			for k := range a {
				if _, ok := b[k]; !ok {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, len(sampleSources)-1),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}

// TestProperty_CompilerMatcherIsolation: Matchers vended from the same
// Compiler have independent matched sets.
func TestProperty_CompilerMatcherIsolation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("one matcher's sources never leak into a sibling's results", prop.ForAll(
		func(idxA, idxB int) bool {
			c := newPropertyCompiler()
			a := c.NewMatcher()
			b := c.NewMatcher()

			a.AddSource(sampleSources[idxA%len(sampleSources)])
			a.FindMatches()

			// b never received any source; it must report no matches
			// regardless of what a saw.
			b.FindMatches()
			return len(b.GetMatchedResults()) == 0
		},
		gen.IntRange(0, len(sampleSources)-1),
		gen.IntRange(0, len(sampleSources)-1),
	))

	properties.TestingRun(t)
}

// TestProperty_NoCrossQueryBleed: whether query B was ever added to the
// Compiler never changes whether query A matches a given source set.
func TestProperty_NoCrossQueryBleed(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("query A's match outcome is independent of query B's presence", prop.ForAll(
		func(idx int) bool {
			src := sampleSources[idx%len(sampleSources)]

			solo := NewCompiler()
			_ = solo.AddQuery("tabs.create")
			mSolo := solo.NewMatcher()
			mSolo.AddSource(src)
			mSolo.FindMatches()
			_, soloMatched := mSolo.GetMatchedResults()["tabs.create"]

			withOthers := NewCompiler()
			_ = withOthers.AddQuery("tabs.create")
			for _, q := range sampleQueries {
				_ = withOthers.AddQuery(q)
			}
			mOthers := withOthers.NewMatcher()
			mOthers.AddSource(src)
			mOthers.FindMatches()
			_, othersMatched := mOthers.GetMatchedResults()["tabs.create"]

			return soloMatched == othersMatched
		},
		gen.IntRange(0, len(sampleSources)-1),
	))

	properties.TestingRun(t)
}

// TestProperty_LiteralDominance: whenever a source contains the query's
// literal dotted form, the query matches regardless of what non-matching
// alias noise is mixed into the same source text.
func TestProperty_LiteralDominance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("literal occurrence matches regardless of surrounding alias noise", prop.ForAll(
		func(prefix, suffix string) bool {
			c := NewCompiler()
			_ = c.AddQuery("tabs.create")
			m := c.NewMatcher()

			src := prefix + " chrome.tabs.create({}) " + suffix
			m.AddSource(src)
			m.FindMatches()

			_, ok := m.GetMatchedResults()["tabs.create"]
			return ok
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestProperty_ResultReferenceIdentity: getMatchedResults returns the same
// collection instance across calls on the same synchronous Matcher.
func TestProperty_ResultReferenceIdentity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("repeated GetMatchedResults calls return the identical map", prop.ForAll(
		func(idx int) bool {
			m := newPropertyCompiler().NewMatcher()
			m.AddSource(sampleSources[idx%len(sampleSources)])
			m.FindMatches()

			first := m.GetMatchedResults()
			second := m.GetMatchedResults()
			return fmt.Sprintf("%p", first) == fmt.Sprintf("%p", second)
		},
		gen.IntRange(0, len(sampleSources)-1),
	))

	properties.TestingRun(t)
}
