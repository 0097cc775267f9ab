package queryengine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCompiler(t *testing.T, queries ...string) *Compiler {
	t.Helper()
	c := NewCompiler()
	for _, q := range queries {
		require.NoError(t, c.AddQuery(q))
	}
	return c
}

// Scenario 1: literal root usage matches only the query it names.
func TestMatcher_Scenario1_LiteralRoot(t *testing.T) {
	c := newTestCompiler(t, "tabs.create", "storage.local.get", "storage.sync.onChanged.addListener")
	m := c.NewMatcher()

	m.AddSource(" ... browser.tabs.create({}) ...")
	m.FindMatches()

	require.Equal(t, map[string]struct{}{"tabs.create": {}}, m.GetMatchedResults())
}

// Scenario 2: adding a second source only grows the matched set.
func TestMatcher_Scenario2_GrowsMonotonically(t *testing.T) {
	c := newTestCompiler(t, "tabs.create", "storage.local.get", "storage.sync.onChanged.addListener")
	m := c.NewMatcher()

	m.AddSource(" ... browser.tabs.create({}) ...")
	m.FindMatches()
	require.Equal(t, map[string]struct{}{"tabs.create": {}}, m.GetMatchedResults())

	m.AddSource(" ... chrome.storage.local.get({}) ...")
	m.FindMatches()
	require.Equal(t, map[string]struct{}{
		"tabs.create":       {},
		"storage.local.get": {},
	}, m.GetMatchedResults())
}

// Scenario 3: a two-part query matches through a chrome-rooted alias.
func TestMatcher_Scenario3_FirstPartAliased(t *testing.T) {
	c := newTestCompiler(t, "ns.api")
	m := c.NewMatcher()

	m.AddSource("alias=chrome.ns; alias.api")
	m.FindMatches()

	require.Contains(t, m.GetMatchedResults(), "ns.api")
}

// Scenario 4: an alias that wasn't itself rooted at browser/chrome doesn't count.
func TestMatcher_Scenario4_UnrootedAliasDoesNotMatch(t *testing.T) {
	c := newTestCompiler(t, "ns.api")
	m := c.NewMatcher()

	m.AddSource("alias=ns; alias.api")
	m.FindMatches()

	require.Empty(t, m.GetMatchedResults())
}

// Scenario 5: three-part alias chains are not followed (noise control).
func TestMatcher_Scenario5_ThreePartAliasChainNotFollowed(t *testing.T) {
	c := newTestCompiler(t, "ns.api.third")
	m := c.NewMatcher()

	m.AddSource("x=chrome.ns; y=x.api; y.third")
	m.FindMatches()

	require.Empty(t, m.GetMatchedResults())
}

// Scenario 6: comment stripping lets a split dot-chain match.
func TestMatcher_Scenario6_CommentsSplitDots(t *testing.T) {
	c := newTestCompiler(t, "ns.api")
	m := c.NewMatcher()

	m.AddSource("ns/**/./*x*/api")
	m.FindMatches()

	require.Contains(t, m.GetMatchedResults(), "ns.api")
}

func TestMatcher_HasRootQueryDoesNotMatchViaAlias(t *testing.T) {
	c := newTestCompiler(t, "browser.api")
	m := c.NewMatcher()

	// An alias assigned from chrome.browser should not satisfy a query that
	// explicitly demands the literal "browser." root.
	m.AddSource("alias = chrome.browser; alias.api")
	m.FindMatches()

	require.Empty(t, m.GetMatchedResults())
}

func TestMatcher_HasRootQueryMatchesLiteralRoot(t *testing.T) {
	c := newTestCompiler(t, "browser.api")
	m := c.NewMatcher()

	m.AddSource("browser.api()")
	m.FindMatches()

	require.Contains(t, m.GetMatchedResults(), "browser.api")
}

func TestMatcher_OptionalChainingIsAValidSeparator(t *testing.T) {
	c := newTestCompiler(t, "ns.api")
	m := c.NewMatcher()

	m.AddSource("chrome.ns?.api")
	m.FindMatches()

	require.Contains(t, m.GetMatchedResults(), "ns.api")
}

func TestMatcher_NullishCoalescingIsNotASeparator(t *testing.T) {
	c := newTestCompiler(t, "ns.api")
	m := c.NewMatcher()

	m.AddSource("chrome.ns??.api")
	m.FindMatches()

	require.Empty(t, m.GetMatchedResults())
}

func TestMatcher_WhitespaceInsideDotPermitted(t *testing.T) {
	c := newTestCompiler(t, "ns.api")
	m := c.NewMatcher()

	m.AddSource("chrome.ns\n.\napi")
	m.FindMatches()

	require.Contains(t, m.GetMatchedResults(), "ns.api")
}

func TestMatcher_WhitespaceInsideIdentifierRejected(t *testing.T) {
	c := newTestCompiler(t, "ns.api")
	m := c.NewMatcher()

	m.AddSource("chrome.ns\n \napi")
	m.FindMatches()

	require.Empty(t, m.GetMatchedResults())
}

func TestMatcher_IdentifierAdjacentTokenDoesNotMatch(t *testing.T) {
	c := newTestCompiler(t, "test")
	m := c.NewMatcher()

	m.AddSource("nottest")
	m.FindMatches()

	require.Empty(t, m.GetMatchedResults())
}

func TestMatcher_Dedup_SameRawTextTwice(t *testing.T) {
	c := newTestCompiler(t, "tabs.create")
	m1 := c.NewMatcher()
	m1.AddSource("chrome.tabs.create()")
	m1.FindMatches()

	m2 := c.NewMatcher()
	m2.AddSource("chrome.tabs.create()")
	m2.AddSource("chrome.tabs.create()")
	m2.FindMatches()

	require.Equal(t, m1.GetMatchedResults(), m2.GetMatchedResults())
	require.Len(t, m2.sources, len(m1.sources))
}

func TestMatcher_Dedup_CommentStrippedFormsCoincide(t *testing.T) {
	c := newTestCompiler(t, "tabs.create")
	m := c.NewMatcher()

	m.AddSource("chrome.tabs.create()")
	before := len(m.sources)
	m.AddSource("chrome.tabs.create()// trailing comment")
	after := len(m.sources)

	// The stripped form of the second source is identical to the first
	// source's raw form, so only its (distinct) raw copy should add a new
	// entry — not two.
	require.Equal(t, before+1, after)
}

func TestMatcher_ResultReferenceIsStableAcrossCalls(t *testing.T) {
	c := newTestCompiler(t, "tabs.create")
	m := c.NewMatcher()
	m.AddSource("chrome.tabs.create()")

	m.FindMatches()
	first := m.GetMatchedResults()
	m.FindMatches()
	second := m.GetMatchedResults()

	require.Equal(t, fmt.Sprintf("%p", first), fmt.Sprintf("%p", second))
}

func TestMatcher_MatchersFromSameCompilerAreIsolated(t *testing.T) {
	c := newTestCompiler(t, "tabs.create")
	m1 := c.NewMatcher()
	m2 := c.NewMatcher()

	m1.AddSource("chrome.tabs.create()")
	m1.FindMatches()

	m2.FindMatches()

	require.NotEmpty(t, m1.GetMatchedResults())
	require.Empty(t, m2.GetMatchedResults())
}

func TestMatcher_LiteralDominatesOverAliasConditions(t *testing.T) {
	c := newTestCompiler(t, "ns.api")
	m := c.NewMatcher()

	// Contains the literal form AND an alias that would otherwise be a red
	// herring for a different query; literal dominance just means matching
	// doesn't require evaluating the alias conditions once literal matches.
	m.AddSource("something=ns; chrome.ns.api")
	m.FindMatches()

	require.Contains(t, m.GetMatchedResults(), "ns.api")
}

func TestMatcher_NoCrossQueryBleed(t *testing.T) {
	withB := newTestCompiler(t, "ns.api", "other.thing")
	withoutB := newTestCompiler(t, "ns.api")

	mWith := withB.NewMatcher()
	mWithout := withoutB.NewMatcher()

	mWith.AddSource("chrome.ns.api")
	mWithout.AddSource("chrome.ns.api")

	mWith.FindMatches()
	mWithout.FindMatches()

	_, withMatched := mWith.GetMatchedResults()["ns.api"]
	_, withoutMatched := mWithout.GetMatchedResults()["ns.api"]
	require.Equal(t, withoutMatched, withMatched)
}

func TestCompiler_DuplicateQueryIsIgnoredNotFatal(t *testing.T) {
	c := NewCompiler()
	require.NoError(t, c.AddQuery("tabs.create"))
	require.NoError(t, c.AddQuery("tabs.create"))

	m := c.NewMatcher()
	m.AddSource("chrome.tabs.create()")
	m.FindMatches()
	require.Contains(t, m.GetMatchedResults(), "tabs.create")
}
