package queryengine

import "github.com/dlclark/regexp2"

// Comment stripping is intentionally lexical and imperfect: it does not
// tokenize the source, so it can mis-handle regex literals containing "//"
// or "//" appearing inside string literals. This is an accepted trade-off
// (spec's design notes): the tool's output is filtered downstream by humans,
// and the raw copy of every source is always kept alongside the stripped
// one precisely because stripping may be wrong.
var (
	// lineCommentPattern strips "//" to end of line, except when the "//" is
	// immediately preceded by ":" — which would otherwise eat URLs like
	// "http://example.com/path" by treating everything after the second
	// slash as a comment.
	lineCommentPattern = regexp2.MustCompile(`(?<!:)//[^\n]*`, regexp2.None)

	// blockCommentPattern strips "/* ... */" spans, non-greedy, across
	// newlines.
	blockCommentPattern = regexp2.MustCompile(`/\*.*?\*/`, regexp2.Singleline)
)

// stripComments returns text with line and block comments removed using the
// lexical rules above.
func stripComments(text string) string {
	text, err := blockCommentPattern.Replace(text, "", -1, -1)
	if err != nil {
		return text
	}
	text, err = lineCommentPattern.Replace(text, "", -1, -1)
	if err != nil {
		return text
	}
	return text
}
