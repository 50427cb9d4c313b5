// Package textutil provides the normalization, tokenization, chunking, and
// similarity primitives the retrieval pipeline is built on. Everything here
// is a pure function.
package textutil

import (
	"regexp"
	"strings"
)

var (
	horizontalWS = regexp.MustCompile(`[ \t]+`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
)

// NormalizeText canonicalizes corpus and query text: CRLF to LF, full-width
// spaces to spaces, runs of horizontal whitespace to a single space, runs of
// three or more newlines to exactly one blank line, ends trimmed.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "　", " ")
	s = horizontalWS.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
