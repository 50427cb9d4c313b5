package textutil

import (
	"strings"
	"unicode"
)

// TokenizeForSearch lower-cases the input and extracts search tokens:
// alphanumeric runs of at least two characters, plus every adjacent pair of
// Han characters (a sliding bigram window, which captures multi-character
// Chinese terms without a segmenter). Tokens are returned de-duplicated in
// first-seen order.
func TokenizeForSearch(s string) []string {
	s = strings.ToLower(s)

	var tokens []string
	seen := make(map[string]struct{})
	add := func(tok string) {
		if len([]rune(tok)) < 2 {
			return
		}
		if _, ok := seen[tok]; ok {
			return
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	var run []rune  // current alphanumeric run
	var prev rune   // previous Han rune, 0 if none
	flush := func() {
		if len(run) > 0 {
			add(string(run))
			run = run[:0]
		}
	}

	for _, r := range s {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			if prev != 0 {
				add(string([]rune{prev, r}))
			}
			prev = r
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			prev = 0
			run = append(run, r)
		default:
			prev = 0
			flush()
		}
	}
	flush()

	return tokens
}
