package grading

import (
	"strings"
	"unicode"
)

// normalize casefolds and strips punctuation/extra spaces. Used for token
// comparison in the rule classifier.
func normalize(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range []rune(s) {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r):
			// skip
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}

// Jaccard is word-set similarity over whitespace tokens:
// |A∩B| / max(|A∪B|, 1). Either side empty yields 0 by policy.
func Jaccard(a, b string) float64 {
	as := tokenSet(a)
	bs := tokenSet(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	inter := 0
	union := len(bs)
	for w := range as {
		if _, ok := bs[w]; ok {
			inter++
		} else {
			union++
		}
	}
	if union < 1 {
		union = 1
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	m := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		m[w] = struct{}{}
	}
	return m
}
