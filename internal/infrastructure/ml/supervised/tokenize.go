package supervised

import (
	"strings"
	"unicode"
)

// tokenize lower-cases text and splits it into runs of letters and digits of
// at least two runes.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 64)
	var b strings.Builder
	runes := 0
	flush := func() {
		if runes >= 2 {
			out = append(out, b.String())
		}
		b.Reset()
		runes = 0
	}
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			runes++
			continue
		}
		flush()
	}
	flush()
	return out
}

// analyze removes stop words and emits n-grams from 1 up to ngramMax, joined
// by a single space.
func analyze(text string, ngramMax int) []string {
	tokens := tokenize(text)
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, stop := englishStopWords[tok]; !stop {
			kept = append(kept, tok)
		}
	}
	if ngramMax < 1 {
		ngramMax = 1
	}
	terms := make([]string, 0, len(kept)*ngramMax)
	terms = append(terms, kept...)
	for n := 2; n <= ngramMax; n++ {
		for i := 0; i+n <= len(kept); i++ {
			terms = append(terms, strings.Join(kept[i:i+n], " "))
		}
	}
	return terms
}
