package whatlang

import (
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
)

const (
	defaultSampleRunes = 2000
	// defaultMinWords is the Latin-script word count below which a
	// non-English verdict is treated as undetermined.
	defaultMinWords = 30
	// englishShareFloor is the share of English function words at which a
	// non-English verdict is treated as undetermined.
	englishShareFloor = 0.1
)

var englishFunctionWords = map[string]struct{}{
	"the": {}, "and": {}, "of": {}, "to": {}, "are": {}, "for": {}, "with": {},
	"this": {}, "that": {}, "these": {}, "you": {}, "your": {}, "from": {}, "by": {},
	"be": {}, "been": {}, "have": {}, "has": {}, "it": {}, "its": {}, "at": {},
	"or": {}, "not": {}, "we": {}, "our": {}, "they": {}, "their": {}, "which": {},
	"please": {}, "thank": {}, "any": {}, "would": {}, "should": {}, "were": {},
}

// Detector wraps whatlanggo trigram detection. It reports "" (undetermined)
// unless a non-English verdict is reliable and backed by enough prose.
type Detector struct {
	sampleRunes int
	minWords    int
}

func NewDetector(sampleRunes int) *Detector {
	if sampleRunes <= 0 {
		sampleRunes = defaultSampleRunes
	}
	return &Detector{sampleRunes: sampleRunes, minWords: defaultMinWords}
}

func (d *Detector) Detect(text string) string {
	text = strings.TrimSpace(prefixRunes(text, d.sampleRunes))
	if text == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	if info.Lang == whatlanggo.Eng {
		return "en"
	}
	if info.Script != unicode.Latin {
		return info.Lang.Iso6391()
	}

	words := latinWords(text)
	if len(words) < d.minWords || englishShare(words) >= englishShareFloor {
		return ""
	}
	return info.Lang.Iso6391()
}

// latinWords returns the lower-cased letter runs of at least two runes.
func latinWords(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) })
	words := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		words = append(words, strings.ToLower(f))
	}
	return words
}

func englishShare(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		if _, ok := englishFunctionWords[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

func prefixRunes(text string, limit int) string {
	count := 0
	for idx := range text {
		if count == limit {
			return text[:idx]
		}
		count++
	}
	return text
}
