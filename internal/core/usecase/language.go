package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
)

const DefaultTargetLanguage = "en"

// LanguageGate rejects text whose detected language is known and is not the
// target. Undetermined detection never blocks.
type LanguageGate struct {
	detector ports.LanguageDetector
	target   string
}

func NewLanguageGate(detector ports.LanguageDetector, target string) *LanguageGate {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		target = DefaultTargetLanguage
	}
	return &LanguageGate{detector: detector, target: target}
}

// Check returns the detected language ("" when undetermined) and
// ErrUnsupportedLanguage when it differs from the target.
func (g *LanguageGate) Check(text string) (string, error) {
	if g == nil || g.detector == nil || strings.TrimSpace(text) == "" {
		return "", nil
	}
	lang := strings.ToLower(strings.TrimSpace(g.detector.Detect(text)))
	if lang == "" || lang == "unknown" || lang == g.target {
		return lang, nil
	}
	return lang, domain.WrapError(domain.ErrUnsupportedLanguage, "detect language", fmt.Errorf("detected %q", lang))
}
