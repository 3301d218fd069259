package usecase

import (
	"strings"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

type KeywordRule struct {
	Label    domain.Label
	Keywords []string
}

// DefaultKeywordRules is checked in order; the first matching label wins.
func DefaultKeywordRules() []KeywordRule {
	return []KeywordRule{
		{Label: domain.LabelDriversLicense, Keywords: []string{"drivers_license", "drivers_licence"}},
		{Label: domain.LabelBankStatement, Keywords: []string{"bank_statement"}},
		{Label: domain.LabelInvoice, Keywords: []string{"invoice"}},
	}
}

// FilenameClassifier is the cheap, always-available signal. It is binary:
// the label says whether a keyword matched and confidence stays 0.
type FilenameClassifier struct {
	rules []KeywordRule
}

func NewFilenameClassifier(rules []KeywordRule) *FilenameClassifier {
	if len(rules) == 0 {
		rules = DefaultKeywordRules()
	}
	normalized := make([]KeywordRule, 0, len(rules))
	for _, rule := range rules {
		keywords := make([]string, 0, len(rule.Keywords))
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if len(keywords) > 0 {
			normalized = append(normalized, KeywordRule{Label: rule.Label, Keywords: keywords})
		}
	}
	return &FilenameClassifier{rules: normalized}
}

func (c *FilenameClassifier) Classify(filename string) domain.Signal {
	name := strings.ToLower(filename)
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(name, kw) {
				return domain.Signal{Source: domain.SourceFilename, Label: rule.Label}
			}
		}
	}
	return domain.UnknownSignal(domain.SourceFilename)
}
