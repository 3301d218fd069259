package usecase

import "github.com/kirillkom/document-classifier/internal/core/domain"

const DefaultContentThreshold = 0.7

// Arbiter picks the final label from the filename and content signals.
type Arbiter struct {
	threshold float64
}

func NewArbiter(threshold float64) *Arbiter {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultContentThreshold
	}
	return &Arbiter{threshold: threshold}
}

func (a *Arbiter) Threshold() float64 {
	return a.threshold
}

// Decide trusts content only when it is strictly above the threshold; the
// filename label wins otherwise, even when it is unknown. The reported
// confidence is the content confidence in both cases, since the filename
// signal carries none.
func (a *Arbiter) Decide(filename string, byName, byContent domain.Signal) domain.ClassificationResult {
	byName = byName.Normalized()
	byContent = byContent.Normalized()

	result := domain.ClassificationResult{
		Filename:   filename,
		Confidence: byContent.Confidence,
		Signals:    []domain.Signal{byName, byContent},
	}
	if byContent.Confidence > a.threshold {
		result.Label = byContent.Label
		result.Method = domain.MethodContent
		return result
	}
	result.Label = byName.Label
	result.Method = domain.MethodFilename
	return result
}
