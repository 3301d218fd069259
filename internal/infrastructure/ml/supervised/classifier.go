package supervised

import (
	"context"
	"errors"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// Classifier serves a trained Model as a content classification strategy.
// A nil model puts it in degraded mode where every call fails with
// ErrModelNotLoaded.
type Classifier struct {
	model *Model
}

func NewClassifier(model *Model) *Classifier {
	return &Classifier{model: model}
}

func (c *Classifier) Loaded() bool {
	return c != nil && c.model != nil
}

func (c *Classifier) Source() domain.SignalSource {
	return domain.SourceSupervised
}

func (c *Classifier) Classify(ctx context.Context, text string) (domain.Signal, error) {
	if !c.Loaded() {
		return domain.UnknownSignal(domain.SourceSupervised),
			domain.WrapError(domain.ErrModelNotLoaded, "supervised classify", errors.New("no trained model"))
	}
	if err := ctx.Err(); err != nil {
		return domain.UnknownSignal(domain.SourceSupervised), err
	}
	name, prob := c.model.Predict(text)
	label, ok := domain.ParseLabel(name)
	if !ok {
		label = domain.LabelUnknown
	}
	return domain.Signal{
		Source:     domain.SourceSupervised,
		Label:      label,
		Confidence: domain.ClampConfidence(prob),
	}, nil
}
