package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// DocumentClassifier is the inbound contract for synchronous classification.
// The returned result is always well-formed; a non-nil error is returned only
// when the document was rejected at admission (empty, oversized, unsupported).
type DocumentClassifier interface {
	Classify(ctx context.Context, doc domain.Document) (domain.ClassificationResult, error)
}

// JobSubmitter is the inbound contract for asynchronous classification uploads.
type JobSubmitter interface {
	Submit(ctx context.Context, filename string, body io.Reader) (*domain.ClassificationJob, error)
}

// JobReader is the inbound read model for job state.
type JobReader interface {
	GetByID(ctx context.Context, id string) (*domain.ClassificationJob, error)
}

// JobProcessor is the inbound contract for the asynchronous worker.
type JobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}

// Health describes the classification service readiness. Status is
// "degraded" when the content strategy cannot contribute.
type Health struct {
	Status       string `json:"status"`
	Strategy     string `json:"strategy"`
	ModelLoaded  bool   `json:"model_loaded"`
	BreakerState string `json:"breaker_state,omitempty"`
}

type HealthReporter interface {
	Health() Health
}
