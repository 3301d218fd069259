package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// Extractor pulls text and structural metadata out of one file format.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (domain.ExtractionResult, error)
	SupportsFormat(filename string) bool
	// SupportedFormats returns the lower-cased extensions handled, without dots.
	SupportedFormats() []string
}

// ContentClassifier is a content-based classification strategy.
type ContentClassifier interface {
	Classify(ctx context.Context, text string) (domain.Signal, error)
	Source() domain.SignalSource
}

// LanguageDetector returns an ISO 639-1 code, or "" when undetermined.
type LanguageDetector interface {
	Detect(text string) string
}

// ClassificationObserver receives pipeline events for metrics.
type ClassificationObserver interface {
	ObserveResult(result domain.ClassificationResult, duration time.Duration)
	ObserveExtractionFailure(format string)
	ObserveLanguageRejection(language string)
	ObserveContentSignal(signal domain.Signal)
}

// JobRepository persists asynchronous job state.
type JobRepository interface {
	Create(ctx context.Context, job *domain.ClassificationJob) error
	GetByID(ctx context.Context, id string) (*domain.ClassificationJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string) error
	SaveResult(ctx context.Context, id string, result domain.ClassificationResult) error
}

// ObjectStorage holds uploaded bytes until their job is classified.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes job submission events.
type MessageQueue interface {
	PublishJobSubmitted(ctx context.Context, jobID string) error
	SubscribeJobSubmitted(ctx context.Context, handler func(context.Context, string) error) error
}
