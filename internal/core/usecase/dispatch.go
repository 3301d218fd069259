package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
)

const (
	DefaultExtractionWorkers = 3
	DefaultMaxTextChars      = 100_000
)

// ExtractionDispatcher routes documents to the extractor registered for their
// extension and runs extraction on a bounded pool. Callers beyond the pool
// size wait for a free slot; there is no queue depth limit.
type ExtractionDispatcher struct {
	extractors map[string]ports.Extractor
	slots      *semaphore.Weighted
	maxChars   int
	onWait     func(time.Duration)
}

func NewExtractionDispatcher(workers, maxChars int, extractors ...ports.Extractor) *ExtractionDispatcher {
	if workers <= 0 {
		workers = DefaultExtractionWorkers
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxTextChars
	}
	byFormat := make(map[string]ports.Extractor)
	for _, extractor := range extractors {
		if extractor == nil {
			continue
		}
		for _, format := range extractor.SupportedFormats() {
			if _, exists := byFormat[format]; !exists {
				byFormat[format] = extractor
			}
		}
	}
	return &ExtractionDispatcher{
		extractors: byFormat,
		slots:      semaphore.NewWeighted(int64(workers)),
		maxChars:   maxChars,
	}
}

// OnSlotWait registers a callback receiving how long each call waited for a
// pool slot.
func (d *ExtractionDispatcher) OnSlotWait(fn func(time.Duration)) *ExtractionDispatcher {
	d.onWait = fn
	return d
}

// Formats returns the extensions that have a registered extractor.
func (d *ExtractionDispatcher) Formats() []string {
	out := make([]string, 0, len(d.extractors))
	for format := range d.extractors {
		out = append(out, format)
	}
	return out
}

type extractionOutcome struct {
	result domain.ExtractionResult
	err    error
}

// Extract returns the (truncated) extraction result. Every failure, including
// a panicking extractor, comes back as ErrExtractionFailed with the original
// message kept; the caller decides whether to continue without content.
func (d *ExtractionDispatcher) Extract(ctx context.Context, doc domain.Document) (domain.ExtractionResult, error) {
	extractor, ok := d.extractors[doc.Extension]
	if !ok || !extractor.SupportsFormat(doc.Filename) {
		return d.failed(fmt.Errorf("no extractor registered for format %q", doc.Extension))
	}

	waitStart := time.Now()
	if err := d.slots.Acquire(ctx, 1); err != nil {
		return d.failed(fmt.Errorf("wait for extraction slot: %w", err))
	}
	if d.onWait != nil {
		d.onWait(time.Since(waitStart))
	}

	done := make(chan extractionOutcome, 1)
	go func() {
		defer d.slots.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- extractionOutcome{err: fmt.Errorf("extractor panic: %v", r)}
			}
		}()
		result, err := extractor.Extract(ctx, doc.Data)
		done <- extractionOutcome{result: result, err: err}
	}()

	var out extractionOutcome
	select {
	case <-ctx.Done():
		return d.failed(ctx.Err())
	case out = <-done:
	}

	if out.err == nil && out.result.Error != "" {
		out.err = errors.New(out.result.Error)
	}
	if out.err != nil {
		return d.failed(out.err)
	}

	out.result.Text = truncateRunes(out.result.Text, d.maxChars)
	return out.result, nil
}

func (d *ExtractionDispatcher) failed(err error) (domain.ExtractionResult, error) {
	wrapped := domain.WrapError(domain.ErrExtractionFailed, "extract text", err)
	return domain.ExtractionResult{Error: err.Error()}, wrapped
}

func truncateRunes(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	count := 0
	for idx := range text {
		if count == limit {
			return text[:idx]
		}
		count++
	}
	return text
}
