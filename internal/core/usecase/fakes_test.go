package usecase

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

type extractorFake struct {
	formats []string
	result  domain.ExtractionResult
	err     error
	panicV  any
	delay   time.Duration

	calls     atomic.Int32
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func (f *extractorFake) Extract(context.Context, []byte) (domain.ExtractionResult, error) {
	f.calls.Add(1)
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxFlight.Load()
		if current <= seen || f.maxFlight.CompareAndSwap(seen, current) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panicV != nil {
		panic(f.panicV)
	}
	if f.err != nil {
		return domain.ExtractionResult{}, f.err
	}
	return f.result, nil
}

func (f *extractorFake) SupportsFormat(filename string) bool {
	ext := domain.ExtensionOf(filename)
	for _, format := range f.SupportedFormats() {
		if format == ext {
			return true
		}
	}
	return false
}

func (f *extractorFake) SupportedFormats() []string {
	if len(f.formats) == 0 {
		return []string{"pdf"}
	}
	return f.formats
}

type contentFake struct {
	signal domain.Signal
	err    error
	panicV any
	calls  int
}

func (f *contentFake) Classify(context.Context, string) (domain.Signal, error) {
	f.calls++
	if f.panicV != nil {
		panic(f.panicV)
	}
	if f.err != nil {
		return domain.Signal{}, f.err
	}
	return f.signal, nil
}

func (f *contentFake) Source() domain.SignalSource { return domain.SourceSupervised }

type detectorFake struct {
	lang string
}

func (f detectorFake) Detect(text string) string {
	if f.lang != "" {
		return f.lang
	}
	if strings.Contains(strings.ToLower(text), "rechnung") {
		return "de"
	}
	return "en"
}

type observerFake struct {
	mu                 sync.Mutex
	results            []domain.ClassificationResult
	extractionFailures []string
	languages          []string
	contentSignals     []domain.Signal
}

func (f *observerFake) ObserveResult(result domain.ClassificationResult, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
}

func (f *observerFake) ObserveExtractionFailure(format string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractionFailures = append(f.extractionFailures, format)
}

func (f *observerFake) ObserveLanguageRejection(language string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.languages = append(f.languages, language)
}

func (f *observerFake) ObserveContentSignal(signal domain.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contentSignals = append(f.contentSignals, signal)
}

func defaultValidator() *Validator {
	return NewValidator(DefaultMaxFileBytes, []string{"pdf", "jpg", "jpeg", "png", "docx"})
}
