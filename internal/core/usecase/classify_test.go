package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

type classifyFixture struct {
	extractor *extractorFake
	content   *contentFake
	observer  *observerFake
	uc        *ClassifyDocumentUseCase
}

func newClassifyFixture(text string, signal domain.Signal) *classifyFixture {
	f := &classifyFixture{
		extractor: &extractorFake{
			formats: []string{"pdf", "png", "jpg", "jpeg"},
			result:  domain.ExtractionResult{Text: text},
		},
		content:  &contentFake{signal: signal},
		observer: &observerFake{},
	}
	f.uc = NewClassifyDocumentUseCase(
		defaultValidator(),
		NewFilenameClassifier(nil),
		NewExtractionDispatcher(DefaultExtractionWorkers, 0, f.extractor),
		NewLanguageGate(detectorFake{}, "en"),
		f.content,
		NewArbiter(DefaultContentThreshold),
		WithObserver(f.observer),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return f
}

func TestClassifyRejectsBeforeExtraction(t *testing.T) {
	cases := []struct {
		name    string
		doc     domain.Document
		kind    error
		message string
	}{
		{name: "empty", doc: domain.NewDocument("invoice.pdf", nil), kind: domain.ErrEmptyInput, message: domain.MsgEmptyFile},
		{name: "oversized", doc: domain.NewDocument("invoice.pdf", bytes.Repeat([]byte("a"), int(DefaultMaxFileBytes)+1)), kind: domain.ErrOversizedInput, message: "File too large (max 10MB)"},
		{name: "unsupported", doc: domain.NewDocument("invoice.txt", []byte("total due")), kind: domain.ErrUnsupportedFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newClassifyFixture("invoice total due", domain.Signal{Label: domain.LabelInvoice, Confidence: 0.9})
			got, err := f.uc.Classify(context.Background(), tc.doc)
			if !domain.IsKind(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
			if !got.Failed() || got.Label != domain.LabelUnknown || got.Confidence != 0 {
				t.Fatalf("unexpected rejection result %+v", got)
			}
			if tc.message != "" && got.Error != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, got.Error)
			}
			if f.extractor.calls.Load() != 0 || f.content.calls != 0 {
				t.Fatalf("rejected document must not reach extraction or content classification")
			}
		})
	}
}

func TestClassifyRejectsNonEnglishRegardlessOfFilename(t *testing.T) {
	f := newClassifyFixture("Rechnung Nummer 2024 Gesamtbetrag", domain.Signal{Label: domain.LabelInvoice, Confidence: 0.99})

	got, err := f.uc.Classify(context.Background(), domain.NewDocument("invoice_2024.pdf", []byte("%PDF")))
	if err != nil {
		t.Fatalf("language rejection is a result, not an error: %v", err)
	}
	if got.Label != domain.LabelUnknown || got.Confidence != 0 || got.Error != domain.MsgEnglishOnly {
		t.Fatalf("unexpected result %+v", got)
	}
	if f.content.calls != 0 {
		t.Fatalf("content classifier must not run on rejected language")
	}
	if len(f.observer.languages) != 1 || f.observer.languages[0] != "de" {
		t.Fatalf("expected language rejection to be observed, got %v", f.observer.languages)
	}
}

func TestClassifyFallsBackToFilenameWithoutModel(t *testing.T) {
	f := newClassifyFixture("", domain.Signal{})
	f.content.err = domain.WrapError(domain.ErrModelNotLoaded, "supervised classify", errors.New("no model"))

	got, err := f.uc.Classify(context.Background(), domain.NewDocument("INVOICE_2024.PDF", []byte("%PDF")))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Label != domain.LabelInvoice || got.Method != domain.MethodFilename || got.Confidence != 0 {
		t.Fatalf("expected invoice via filename, got %+v", got)
	}
}

func TestClassifyUsesConfidentContent(t *testing.T) {
	text := "Account statement. Opening balance 1,200.00 closing balance 950.00 for the period"
	f := newClassifyFixture(text, domain.Signal{Source: domain.SourceSupervised, Label: domain.LabelBankStatement, Confidence: 0.86})

	got, err := f.uc.Classify(context.Background(), domain.NewDocument("scan_0001.pdf", []byte("%PDF")))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Label != domain.LabelBankStatement || got.Method != domain.MethodContent {
		t.Fatalf("expected bank_statement via content, got %+v", got)
	}
	if got.Confidence <= DefaultContentThreshold || got.Confidence > 1 {
		t.Fatalf("unexpected confidence %v", got.Confidence)
	}
	if len(f.observer.contentSignals) != 1 {
		t.Fatalf("expected content signal to be observed")
	}
}

func TestClassifyWeakContentKeepsFilenameLabel(t *testing.T) {
	f := newClassifyFixture("quarterly summary", domain.Signal{Label: domain.LabelInvoice, Confidence: 0.45})

	got, err := f.uc.Classify(context.Background(), domain.NewDocument("bank_statement_march.pdf", []byte("%PDF")))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Label != domain.LabelBankStatement || got.Method != domain.MethodFilename {
		t.Fatalf("expected filename label, got %+v", got)
	}
	if got.Confidence != 0.45 {
		t.Fatalf("final confidence must be the content confidence, got %v", got.Confidence)
	}
}

func TestClassifyDegradesOnExtractionFailure(t *testing.T) {
	f := newClassifyFixture("", domain.Signal{Label: domain.LabelInvoice, Confidence: 0.9})
	f.extractor.err = errors.New("malformed pdf")

	got, err := f.uc.Classify(context.Background(), domain.NewDocument("drivers_license.pdf", []byte("%PDF")))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Label != domain.LabelDriversLicense || got.Failed() {
		t.Fatalf("expected filename fallback, got %+v", got)
	}
	if f.content.calls != 0 {
		t.Fatalf("content classifier must not run without text")
	}
	if len(f.observer.extractionFailures) != 1 || f.observer.extractionFailures[0] != "pdf" {
		t.Fatalf("expected extraction failure to be observed, got %v", f.observer.extractionFailures)
	}
}

func TestClassifyWithoutContentStrategy(t *testing.T) {
	f := newClassifyFixture("invoice total", domain.Signal{})
	f.uc.content = nil

	got, err := f.uc.Classify(context.Background(), domain.NewDocument("photo.png", []byte("png")))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Label != domain.LabelUnknown || got.Method != domain.MethodFilename {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestClassifyRecoversFromPanic(t *testing.T) {
	f := newClassifyFixture("invoice total", domain.Signal{})
	f.content.panicV = "index out of range"

	got, err := f.uc.Classify(context.Background(), domain.NewDocument("invoice.pdf", []byte("%PDF")))
	if err != nil {
		t.Fatalf("panic must surface as a result, got %v", err)
	}
	if got.Error != domain.MsgInternalClassifying || got.Label != domain.LabelUnknown || got.Method != domain.MethodError {
		t.Fatalf("unexpected result %+v", got)
	}
	if len(f.observer.results) != 1 {
		t.Fatalf("expected the result to be observed once, got %d", len(f.observer.results))
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	f := newClassifyFixture("Invoice number 42, amount due", domain.Signal{Label: domain.LabelInvoice, Confidence: 0.81})
	doc := domain.NewDocument("upload.pdf", []byte("%PDF"))

	first, err := f.uc.Classify(context.Background(), doc)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	second, err := f.uc.Classify(context.Background(), doc)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if first.Label != second.Label || first.Confidence != second.Confidence || first.Method != second.Method {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}
