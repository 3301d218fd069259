package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/usecase"
	"github.com/kirillkom/document-classifier/internal/infrastructure/extractor/imagemeta"
	"github.com/kirillkom/document-classifier/internal/infrastructure/extractor/pdftext"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestListFilesSkipsHiddenAndDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.pdf", []byte("x"))
	writeFile(t, dir, "a.png", []byte("x"))
	writeFile(t, dir, ".DS_Store", []byte("x"))
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := listFiles(dir)
	if err != nil {
		t.Fatalf("listFiles() error = %v", err)
	}
	want := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.pdf")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectTrainingSet(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "drivers_license_1.png", pngBytes(t))
	writeFile(t, dir, "holiday.png", pngBytes(t))
	writeFile(t, dir, "invoice_broken.pdf", []byte("not a pdf"))

	dispatcher := usecase.NewExtractionDispatcher(2, 10_000, imagemeta.NewExtractor(), pdftext.NewExtractor())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	set, err := collectTrainingSet(context.Background(), dir, usecase.NewFilenameClassifier(nil), dispatcher, logger)
	if err != nil {
		t.Fatalf("collectTrainingSet() error = %v", err)
	}
	if diff := cmp.Diff([]string{"drivers_license"}, set.labels); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
	if len(set.texts) != 1 || !strings.Contains(set.texts[0], "Filename features: drivers_license_1.png") {
		t.Fatalf("expected image metadata text, got %q", set.texts)
	}
	if !strings.Contains(set.texts[0], "Image size: (4, 3)") {
		t.Fatalf("expected image size in text, got %q", set.texts[0])
	}
	if set.counts["drivers_license"] != 1 {
		t.Fatalf("unexpected counts %v", set.counts)
	}
}

type batchClassifierFake struct {
	mu       sync.Mutex
	inFlight int
	peak     int
}

func (f *batchClassifierFake) Classify(_ context.Context, doc domain.Document) (domain.ClassificationResult, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if len(doc.Data) == 0 {
		return domain.ErrorResult(doc.Filename, domain.MsgEmptyFile), domain.WrapError(domain.ErrEmptyInput, "validate", io.EOF)
	}
	return domain.ClassificationResult{Filename: doc.Filename, Label: domain.LabelInvoice, Confidence: 0.8, Method: domain.MethodContent}, nil
}

func TestClassifyAllKeepsOrderAndReportsRejections(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_invoice.pdf", []byte("x"))
	writeFile(t, dir, "b_empty.pdf", nil)
	writeFile(t, dir, "c_invoice.pdf", []byte("y"))
	paths, err := listFiles(dir)
	if err != nil {
		t.Fatalf("listFiles() error = %v", err)
	}

	fake := &batchClassifierFake{}
	results, err := classifyAll(context.Background(), fake, paths, 2)
	if err != nil {
		t.Fatalf("classifyAll() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Filename != "a_invoice.pdf" || results[2].Filename != "c_invoice.pdf" {
		t.Fatalf("results out of order: %+v", results)
	}
	if !results[1].Failed() || results[1].Error != domain.MsgEmptyFile {
		t.Fatalf("expected rejection result, got %+v", results[1])
	}
	if fake.peak > 2 {
		t.Fatalf("parallelism exceeded: %d", fake.peak)
	}
}

func TestPrintResults(t *testing.T) {
	results := []domain.ClassificationResult{
		{Filename: "inv.pdf", Label: domain.LabelInvoice, Confidence: 0.8, Method: domain.MethodContent},
		{Filename: "bank_statement.pdf", Label: domain.LabelBankStatement, Method: domain.MethodFilename},
		domain.ErrorResult("x.pdf", domain.MsgEmptyFile),
	}
	var out bytes.Buffer
	if err := printResults(&out, results); err != nil {
		t.Fatalf("printResults() error = %v", err)
	}
	text := out.String()
	for _, want := range []string{"80.00%", "bank_statement: 1 documents", "invoice: 1 documents", domain.MsgEmptyFile} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "unknown: 1") {
		t.Fatalf("failed results must not be counted:\n%s", text)
	}
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := writeWorkbook(path, []domain.ClassificationResult{{Filename: "a.pdf", Label: domain.LabelInvoice, Method: domain.MethodFilename}}); err != nil {
		t.Fatalf("writeWorkbook() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Fatalf("expected non-empty workbook, got %v %v", info, err)
	}
}
