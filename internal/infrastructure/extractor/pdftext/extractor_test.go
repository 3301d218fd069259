package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
)

// buildPDF writes a single-page PDF with a WinAnsi Helvetica text layer and an
// Info dictionary.
func buildPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		"<< /Title (Q3 Invoice) /Author (Acme Corp) >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 6 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractReadsTextLayerAndInfo(t *testing.T) {
	result, err := NewExtractor().Extract(context.Background(), buildPDF("Invoice number 42"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(result.Text, "Invoice number 42") {
		t.Fatalf("expected page text, got %q", result.Text)
	}
	if result.Metadata.PageCount != 1 {
		t.Fatalf("expected 1 page, got %d", result.Metadata.PageCount)
	}
	if result.Metadata.Encrypted {
		t.Fatalf("document is not encrypted")
	}
	if result.Metadata.Title != "Q3 Invoice" || result.Metadata.Author != "Acme Corp" {
		t.Fatalf("unexpected info %+v", result.Metadata)
	}
}

func TestExtractRejectsMalformedPDF(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), []byte("this is not a pdf at all, just some plain bytes that are long enough"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "failed to extract PDF content") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSupportsFormat(t *testing.T) {
	e := NewExtractor()
	if !e.SupportsFormat("Statement.PDF") {
		t.Fatalf("expected pdf support")
	}
	if e.SupportsFormat("statement.docx") {
		t.Fatalf("docx is not a pdf")
	}
}
