package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// Extractor reads the text layer of a PDF page by page. Scanned PDFs without a
// text layer produce empty text, which is not an error.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) SupportedFormats() []string {
	return []string{"pdf"}
}

func (e *Extractor) SupportsFormat(filename string) bool {
	return domain.ExtensionOf(filename) == "pdf"
}

func (e *Extractor) Extract(ctx context.Context, data []byte) (domain.ExtractionResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return domain.ExtractionResult{Metadata: domain.ExtractionMetadata{Encrypted: true}},
				fmt.Errorf("failed to extract PDF content: %w", err)
		}
		return domain.ExtractionResult{}, fmt.Errorf("failed to extract PDF content: %w", err)
	}

	meta := domain.ExtractionMetadata{
		PageCount: reader.NumPage(),
		Encrypted: !reader.Trailer().Key("Encrypt").IsNull(),
	}
	info := reader.Trailer().Key("Info")
	if !info.IsNull() {
		meta.Title = strings.TrimSpace(info.Key("Title").Text())
		meta.Author = strings.TrimSpace(info.Key("Author").Text())
	}

	var text strings.Builder
	for i := 1; i <= meta.PageCount; i++ {
		if err := ctx.Err(); err != nil {
			return domain.ExtractionResult{Metadata: meta}, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return domain.ExtractionResult{Metadata: meta}, fmt.Errorf("failed to extract PDF content: page %d: %w", i, err)
		}
		text.WriteString(content)
		text.WriteByte('\n')
	}

	return domain.ExtractionResult{
		Text:     strings.TrimSpace(text.String()),
		Metadata: meta,
	}, nil
}
