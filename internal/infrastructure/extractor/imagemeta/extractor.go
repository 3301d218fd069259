package imagemeta

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// Extractor reads image headers only. There is no OCR, so the text is always
// empty and images are classified by filename unless a content strategy can
// use the metadata.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) SupportedFormats() []string {
	return []string{"jpg", "jpeg", "png"}
}

func (e *Extractor) SupportsFormat(filename string) bool {
	switch domain.ExtensionOf(filename) {
	case "jpg", "jpeg", "png":
		return true
	default:
		return false
	}
}

func (e *Extractor) Extract(_ context.Context, data []byte) (domain.ExtractionResult, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("decode image header: %w", err)
	}
	return domain.ExtractionResult{
		Metadata: domain.ExtractionMetadata{
			ImageFormat: strings.ToUpper(format),
			ImageWidth:  cfg.Width,
			ImageHeight: cfg.Height,
			ColorModel:  colorModelName(cfg.ColorModel),
		},
	}, nil
}

// Describe renders image metadata as text so that training can use images
// that have no text layer.
func Describe(filename string, meta domain.ExtractionMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Image format: %s\n", meta.ImageFormat)
	fmt.Fprintf(&b, "Image size: (%d, %d)\n", meta.ImageWidth, meta.ImageHeight)
	fmt.Fprintf(&b, "Color mode: %s\n", meta.ColorModel)
	fmt.Fprintf(&b, "Filename features: %s\n", filepath.Base(filename))
	return b.String()
}

func colorModelName(model color.Model) string {
	if _, ok := model.(color.Palette); ok {
		return "P"
	}
	switch model {
	case color.RGBAModel, color.NRGBAModel:
		return "RGBA"
	case color.RGBA64Model, color.NRGBA64Model:
		return "RGBA64"
	case color.GrayModel:
		return "L"
	case color.Gray16Model:
		return "I;16"
	case color.YCbCrModel:
		return "YCbCr"
	case color.CMYKModel:
		return "CMYK"
	default:
		return "unknown"
	}
}
