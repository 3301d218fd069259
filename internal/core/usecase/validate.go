package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

const DefaultMaxFileBytes int64 = 10 * 1024 * 1024

// Validator is the admission gate run before any extraction or inference.
type Validator struct {
	maxBytes int64
	allowed  map[string]struct{}
}

func NewValidator(maxBytes int64, extensions []string) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}
	return &Validator{maxBytes: maxBytes, allowed: allowed}
}

func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}

func (v *Validator) Validate(doc domain.Document) (domain.Document, error) {
	size := int64(len(doc.Data))
	if size == 0 {
		return doc, domain.WrapError(domain.ErrEmptyInput, "validate document", fmt.Errorf("file %q is empty", doc.Filename))
	}
	if size > v.maxBytes {
		return doc, domain.WrapError(
			domain.ErrOversizedInput,
			"validate document",
			fmt.Errorf("%d bytes (max %d)", size, v.maxBytes),
		)
	}
	if err := v.CheckFormat(doc.Filename); err != nil {
		return doc, err
	}
	return doc, nil
}

// CheckFormat validates only the filename extension. Upload paths use it to
// reject a file before reading its body.
func (v *Validator) CheckFormat(filename string) error {
	ext := domain.ExtensionOf(filename)
	if _, ok := v.allowed[ext]; !ok {
		return domain.WrapError(
			domain.ErrUnsupportedFormat,
			"validate document",
			fmt.Errorf("extension %q not allowed (allowed: %s)", ext, strings.Join(v.allowedList(), ", ")),
		)
	}
	return nil
}

func (v *Validator) allowedList() []string {
	out := make([]string, 0, len(v.allowed))
	for ext := range v.allowed {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
