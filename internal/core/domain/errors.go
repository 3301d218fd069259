package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyInput               = errors.New("empty input")
	ErrOversizedInput           = errors.New("oversized input")
	ErrUnsupportedFormat        = errors.New("unsupported format")
	ErrExtractionFailed         = errors.New("extraction failed")
	ErrUnsupportedLanguage      = errors.New("unsupported language")
	ErrModelNotLoaded           = errors.New("model not loaded")
	ErrModelLoad                = errors.New("model load error")
	ErrInsufficientTrainingData = errors.New("insufficient training data")

	ErrJobNotFound  = errors.New("job not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTemporary    = errors.New("temporary failure")
)

// Messages returned to callers. Internal error details stay in the logs.
const (
	MsgEmptyFile           = "Empty File"
	MsgNoFileProvided      = "No file provided"
	MsgEnglishOnly         = "Document classifier only supports English at this time"
	MsgInternalClassifying = "Internal classification error"
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IsAdmissionError reports whether err rejected the document before any
// extraction or inference work started.
func IsAdmissionError(err error) bool {
	return IsKind(err, ErrEmptyInput) || IsKind(err, ErrOversizedInput) || IsKind(err, ErrUnsupportedFormat)
}
