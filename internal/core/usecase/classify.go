package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
)

type ClassifyDocumentUseCase struct {
	validator  *Validator
	byName     *FilenameClassifier
	dispatcher *ExtractionDispatcher
	language   *LanguageGate
	content    ports.ContentClassifier
	arbiter    *Arbiter
	observer   ports.ClassificationObserver
	logger     *slog.Logger
}

type ClassifyOption func(*ClassifyDocumentUseCase)

func WithObserver(observer ports.ClassificationObserver) ClassifyOption {
	return func(uc *ClassifyDocumentUseCase) { uc.observer = observer }
}

func WithLogger(logger *slog.Logger) ClassifyOption {
	return func(uc *ClassifyDocumentUseCase) {
		if logger != nil {
			uc.logger = logger
		}
	}
}

// NewClassifyDocumentUseCase wires the pipeline. content may be nil, in which
// case every document is classified from its filename alone.
func NewClassifyDocumentUseCase(
	validator *Validator,
	byName *FilenameClassifier,
	dispatcher *ExtractionDispatcher,
	language *LanguageGate,
	content ports.ContentClassifier,
	arbiter *Arbiter,
	opts ...ClassifyOption,
) *ClassifyDocumentUseCase {
	uc := &ClassifyDocumentUseCase{
		validator:  validator,
		byName:     byName,
		dispatcher: dispatcher,
		language:   language,
		content:    content,
		arbiter:    arbiter,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *ClassifyDocumentUseCase) Classify(ctx context.Context, doc domain.Document) (result domain.ClassificationResult, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error("classification_panic", "filename", doc.Filename, "panic", fmt.Sprint(r))
			result = domain.ErrorResult(doc.Filename, domain.MsgInternalClassifying)
			err = nil
		}
		if uc.observer != nil {
			uc.observer.ObserveResult(result, time.Since(start))
		}
	}()

	if _, err := uc.validator.Validate(doc); err != nil {
		uc.logger.Warn("document_rejected", "filename", doc.Filename, "size", len(doc.Data), "error", err)
		return domain.ErrorResult(doc.Filename, uc.admissionMessage(err)), err
	}

	byName := uc.byName.Classify(doc.Filename)
	byContent, terminal := uc.contentSignal(ctx, doc)
	if terminal != nil {
		return *terminal, nil
	}

	result = uc.arbiter.Decide(doc.Filename, byName, byContent)
	uc.logger.Info("document_classified",
		"filename", doc.Filename,
		"label", result.Label,
		"confidence", result.Confidence,
		"method", result.Method,
		"filename_label", byName.Label,
		"content_label", byContent.Label,
	)
	return result, nil
}

// contentSignal runs extraction, the language gate and the content strategy.
// A non-nil terminal result ends the request (unsupported language); every
// other failure degrades to an unknown content signal.
func (uc *ClassifyDocumentUseCase) contentSignal(ctx context.Context, doc domain.Document) (domain.Signal, *domain.ClassificationResult) {
	source := domain.SourceSupervised
	if uc.content != nil {
		source = uc.content.Source()
	}
	unknown := domain.UnknownSignal(source)

	extracted, err := uc.dispatcher.Extract(ctx, doc)
	if err != nil {
		uc.logger.Warn("extraction_failed", "filename", doc.Filename, "format", doc.Extension, "error", err)
		if uc.observer != nil {
			uc.observer.ObserveExtractionFailure(doc.Extension)
		}
		return unknown, nil
	}
	if !extracted.HasText() {
		uc.logger.Debug("no_extractable_text", "filename", doc.Filename, "format", doc.Extension)
		return unknown, nil
	}

	lang, err := uc.language.Check(extracted.Text)
	if err != nil {
		uc.logger.Info("unsupported_language", "filename", doc.Filename, "language", lang)
		if uc.observer != nil {
			uc.observer.ObserveLanguageRejection(lang)
		}
		terminal := domain.ErrorResult(doc.Filename, domain.MsgEnglishOnly)
		return unknown, &terminal
	}

	if uc.content == nil {
		return unknown, nil
	}
	signal, err := uc.content.Classify(ctx, extracted.Text)
	if err != nil {
		level := slog.LevelWarn
		if domain.IsKind(err, domain.ErrModelNotLoaded) {
			level = slog.LevelDebug
		}
		uc.logger.Log(ctx, level, "content_classification_failed", "filename", doc.Filename, "source", source, "error", err)
		return unknown, nil
	}
	signal = signal.Normalized()
	if uc.observer != nil {
		uc.observer.ObserveContentSignal(signal)
	}
	return signal, nil
}

func (uc *ClassifyDocumentUseCase) admissionMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrEmptyInput):
		return domain.MsgEmptyFile
	case domain.IsKind(err, domain.ErrOversizedInput):
		return fmt.Sprintf("File too large (max %dMB)", uc.validator.MaxBytes()/(1024*1024))
	case domain.IsKind(err, domain.ErrUnsupportedFormat):
		return "Unsupported file type. Allowed: " + strings.Join(uc.validator.allowedList(), ", ")
	default:
		return domain.MsgInternalClassifying
	}
}
