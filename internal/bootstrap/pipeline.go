package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/document-classifier/internal/config"
	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
	"github.com/kirillkom/document-classifier/internal/core/usecase"
	"github.com/kirillkom/document-classifier/internal/infrastructure/extractor/docx"
	"github.com/kirillkom/document-classifier/internal/infrastructure/extractor/imagemeta"
	"github.com/kirillkom/document-classifier/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/document-classifier/internal/infrastructure/langdetect/whatlang"
	"github.com/kirillkom/document-classifier/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/document-classifier/internal/infrastructure/ml/supervised"
	"github.com/kirillkom/document-classifier/internal/infrastructure/resilience"
	"github.com/kirillkom/document-classifier/internal/observability/metrics"
)

// Pipeline is the classification service built once per process. All of its
// parts are read-only after construction and shared across requests.
type Pipeline struct {
	Classifier *usecase.ClassifyDocumentUseCase
	Validator  *usecase.Validator
	Filenames  *usecase.FilenameClassifier
	Dispatcher *usecase.ExtractionDispatcher
	Executor   *resilience.Executor

	strategy    string
	modelLoaded bool
}

func (p *Pipeline) Health() ports.Health {
	h := ports.Health{Status: "ok", Strategy: p.strategy, ModelLoaded: p.modelLoaded}
	if p.strategy == config.StrategySemantic {
		h.BreakerState = p.Executor.State(ollama.OperationEntail)
		if h.BreakerState == "open" {
			h.Status = "degraded"
		}
	}
	if !h.ModelLoaded {
		h.Status = "degraded"
	}
	return h
}

// PipelineOptions carries process-level collaborators. A nil Registerer
// disables classification metrics.
type PipelineOptions struct {
	Logger     *slog.Logger
	Registerer prometheus.Registerer
	Service    string
}

func NewPipeline(cfg config.Config, opts PipelineOptions) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	taxonomy, err := config.LoadTaxonomy(cfg.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("load label taxonomy: %w", err)
	}

	var observer *metrics.ClassificationMetrics
	if opts.Registerer != nil {
		observer = metrics.NewClassificationMetrics(opts.Service, opts.Registerer)
	}

	executorOpts := []resilience.Option{resilience.WithPolicy(ollama.OperationEntail, resilience.SingleAttempt())}
	if observer != nil {
		executorOpts = append(executorOpts, resilience.WithStateObserver(observer.ObserveBreakerState))
	}
	executor := resilience.NewExecutor(resilienceConfig(cfg), executorOpts...)

	validator := usecase.NewValidator(cfg.MaxFileBytes(), cfg.AllowedExtensions)
	filenames := usecase.NewFilenameClassifier(keywordRules(taxonomy))
	dispatcher := usecase.NewExtractionDispatcher(
		cfg.ExtractionWorkers,
		cfg.MaxTextChars,
		pdftext.NewExtractor(),
		docx.NewExtractor(),
		imagemeta.NewExtractor(),
	)
	if observer != nil {
		dispatcher.OnSlotWait(observer.ObservePoolWait)
	}
	language := usecase.NewLanguageGate(whatlang.NewDetector(0), cfg.TargetLanguage)

	content, modelLoaded, err := contentStrategy(cfg, taxonomy, executor, logger)
	if err != nil {
		return nil, err
	}

	ucOpts := []usecase.ClassifyOption{usecase.WithLogger(logger)}
	if observer != nil {
		ucOpts = append(ucOpts, usecase.WithObserver(observer))
	}
	classifier := usecase.NewClassifyDocumentUseCase(
		validator,
		filenames,
		dispatcher,
		language,
		content,
		usecase.NewArbiter(cfg.ConfidenceThreshold),
		ucOpts...,
	)

	return &Pipeline{
		Classifier:  classifier,
		Validator:   validator,
		Filenames:   filenames,
		Dispatcher:  dispatcher,
		Executor:    executor,
		strategy:    cfg.ContentStrategy,
		modelLoaded: modelLoaded,
	}, nil
}

// contentStrategy builds the configured content classifier. A supervised
// model that cannot be loaded leaves the service running filename-only.
func contentStrategy(
	cfg config.Config,
	taxonomy config.Taxonomy,
	executor *resilience.Executor,
	logger *slog.Logger,
) (ports.ContentClassifier, bool, error) {
	switch cfg.ContentStrategy {
	case config.StrategySupervised, "":
		paths := supervised.PathsIn(cfg.ModelDir)
		model, err := supervised.LoadPaths(paths)
		if err != nil {
			logger.Warn("model_load_failed", "model_dir", cfg.ModelDir, "error", err)
			return supervised.NewClassifier(nil), false, nil
		}
		logger.Info("model_loaded", "model_dir", cfg.ModelDir, "classes", model.Classes())
		return supervised.NewClassifier(model), true, nil
	case config.StrategySemantic:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaModel, time.Duration(cfg.OllamaTimeoutSeconds)*time.Second)
		return ollama.NewZeroShotClassifier(client, executor, ollama.ZeroShotOptions{
			Candidates:         candidates(taxonomy),
			HypothesisTemplate: cfg.HypothesisTemplate,
			PrefixRunes:        cfg.ZeroShotPrefixRunes,
		}), true, nil
	default:
		return nil, false, fmt.Errorf("unknown content strategy %q", cfg.ContentStrategy)
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.Breaker.Enabled = cfg.BreakerEnabled
	if cfg.BreakerMinRequests > 0 {
		rc.Breaker.MinRequests = uint32(cfg.BreakerMinRequests)
	}
	if cfg.BreakerFailureRatio > 0 {
		rc.Breaker.FailureRatio = cfg.BreakerFailureRatio
	}
	if cfg.BreakerOpenTimeoutSecs > 0 {
		rc.Breaker.OpenTimeout = time.Duration(cfg.BreakerOpenTimeoutSecs) * time.Second
	}
	if cfg.PublishRetryMaxAttempts > 0 {
		rc.Retry.MaxAttempts = cfg.PublishRetryMaxAttempts
	}
	return rc
}

func keywordRules(t config.Taxonomy) []usecase.KeywordRule {
	if t.Empty() {
		return nil
	}
	rules := make([]usecase.KeywordRule, 0, len(t.Labels))
	for _, spec := range t.Labels {
		keywords := spec.Keywords
		if len(keywords) == 0 {
			keywords = []string{spec.Name}
		}
		rules = append(rules, usecase.KeywordRule{Label: domain.Label(spec.Name), Keywords: keywords})
	}
	return rules
}

func candidates(t config.Taxonomy) []ollama.Candidate {
	if t.Empty() {
		return nil
	}
	defaults := make(map[domain.Label]string)
	for _, c := range ollama.DefaultCandidates() {
		defaults[c.Label] = c.Description
	}
	out := make([]ollama.Candidate, 0, len(t.Labels))
	for _, spec := range t.Labels {
		label := domain.Label(spec.Name)
		description := spec.Description
		if description == "" {
			description = defaults[label]
		}
		out = append(out, ollama.Candidate{Label: label, Description: description})
	}
	return out
}
