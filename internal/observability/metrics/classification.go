package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// ClassificationMetrics records pipeline outcomes. It satisfies
// ports.ClassificationObserver.
type ClassificationMetrics struct {
	service string

	resultsTotal       *prometheus.CounterVec
	duration           *prometheus.HistogramVec
	contentConfidence  *prometheus.HistogramVec
	extractionFailures *prometheus.CounterVec
	languageRejections *prometheus.CounterVec
	poolWait           prometheus.Histogram
	breakerState       *prometheus.GaugeVec
}

func NewClassificationMetrics(service string, registerer prometheus.Registerer) *ClassificationMetrics {
	m := &ClassificationMetrics{
		service: service,
		resultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "classification",
				Name:      "results_total",
				Help:      "Classification results by label and deciding method.",
			},
			[]string{"service", "label", "method"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "classification",
				Name:      "duration_seconds",
				Help:      "End-to-end classification duration by method.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"service", "method"},
		),
		contentConfidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "classification",
				Name:      "content_confidence",
				Help:      "Confidence of content signals by strategy.",
				Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			},
			[]string{"service", "source"},
		),
		extractionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "classification",
				Name:      "extraction_failures_total",
				Help:      "Text extraction failures by format.",
			},
			[]string{"service", "format"},
		),
		languageRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "classification",
				Name:      "language_rejections_total",
				Help:      "Documents rejected by the language gate, by detected language.",
			},
			[]string{"service", "language"},
		),
		poolWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "extraction",
				Name:        "pool_wait_seconds",
				Help:        "Time spent waiting for a free extraction slot.",
				Buckets:     []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
				ConstLabels: prometheus.Labels{"service": service},
			},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "resilience",
				Name:      "circuit_breaker_open",
				Help:      "1 while the breaker for an operation is not closed.",
			},
			[]string{"service", "operation"},
		),
	}
	registerer.MustRegister(
		m.resultsTotal,
		m.duration,
		m.contentConfidence,
		m.extractionFailures,
		m.languageRejections,
		m.poolWait,
		m.breakerState,
	)
	return m
}

func (m *ClassificationMetrics) ObserveResult(result domain.ClassificationResult, duration time.Duration) {
	method := string(result.Method)
	if method == "" {
		method = string(domain.MethodError)
	}
	m.resultsTotal.WithLabelValues(m.service, string(result.Label), method).Inc()
	m.duration.WithLabelValues(m.service, method).Observe(duration.Seconds())
}

func (m *ClassificationMetrics) ObserveExtractionFailure(format string) {
	if format == "" {
		format = "none"
	}
	m.extractionFailures.WithLabelValues(m.service, format).Inc()
}

func (m *ClassificationMetrics) ObserveLanguageRejection(language string) {
	if language == "" {
		language = "unknown"
	}
	m.languageRejections.WithLabelValues(m.service, language).Inc()
}

func (m *ClassificationMetrics) ObserveContentSignal(signal domain.Signal) {
	m.contentConfidence.WithLabelValues(m.service, string(signal.Source)).Observe(signal.Confidence)
}

func (m *ClassificationMetrics) ObservePoolWait(wait time.Duration) {
	m.poolWait.Observe(wait.Seconds())
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *ClassificationMetrics) ObserveBreakerState(operation, _, to string) {
	open := 0.0
	if to != "closed" {
		open = 1
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(open)
}
