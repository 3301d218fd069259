package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/oapi-codegen/runtime"
	"golang.org/x/time/rate"

	"github.com/kirillkom/document-classifier/internal/config"
	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
	"github.com/kirillkom/document-classifier/internal/observability/metrics"
)

const (
	serviceName         = "api"
	uploadField         = "file"
	backpressureWait    = 250 * time.Millisecond
	defaultMaxFileBytes = 10 * 1024 * 1024
)

// Dependencies are the inbound ports the router serves. Job routes are
// registered only when both Submitter and Jobs are set.
type Dependencies struct {
	Classifier ports.DocumentClassifier
	Submitter  ports.JobSubmitter
	Jobs       ports.JobReader
	Health     ports.HealthReporter
	Metrics    *metrics.HTTPServerMetrics
	Logger     *slog.Logger
}

type Router struct {
	classifier ports.DocumentClassifier
	submitter  ports.JobSubmitter
	jobs       ports.JobReader
	health     ports.HealthReporter
	metrics    *metrics.HTTPServerMetrics
	logger     *slog.Logger

	apiKey       string
	maxFileBytes int64
	rateLimitRPS float64
	rateBurst    int
	maxInFlight  int

	contract     *openapi3.T
	contractJSON []byte
}

func NewRouter(cfg config.Config, deps Dependencies) (*Router, error) {
	if deps.Classifier == nil {
		return nil, errors.New("http router requires a document classifier")
	}
	contract, contractJSON, err := loadOpenAPI(context.Background())
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxFileBytes := cfg.MaxFileBytes()
	if maxFileBytes <= 0 {
		maxFileBytes = defaultMaxFileBytes
	}
	return &Router{
		classifier:   deps.Classifier,
		submitter:    deps.Submitter,
		jobs:         deps.Jobs,
		health:       deps.Health,
		metrics:      deps.Metrics,
		logger:       logger,
		apiKey:       cfg.APIKey,
		maxFileBytes: maxFileBytes,
		rateLimitRPS: cfg.RateLimitRPS,
		rateBurst:    cfg.RateLimitBurst,
		maxInFlight:  cfg.MaxInFlightRequests,
		contract:     contract,
		contractJSON: contractJSON,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	var onReject rejectFunc
	if rt.metrics != nil {
		onReject = func(reason string) { rt.metrics.RecordRejected(serviceName, reason) }
	}

	var limiter *rate.Limiter
	if rt.rateLimitRPS > 0 {
		burst := rt.rateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rt.rateLimitRPS), burst)
	}

	protect := func(h http.HandlerFunc) http.Handler {
		var wrapped http.Handler = h
		wrapped = apiKeyMiddleware(wrapped, rt.apiKey, onReject)
		wrapped = backpressureMiddleware(wrapped, rt.maxInFlight, backpressureWait, onReject)
		wrapped = rateLimitMiddleware(wrapped, limiter, onReject)
		return wrapped
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.json", rt.openAPI)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("POST /classify_file", protect(rt.classifyFile))
	if rt.submitter != nil && rt.jobs != nil {
		mux.Handle("POST /v1/jobs", protect(rt.submitJob))
		mux.Handle("GET /v1/jobs/{job_id}", protect(rt.getJob))
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	if rt.health == nil {
		writeJSON(w, http.StatusOK, ports.Health{Status: "ok"})
		return
	}
	writeJSON(w, http.StatusOK, rt.health.Health())
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rt.contractJSON)
}

func (rt *Router) classifyFile(w http.ResponseWriter, r *http.Request) {
	var debug *bool
	if err := runtime.BindQueryParameter("form", true, false, "debug", r.URL.Query(), &debug); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid debug parameter: %v", err))
		return
	}

	filename, data, err := rt.readUpload(r)
	if err != nil {
		rt.writeUploadError(w, r, err)
		return
	}

	result, err := rt.classifier.Classify(r.Context(), domain.NewDocument(filename, data))
	if debug == nil || !*debug {
		result.Signals = nil
	}
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) submitJob(w http.ResponseWriter, r *http.Request) {
	filename, data, err := rt.readUpload(r)
	if err != nil {
		rt.writeUploadError(w, r, err)
		return
	}

	job, err := rt.submitter.Submit(r.Context(), filename, bytes.NewReader(data))
	if err != nil {
		rt.writeDomainError(w, r, "job_submit_failed", err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("job_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "job id is required")
		return
	}

	job, err := rt.jobs.GetByID(r.Context(), id)
	if err != nil {
		rt.writeDomainError(w, r, "job_lookup_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

var errNoFileProvided = errors.New(domain.MsgNoFileProvided)

// readUpload streams the multipart body and returns the first "file" part.
// At most maxFileBytes+1 bytes are read so the admission gate can still
// report an oversized upload without buffering the whole body.
func (rt *Router) readUpload(r *http.Request) (string, []byte, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return "", nil, errNoFileProvided
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return "", nil, errNoFileProvided
		}
		if err != nil {
			return "", nil, domain.WrapError(domain.ErrInvalidInput, "read multipart", err)
		}
		if part.FormName() != uploadField {
			_ = part.Close()
			continue
		}
		filename := part.FileName()
		if strings.TrimSpace(filename) == "" {
			_ = part.Close()
			return "", nil, errNoFileProvided
		}
		data, err := readPart(part, rt.maxFileBytes+1)
		if err != nil {
			return "", nil, domain.WrapError(domain.ErrInvalidInput, "read upload", err)
		}
		return filename, data, nil
	}
}

func readPart(part *multipart.Part, limit int64) ([]byte, error) {
	defer part.Close()
	return io.ReadAll(io.LimitReader(part, limit))
}

func (rt *Router) writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errNoFileProvided) {
		writeError(w, http.StatusBadRequest, domain.MsgNoFileProvided)
		return
	}
	rt.writeDomainError(w, r, "upload_read_failed", err)
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, event string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error(event, "request_id", requestIDFromContext(r.Context()), "error", err)
	}
	writeError(w, status, publicErrorMessage(err))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
