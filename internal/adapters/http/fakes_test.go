package httpadapter

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/document-classifier/internal/config"
	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
)

type classifierFake struct {
	result domain.ClassificationResult
	err    error
	calls  []domain.Document
}

func (f *classifierFake) Classify(_ context.Context, doc domain.Document) (domain.ClassificationResult, error) {
	f.calls = append(f.calls, doc)
	if f.err != nil {
		return domain.ErrorResult(doc.Filename, "rejected"), f.err
	}
	result := f.result
	result.Filename = doc.Filename
	return result, nil
}

type submitterFake struct {
	err      error
	received []byte
}

func (f *submitterFake) Submit(_ context.Context, filename string, body io.Reader) (*domain.ClassificationJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.received = raw
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	return &domain.ClassificationJob{
		ID:        "job-1",
		Filename:  filename,
		Status:    domain.JobStatusPending,
		Label:     domain.LabelUnknown,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

type jobReaderFake struct {
	job *domain.ClassificationJob
	err error
}

func (f jobReaderFake) GetByID(context.Context, string) (*domain.ClassificationJob, error) {
	return f.job, f.err
}

type healthFake struct{ health ports.Health }

func (f healthFake) Health() ports.Health { return f.health }

func newTestHandler(t *testing.T, cfg config.Config, deps Dependencies) http.Handler {
	t.Helper()
	if deps.Classifier == nil {
		deps.Classifier = &classifierFake{}
	}
	rt, err := NewRouter(cfg, deps)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return rt.Handler()
}

func multipartRequest(t *testing.T, target, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
