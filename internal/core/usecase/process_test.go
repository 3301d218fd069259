package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

type documentClassifierFake struct {
	result domain.ClassificationResult
	err    error
	calls  int
}

func (f *documentClassifierFake) Classify(context.Context, domain.Document) (domain.ClassificationResult, error) {
	f.calls++
	return f.result, f.err
}

func storedJob(storage *storageFake) *jobRepoFake {
	storage.objects["job-1_invoice.pdf"] = []byte("%PDF")
	return &jobRepoFake{job: &domain.ClassificationJob{
		ID:          "job-1",
		Filename:    "invoice.pdf",
		StoragePath: "job-1_invoice.pdf",
		Status:      domain.JobStatusPending,
	}}
}

func TestProcessByIDSuccess(t *testing.T) {
	storage := newStorageFake()
	repo := storedJob(storage)
	classifier := &documentClassifierFake{result: domain.ClassificationResult{
		Filename: "invoice.pdf", Label: domain.LabelInvoice, Confidence: 0.91, Method: domain.MethodContent,
	}}
	uc := NewProcessJobUseCase(repo, storage, classifier)

	if err := uc.ProcessByID(context.Background(), "job-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected 2 status calls, got %d", len(repo.statusCalls))
	}
	if repo.statusCalls[0].status != domain.JobStatusProcessing || repo.statusCalls[1].status != domain.JobStatusDone {
		t.Fatalf("unexpected status sequence: %+v", repo.statusCalls)
	}
	if repo.saved == nil || repo.saved.Label != domain.LabelInvoice {
		t.Fatalf("expected saved invoice result, got %+v", repo.saved)
	}
	if len(storage.deleted) != 1 || storage.deleted[0] != "job-1_invoice.pdf" {
		t.Fatalf("expected stored bytes to be deleted, got %v", storage.deleted)
	}
}

func TestProcessByIDKeepsResultError(t *testing.T) {
	storage := newStorageFake()
	repo := storedJob(storage)
	classifier := &documentClassifierFake{result: domain.ErrorResult("invoice.pdf", domain.MsgEnglishOnly)}
	uc := NewProcessJobUseCase(repo, storage, classifier)

	if err := uc.ProcessByID(context.Background(), "job-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	last := repo.statusCalls[len(repo.statusCalls)-1]
	if last.status != domain.JobStatusDone || last.errMsg != domain.MsgEnglishOnly {
		t.Fatalf("expected done status carrying the result error, got %+v", last)
	}
}

func TestProcessByIDMarksFailedWhenUploadMissing(t *testing.T) {
	storage := newStorageFake()
	repo := storedJob(storage)
	storage.openErr = errors.New("no such file")
	classifier := &documentClassifierFake{}
	uc := NewProcessJobUseCase(repo, storage, classifier)

	if err := uc.ProcessByID(context.Background(), "job-1"); err == nil {
		t.Fatalf("expected error")
	}
	if classifier.calls != 0 {
		t.Fatalf("classifier must not run without bytes")
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1].status != domain.JobStatusFailed {
		t.Fatalf("expected final failed status, got %+v", repo.statusCalls)
	}
}

func TestProcessByIDMarksFailedOnSaveError(t *testing.T) {
	storage := newStorageFake()
	repo := storedJob(storage)
	repo.saveErr = errors.New("db down")
	uc := NewProcessJobUseCase(repo, storage, &documentClassifierFake{result: domain.ClassificationResult{Label: domain.LabelInvoice}})

	if err := uc.ProcessByID(context.Background(), "job-1"); err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1].status != domain.JobStatusFailed {
		t.Fatalf("expected final failed status, got %+v", repo.statusCalls)
	}
	if len(storage.deleted) != 0 {
		t.Fatalf("bytes must be kept when the result was not saved")
	}
}
