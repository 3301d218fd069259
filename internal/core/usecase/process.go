package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
)

// ProcessJobUseCase classifies a stored upload and records the outcome. The
// stored bytes are deleted once a result has been saved.
type ProcessJobUseCase struct {
	repo       ports.JobRepository
	storage    ports.ObjectStorage
	classifier ports.DocumentClassifier
}

func NewProcessJobUseCase(
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	classifier ports.DocumentClassifier,
) *ProcessJobUseCase {
	return &ProcessJobUseCase{
		repo:       repo,
		storage:    storage,
		classifier: classifier,
	}
}

func (uc *ProcessJobUseCase) ProcessByID(ctx context.Context, jobID string) error {
	if err := uc.markStatus(ctx, jobID, domain.JobStatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	job, result, err := uc.classifyJob(ctx, jobID)
	if err != nil {
		if failErr := uc.markFailed(ctx, jobID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveResult(ctx, job.ID, result); err != nil {
		err = fmt.Errorf("save result: %w", err)
		if failErr := uc.markFailed(ctx, jobID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.storage.Delete(ctx, job.StoragePath); err != nil {
		slog.Warn("job_storage_cleanup_failed", "job_id", job.ID, "error", err)
	}

	// A result that carries an error (for example unsupported language) is
	// still a completed job; the reason stays on the result.
	if err := uc.markStatus(ctx, jobID, domain.JobStatusDone, result.Error); err != nil {
		return fmt.Errorf("set status=done: %w", err)
	}
	return nil
}

func (uc *ProcessJobUseCase) classifyJob(ctx context.Context, jobID string) (*domain.ClassificationJob, domain.ClassificationResult, error) {
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, domain.ClassificationResult{}, fmt.Errorf("fetch job by id: %w", err)
	}

	data, err := uc.readUpload(ctx, job)
	if err != nil {
		return nil, domain.ClassificationResult{}, err
	}

	// Admission errors are already reflected in the returned result.
	result, _ := uc.classifier.Classify(ctx, domain.NewDocument(job.Filename, data))
	return job, result, nil
}

func (uc *ProcessJobUseCase) readUpload(ctx context.Context, job *domain.ClassificationJob) ([]byte, error) {
	reader, err := uc.storage.Open(ctx, job.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open stored upload: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read stored upload: %w", err)
	}
	return data, nil
}

func (uc *ProcessJobUseCase) markStatus(ctx context.Context, jobID string, status domain.JobStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, jobID, status, errMessage)
}

func (uc *ProcessJobUseCase) markFailed(ctx context.Context, jobID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, jobID, domain.JobStatusFailed, processErr.Error())
}
