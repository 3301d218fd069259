package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
)

// SubmitJobUseCase accepts a document for asynchronous classification. The
// admission gate runs here so that invalid uploads never reach storage.
type SubmitJobUseCase struct {
	validator *Validator
	repo      ports.JobRepository
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
}

func NewSubmitJobUseCase(
	validator *Validator,
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *SubmitJobUseCase {
	return &SubmitJobUseCase{
		validator: validator,
		repo:      repo,
		storage:   storage,
		queue:     queue,
	}
}

func (uc *SubmitJobUseCase) Submit(
	ctx context.Context,
	filename string,
	body io.Reader,
) (*domain.ClassificationJob, error) {
	if err := uc.validator.CheckFormat(filename); err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(io.LimitReader(body, uc.validator.MaxBytes()+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if _, err := uc.validator.Validate(domain.NewDocument(filename, raw)); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	job := &domain.ClassificationJob{
		ID:          id,
		Filename:    filename,
		StoragePath: storageKey,
		Status:      domain.JobStatusPending,
		Label:       domain.LabelUnknown,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, job); err != nil {
		_ = uc.storage.Delete(ctx, storageKey)
		return nil, fmt.Errorf("create job record: %w", err)
	}

	if err := uc.queue.PublishJobSubmitted(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("publish job event: %w", err)
	}

	return job, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
