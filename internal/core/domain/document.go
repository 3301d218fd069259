package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Document is an uploaded file as received by the classification boundary.
// It is never mutated after construction.
type Document struct {
	Filename  string
	Data      []byte
	Extension string
}

func NewDocument(filename string, data []byte) Document {
	return Document{
		Filename:  filename,
		Data:      data,
		Extension: ExtensionOf(filename),
	}
}

// ExtensionOf returns the lower-cased extension of filename without the dot.
func ExtensionOf(filename string) string {
	ext := filepath.Ext(strings.TrimSpace(filename))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

type ExtractionMetadata struct {
	PageCount      int    `json:"page_count,omitempty"`
	Encrypted      bool   `json:"encrypted,omitempty"`
	Title          string `json:"title,omitempty"`
	Author         string `json:"author,omitempty"`
	ParagraphCount int    `json:"paragraph_count,omitempty"`
	ImageFormat    string `json:"image_format,omitempty"`
	ImageWidth     int    `json:"image_width,omitempty"`
	ImageHeight    int    `json:"image_height,omitempty"`
	ColorModel     string `json:"color_model,omitempty"`
}

// ExtractionResult is what an extractor yields for one document. Empty Text
// is a valid outcome (for example an image without a text layer) and is not
// the same thing as a failed extraction, which sets Error.
type ExtractionResult struct {
	Text     string             `json:"text"`
	Metadata ExtractionMetadata `json:"metadata"`
	Error    string             `json:"error,omitempty"`
}

func (r ExtractionResult) HasText() bool {
	return strings.TrimSpace(r.Text) != ""
}

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// ClassificationJob tracks an asynchronous classification request. Only the
// outcome is persisted; the document bytes are removed once classified.
type ClassificationJob struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"-"`
	Status      JobStatus `json:"status"`
	Label       Label     `json:"predicted_class,omitempty"`
	Confidence  float64   `json:"confidence"`
	Method      Method    `json:"method,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (j *ClassificationJob) ApplyResult(result ClassificationResult) {
	j.Label = result.Label
	j.Confidence = result.Confidence
	j.Method = result.Method
	j.Error = result.Error
}
