package domain

import (
	"fmt"
	"time"
)

// UploadStatus represents the outcome of a document ingestion
type UploadStatus string

const (
	UploadStatusCompleted UploadStatus = "completed"
	UploadStatusFailed    UploadStatus = "failed"
)

// Upload records one document ingestion for a tenant
type Upload struct {
	ID          string
	TenantID    string
	Filename    string
	ContentType string
	SizeBytes   int64
	ChunkCount  int
	Status      UploadStatus
	Error       string
	StorageKey  string // object key of the archived original, empty when not archived
	CreatedAt   time.Time
}

// NewUpload creates a new Upload instance
func NewUpload(id, tenantID, filename, contentType string, sizeBytes int64, createdAt time.Time) *Upload {
	return &Upload{
		ID:          id,
		TenantID:    tenantID,
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
		Status:      UploadStatusCompleted,
		CreatedAt:   createdAt,
	}
}

// ValidateUpload validates an Upload instance
func ValidateUpload(u *Upload) error {
	if u == nil {
		return fmt.Errorf("upload cannot be nil")
	}

	if u.ID == "" {
		return fmt.Errorf("upload ID is required")
	}

	if u.TenantID == "" {
		return fmt.Errorf("upload TenantID is required")
	}

	if u.Filename == "" {
		return fmt.Errorf("upload Filename is required")
	}

	if u.SizeBytes < 0 {
		return fmt.Errorf("upload SizeBytes cannot be negative")
	}

	if u.ChunkCount < 0 {
		return fmt.Errorf("upload ChunkCount cannot be negative")
	}

	if !isValidUploadStatus(u.Status) {
		return fmt.Errorf("upload Status is invalid: %s", u.Status)
	}

	return nil
}

// isValidUploadStatus checks if an UploadStatus is valid
func isValidUploadStatus(s UploadStatus) bool {
	switch s {
	case UploadStatusCompleted, UploadStatusFailed:
		return true
	}
	return false
}
