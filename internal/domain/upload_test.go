package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUpload(t *testing.T) {
	now := time.Now()
	upload := NewUpload("up1", "tenant1", "report.pdf", "application/pdf", 2048, now)

	assert.Equal(t, "up1", upload.ID)
	assert.Equal(t, "tenant1", upload.TenantID)
	assert.Equal(t, "report.pdf", upload.Filename)
	assert.Equal(t, "application/pdf", upload.ContentType)
	assert.Equal(t, int64(2048), upload.SizeBytes)
	assert.Equal(t, UploadStatusCompleted, upload.Status)
	assert.Equal(t, now, upload.CreatedAt)
}

func TestValidateUpload(t *testing.T) {
	now := time.Now()

	valid := func() *Upload {
		return &Upload{
			ID:          "up1",
			TenantID:    "tenant1",
			Filename:    "report.pdf",
			ContentType: "application/pdf",
			SizeBytes:   2048,
			ChunkCount:  3,
			Status:      UploadStatusCompleted,
			CreatedAt:   now,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Upload)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid upload",
			mutate:  func(u *Upload) {},
			wantErr: false,
		},
		{
			name:    "missing ID",
			mutate:  func(u *Upload) { u.ID = "" },
			wantErr: true,
			errMsg:  "ID",
		},
		{
			name:    "missing TenantID",
			mutate:  func(u *Upload) { u.TenantID = "" },
			wantErr: true,
			errMsg:  "TenantID",
		},
		{
			name:    "missing Filename",
			mutate:  func(u *Upload) { u.Filename = "" },
			wantErr: true,
			errMsg:  "Filename",
		},
		{
			name:    "negative SizeBytes",
			mutate:  func(u *Upload) { u.SizeBytes = -1 },
			wantErr: true,
			errMsg:  "SizeBytes",
		},
		{
			name:    "negative ChunkCount",
			mutate:  func(u *Upload) { u.ChunkCount = -1 },
			wantErr: true,
			errMsg:  "ChunkCount",
		},
		{
			name:    "invalid status",
			mutate:  func(u *Upload) { u.Status = "pending" },
			wantErr: true,
			errMsg:  "Status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upload := valid()
			tt.mutate(upload)
			err := ValidateUpload(upload)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
