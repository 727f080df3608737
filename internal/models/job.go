package models

import "time"

// JobStatus represents the status of an analysis job.
type JobStatus string

const (
	JobStatusUploading JobStatus = "uploading"
	JobStatusAnalyzing JobStatus = "analyzing"
	JobStatusComplete  JobStatus = "complete"
	JobStatusError     JobStatus = "error"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// Job tracks one upload-and-analyze round trip.
type Job struct {
	ID          string     `json:"id"`
	FileID      string     `json:"fileId"`
	FileName    string     `json:"fileName"`
	Status      JobStatus  `json:"status"`
	Progress    float64    `json:"progress"` // 0-100
	Stage       string     `json:"stage"`
	BytesSent   int64      `json:"bytesSent"`
	TotalBytes  int64      `json:"totalBytes"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
