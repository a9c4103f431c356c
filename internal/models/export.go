package models

import "time"

// ExportStatus tracks the lifecycle of an asynchronous timetable export.
type ExportStatus string

const (
	ExportStatusPending   ExportStatus = "PENDING"
	ExportStatusCompleted ExportStatus = "COMPLETED"
	ExportStatusFailed    ExportStatus = "FAILED"
)

// ExportJob describes one requested timetable export and its outcome.
type ExportJob struct {
	ID          string       `json:"id"`
	Format      string       `json:"format"`
	ClassID     string       `json:"class_id,omitempty"`
	TeacherID   string       `json:"teacher_id,omitempty"`
	TermID      string       `json:"term_id"`
	Status      ExportStatus `json:"status"`
	FilePath    string       `json:"-"`
	DownloadURL string       `json:"download_url,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}
