package queue

import (
	"time"

	"github.com/google/uuid"
)

// Job statuses
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job represents a transcription run for one meeting
type Job struct {
	ID         string    `json:"id"`
	MeetingID  string    `json:"meetingId"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ExportURL  string    `json:"exportUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// NewJob creates a new job with default values
func NewJob(meetingID string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		MeetingID: meetingID,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}
}
