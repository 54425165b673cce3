package types

import "time"

// Meeting status constants
const (
	StatusRecording  = "recording"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Action item priorities
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// transitions lists the allowed status edges. failed -> processing is the retry edge.
var transitions = map[string][]string{
	StatusRecording:  {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusProcessing},
}

// CanTransition reports whether a meeting may move from one status to another
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NormalizeStatus maps unknown status values read from storage to failed
func NormalizeStatus(status string) string {
	switch status {
	case StatusRecording, StatusProcessing, StatusCompleted, StatusFailed:
		return status
	default:
		return StatusFailed
	}
}

// Meeting is one recorded session
type Meeting struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	AppSource   *string    `json:"appSource"`
	StartedAt   time.Time  `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt"`
	DurationMs  *int64     `json:"durationMs"`
	Status      string     `json:"status"`
	AudioPath   *string    `json:"audioPath"`
	Summary     *string    `json:"summary"`
	ActionItems *string    `json:"actionItems"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy so snapshots never alias live state
func (m *Meeting) Clone() *Meeting {
	if m == nil {
		return nil
	}
	c := *m
	c.AppSource = cloneString(m.AppSource)
	c.AudioPath = cloneString(m.AudioPath)
	c.Summary = cloneString(m.Summary)
	c.ActionItems = cloneString(m.ActionItems)
	if m.EndedAt != nil {
		t := *m.EndedAt
		c.EndedAt = &t
	}
	if m.DurationMs != nil {
		d := *m.DurationMs
		c.DurationMs = &d
	}
	return &c
}

// MeetingSegment is one attributed span of transcript
type MeetingSegment struct {
	ID          string    `json:"id"`
	MeetingID   string    `json:"meetingId"`
	SpeakerID   *string   `json:"speakerId"`
	SpeakerName *string   `json:"speakerName"`
	Text        string    `json:"text"`
	StartMs     int64     `json:"startMs"`
	EndMs       int64     `json:"endMs"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Clone returns a deep copy of the segment
func (s MeetingSegment) Clone() MeetingSegment {
	s.SpeakerID = cloneString(s.SpeakerID)
	s.SpeakerName = cloneString(s.SpeakerName)
	return s
}

// Utterance is one speaker turn returned by a diarization provider
type Utterance struct {
	SpeakerLabel string `json:"speaker"`
	Text         string `json:"text"`
	StartMs      int64  `json:"startMs"`
	EndMs        int64  `json:"endMs"`
}

// ActionItem is a task extracted from a meeting summary
type ActionItem struct {
	Task     string  `json:"task"`
	Assignee *string `json:"assignee"`
	Priority string  `json:"priority"`
}

// AudioArtifact is the sealed recording produced at finalize
type AudioArtifact struct {
	FilePath   string `json:"filePath"`
	DurationMs int64  `json:"durationMs"`
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
