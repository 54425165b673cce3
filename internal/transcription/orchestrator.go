package transcription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/meeting-recorder/internal/audio"
	"github.com/codebuildervaibhav/meeting-recorder/internal/logging"
	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

var ErrNoProvider = errors.New("no transcription provider configured")

// Diarizer returns speaker-attributed utterances for a WAV payload
type Diarizer interface {
	Diarize(ctx context.Context, wav []byte) ([]types.Utterance, error)
}

// Transcriber returns plain text for raw samples
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate uint32) (string, error)
}

// Store is the persistence the orchestrator needs
type Store interface {
	GetMeeting(ctx context.Context, id string) (*types.Meeting, error)
	UpdateMeeting(ctx context.Context, m *types.Meeting) error
	ReplaceSegments(ctx context.Context, meetingID string, segments []types.MeetingSegment) error
}

// AudioSource loads the stored recording of a meeting
type AudioSource interface {
	LoadMeetingAudio(meetingID string) ([]float32, uint32, error)
}

// Result is the outcome of a processing run
type Result struct {
	Meeting  *types.Meeting
	Segments []types.MeetingSegment
}

// Orchestrator turns a stored recording into transcript segments. A diarizer
// wins over a plain transcriber when both are configured.
type Orchestrator struct {
	store       Store
	audio       AudioSource
	diarizer    Diarizer
	transcriber Transcriber
	now         func() time.Time
}

// NewOrchestrator creates an orchestrator; diarizer and transcriber may be nil
func NewOrchestrator(store Store, src AudioSource, diarizer Diarizer, transcriber Transcriber) *Orchestrator {
	return &Orchestrator{
		store:       store,
		audio:       src,
		diarizer:    diarizer,
		transcriber: transcriber,
		now:         time.Now,
	}
}

// HasProvider reports whether any transcription backend is configured
func (o *Orchestrator) HasProvider() bool {
	return o.diarizer != nil || o.transcriber != nil
}

// Process transcribes the meeting's stored audio, replaces its segments and
// marks it completed. On failure the meeting is marked failed and the original
// error is returned.
func (o *Orchestrator) Process(ctx context.Context, meetingID string) (*Result, error) {
	m, err := o.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if !types.CanTransition(m.Status, types.StatusCompleted) {
		return nil, fmt.Errorf("cannot process meeting in status %q: %w", m.Status, types.ErrInvalidTransition)
	}

	started := o.now()
	segments, err := o.buildSegments(ctx, m)
	if err == nil {
		err = o.store.ReplaceSegments(ctx, m.ID, segments)
	}
	if err == nil {
		m.Status = types.StatusCompleted
		m.UpdatedAt = o.now()
		err = o.store.UpdateMeeting(ctx, m)
	}
	if err != nil {
		o.markFailed(ctx, m, err)
		return &Result{Meeting: m}, err
	}

	logging.Info(logging.CategoryTranscribe, "meeting %s completed: %d segments in %s",
		m.ID, len(segments), o.now().Sub(started).Round(time.Millisecond))
	return &Result{Meeting: m, Segments: segments}, nil
}

func (o *Orchestrator) buildSegments(ctx context.Context, m *types.Meeting) ([]types.MeetingSegment, error) {
	if !o.HasProvider() {
		return nil, ErrNoProvider
	}

	samples, rate, err := o.audio.LoadMeetingAudio(m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load meeting audio: %w", err)
	}
	now := o.now()

	if o.diarizer != nil {
		utterances, err := o.diarizer.Diarize(ctx, audio.EncodeWAV(samples, rate))
		if err != nil {
			return nil, fmt.Errorf("diarization failed: %w", err)
		}
		segments := make([]types.MeetingSegment, 0, len(utterances))
		for _, u := range utterances {
			segments = append(segments, utteranceSegment(m.ID, u, now))
		}
		return segments, nil
	}

	text, err := o.transcriber.Transcribe(ctx, samples, rate)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	endMs := audio.DurationMs(int64(len(samples)), rate)
	if m.DurationMs != nil {
		endMs = *m.DurationMs
	}
	return []types.MeetingSegment{{
		ID:        uuid.New().String(),
		MeetingID: m.ID,
		Text:      strings.TrimSpace(text),
		StartMs:   0,
		EndMs:     endMs,
		CreatedAt: now,
	}}, nil
}

func utteranceSegment(meetingID string, u types.Utterance, now time.Time) types.MeetingSegment {
	end := u.EndMs
	if end < u.StartMs {
		end = u.StartMs
	}
	return types.MeetingSegment{
		ID:          uuid.New().String(),
		MeetingID:   meetingID,
		SpeakerID:   types.StringPtr(u.SpeakerLabel),
		SpeakerName: types.StringPtr(u.SpeakerLabel),
		Text:        u.Text,
		StartMs:     u.StartMs,
		EndMs:       end,
		CreatedAt:   now,
	}
}

// markFailed persists the failed status; a second failure is only logged
func (o *Orchestrator) markFailed(ctx context.Context, m *types.Meeting, cause error) {
	logging.Error(logging.CategoryTranscribe, "meeting %s failed: %v", m.ID, cause)
	m.Status = types.StatusFailed
	m.UpdatedAt = o.now()
	if err := o.store.UpdateMeeting(context.WithoutCancel(ctx), m); err != nil {
		logging.Warn(logging.CategoryTranscribe, "could not mark meeting %s failed: %v", m.ID, err)
	}
}
