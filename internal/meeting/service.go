package meeting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/meeting-recorder/internal/audio"
	"github.com/codebuildervaibhav/meeting-recorder/internal/logging"
	"github.com/codebuildervaibhav/meeting-recorder/internal/recording"
	"github.com/codebuildervaibhav/meeting-recorder/internal/summary"
	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

// LoadLimit is how many meetings LoadMeetings pulls into state
const LoadLimit = 100

var (
	ErrAlreadyRecording  = errors.New("a recording is already in progress")
	ErrNotRecording      = errors.New("no recording in progress")
	ErrMeetingRecording  = errors.New("meeting is still recording")
	ErrAlreadyProcessing = errors.New("meeting is already being processed")
	ErrNoSummarizer      = errors.New("summary generation is not configured")
	ErrEmptySpeakerName  = errors.New("speaker name must not be empty")
)

// Store is the durable meeting store
type Store interface {
	CreateMeeting(ctx context.Context, m *types.Meeting) error
	UpdateMeeting(ctx context.Context, m *types.Meeting) error
	DeleteMeeting(ctx context.Context, id string) error
	GetMeeting(ctx context.Context, id string) (*types.Meeting, error)
	ListMeetings(ctx context.Context, limit, offset int) ([]*types.Meeting, error)
	ListSegments(ctx context.Context, meetingID string) ([]types.MeetingSegment, error)
	CreateSegmentsBatch(ctx context.Context, segments []types.MeetingSegment) error
	ReplaceSegments(ctx context.Context, meetingID string, segments []types.MeetingSegment) error
	RenameSpeaker(ctx context.Context, meetingID, speakerID, newName string) error
}

// AudioStore owns per-meeting audio files
type AudioStore interface {
	StartWriter(meetingID string, sampleRate uint32) (recording.Writer, error)
	LoadMeetingAudio(meetingID string) ([]float32, uint32, error)
	Artifact(meetingID string) (types.AudioArtifact, error)
	DeleteAudio(path string) error
}

// Processor runs transcription for stopped meetings
type Processor interface {
	Enqueue(meetingID string) error
	InFlight(meetingID string) bool
}

// Summarizer generates and stores a summary for a completed meeting
type Summarizer interface {
	Generate(ctx context.Context, meetingID string) (*summary.Result, error)
}

// Options tunes recording sessions
type Options struct {
	Device         string
	FlushThreshold int
	ChannelSize    int
	TickInterval   time.Duration
}

// StartOptions are per-recording overrides
type StartOptions struct {
	Title  string `json:"title"`
	Device string `json:"device"`
}

// Service drives the meeting lifecycle: recording, processing hand-off and
// the edits made afterwards.
type Service struct {
	store      Store
	audio      AudioStore
	engine     audio.Engine
	processor  Processor
	summarizer Summarizer
	state      *State
	opts       Options
	now        func() time.Time

	mu      sync.Mutex
	session *recording.Session
}

// NewService wires the lifecycle; summarizer may be nil
func NewService(store Store, files AudioStore, engine audio.Engine, processor Processor, summarizer Summarizer, opts Options) *Service {
	return &Service{
		store:      store,
		audio:      files,
		engine:     engine,
		processor:  processor,
		summarizer: summarizer,
		state:      NewState(),
		opts:       opts,
		now:        time.Now,
	}
}

// State exposes the in-memory state for subscribers
func (s *Service) State() *State {
	return s.state
}

// Snapshot returns a copy of the current state
func (s *Service) Snapshot() Snapshot {
	return s.state.Snapshot()
}

// Recording reports the active session's meeting id and buffer counters
func (s *Service) Recording() (string, recording.BufferStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return "", recording.BufferStats{}, false
	}
	return s.session.MeetingID(), s.session.Stats(), true
}

// StartRecording creates a meeting and begins capturing into it. The meeting
// shows up in state immediately; any failure removes every trace of it.
func (s *Service) StartRecording(ctx context.Context, opts StartOptions) (*types.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return nil, ErrAlreadyRecording
	}

	now := s.now().UTC()
	m := &types.Meeting{
		ID:        uuid.New().String(),
		Title:     strings.TrimSpace(opts.Title),
		StartedAt: now,
		Status:    types.StatusRecording,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if m.Title == "" {
		m.Title = "Meeting " + now.Local().Format("Jan 2, 2006 3:04 PM")
	}
	device := opts.Device
	if device == "" {
		device = s.opts.Device
	}

	var sess *recording.Session
	err := s.state.execute(ctx, command{
		scope: m.ID,
		apply: func(d *data) {
			d.putMeeting(m)
			d.activeMeetingID = m.ID
			d.isRecording = true
			d.elapsedMs = 0
		},
		remote: func(ctx context.Context) error {
			var err error
			sess, err = s.startSession(ctx, m, device)
			return err
		},
	})
	if err != nil {
		logging.Error(logging.CategoryRecording, "failed to start recording: %v", err)
		return nil, err
	}

	s.session = sess
	logging.Info(logging.CategoryRecording, "recording started: meeting %s (%s)", m.ID, m.Title)
	return m.Clone(), nil
}

// startSession runs the durable half of start. On failure it releases what it
// acquired before returning.
func (s *Service) startSession(ctx context.Context, m *types.Meeting, device string) (*recording.Session, error) {
	if err := s.store.CreateMeeting(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create meeting: %w", err)
	}

	var (
		writer recording.Writer
		sess   *recording.Session
	)
	rollback := func(cause error) error {
		bg := context.WithoutCancel(ctx)
		switch {
		case sess != nil:
			if err := sess.Close(); err != nil {
				logging.Warn(logging.CategoryRecording, "session teardown: %v", err)
			}
		case writer != nil:
			if err := writer.Abort(); err != nil {
				logging.Warn(logging.CategoryRecording, "writer abort: %v", err)
			}
		}
		if err := s.engine.StopCapture(bg); err != nil && !errors.Is(err, audio.ErrNotCapturing) {
			logging.Debug(logging.CategoryRecording, "stop capture during rollback: %v", err)
		}
		if err := s.store.DeleteMeeting(bg, m.ID); err != nil {
			logging.Warn(logging.CategoryRecording, "could not remove meeting %s after failed start: %v", m.ID, err)
		}
		return cause
	}

	rate, err := s.engine.StartCapture(ctx, device)
	if err != nil {
		return nil, rollback(fmt.Errorf("failed to start capture: %w", err))
	}

	writer, err = s.audio.StartWriter(m.ID, rate)
	if err != nil {
		return nil, rollback(fmt.Errorf("failed to start audio writer: %w", err))
	}

	sess, err = recording.Open(recording.SessionOptions{
		MeetingID:      m.ID,
		StartedAt:      m.StartedAt,
		Engine:         s.engine,
		Writer:         writer,
		FlushThreshold: s.opts.FlushThreshold,
		ChannelSize:    s.opts.ChannelSize,
		TickInterval:   s.opts.TickInterval,
		OnTick:         s.state.setElapsed,
	})
	if err != nil {
		return nil, rollback(fmt.Errorf("failed to open recording session: %w", err))
	}
	return sess, nil
}

// StopRecording finalizes the audio, moves the meeting to processing and
// queues transcription. A failure leaves the meeting where it got to.
func (s *Service) StopRecording(ctx context.Context) (*types.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session
	if sess == nil {
		return nil, ErrNotRecording
	}
	s.session = nil
	id := sess.MeetingID()

	sess.StopInput()
	s.state.update(id, func(d *data) {
		d.isRecording = false
		d.setProcessing(id, true)
	})

	m, err := s.finishRecording(ctx, sess)
	if err != nil {
		s.state.update(id, func(d *data) { d.setProcessing(id, false) })
		logging.Error(logging.CategoryRecording, "failed to stop recording %s: %v", id, err)
		return nil, err
	}
	logging.Info(logging.CategoryRecording, "recording stopped: meeting %s, %dms", id, *m.DurationMs)
	return m, nil
}

func (s *Service) finishRecording(ctx context.Context, sess *recording.Session) (*types.Meeting, error) {
	id := sess.MeetingID()
	if err := s.engine.StopCapture(ctx); err != nil {
		// the buffered audio is still good, so finalize anyway
		logging.Warn(logging.CategoryRecording, "stop capture for %s: %v", id, err)
	}

	art, err := sess.Finalize(ctx)
	if err != nil {
		return nil, errors.Join(err, sess.Close())
	}

	m, ok := s.state.Meeting(id)
	if !ok {
		if m, err = s.store.GetMeeting(ctx, id); err != nil {
			return nil, err
		}
	}
	if !types.CanTransition(m.Status, types.StatusProcessing) {
		return nil, fmt.Errorf("meeting %s is %s: %w", id, m.Status, types.ErrInvalidTransition)
	}

	now := s.now().UTC()
	m.EndedAt = &now
	m.DurationMs = &art.DurationMs
	m.AudioPath = types.StringPtr(art.FilePath)
	m.Status = types.StatusProcessing
	m.UpdatedAt = now
	s.state.update(id, func(d *data) { d.putMeeting(m) })

	if err := s.store.UpdateMeeting(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save stopped meeting: %w", err)
	}
	if err := s.processor.Enqueue(id); err != nil {
		return nil, fmt.Errorf("failed to queue transcription: %w", err)
	}
	return m, nil
}

// ProcessingDone records the outcome of a transcription job
func (s *Service) ProcessingDone(meetingID string, m *types.Meeting, segments []types.MeetingSegment, err error) {
	s.state.update(meetingID, func(d *data) {
		d.setProcessing(meetingID, false)
		if m != nil {
			if _, loaded := d.meetingByID[meetingID]; loaded {
				d.putMeeting(m)
			}
		}
		if err == nil && d.activeMeetingID == meetingID {
			d.setSegments(segments)
		}
	})
}

// RetryTranscription re-runs processing on the currently stored audio. Allowed
// for failed meetings, for processing meetings with no job running and for
// meetings whose stop failed before the store caught up.
func (s *Service) RetryTranscription(ctx context.Context, meetingID string) (*types.Meeting, error) {
	if s.processor.InFlight(meetingID) {
		return nil, ErrAlreadyProcessing
	}
	m, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	switch m.Status {
	case types.StatusProcessing:
	case types.StatusRecording:
		if id, _, ok := s.Recording(); ok && id == meetingID {
			return nil, ErrMeetingRecording
		}
		if err := s.recoverStoppedAudio(m); err != nil {
			return nil, err
		}
		fallthrough
	case types.StatusFailed:
		if !types.CanTransition(m.Status, types.StatusProcessing) {
			return nil, types.ErrInvalidTransition
		}
		m.Status = types.StatusProcessing
		m.UpdatedAt = s.now().UTC()
		if err := s.store.UpdateMeeting(ctx, m); err != nil {
			return nil, fmt.Errorf("failed to update meeting: %w", err)
		}
	default:
		return nil, fmt.Errorf("cannot retry meeting in status %q: %w", m.Status, types.ErrInvalidTransition)
	}

	s.state.update(meetingID, func(d *data) {
		d.putMeeting(m)
		d.setProcessing(meetingID, true)
	})
	if err := s.processor.Enqueue(meetingID); err != nil {
		s.state.update(meetingID, func(d *data) { d.setProcessing(meetingID, false) })
		return nil, fmt.Errorf("failed to queue transcription: %w", err)
	}
	logging.Info(logging.CategoryMeeting, "retrying transcription for meeting %s", meetingID)
	return m, nil
}

// recoverStoppedAudio fills in what a failed stop never saved, from the sealed
// recording on disk
func (s *Service) recoverStoppedAudio(m *types.Meeting) error {
	if m.AudioPath == nil || m.DurationMs == nil {
		art, err := s.audio.Artifact(m.ID)
		if err != nil {
			return fmt.Errorf("no recorded audio for meeting %s: %w", m.ID, err)
		}
		m.AudioPath = types.StringPtr(art.FilePath)
		m.DurationMs = &art.DurationMs
	}
	if m.EndedAt == nil {
		ended := m.StartedAt.Add(time.Duration(*m.DurationMs) * time.Millisecond)
		m.EndedAt = &ended
	}
	logging.Info(logging.CategoryMeeting, "recovered audio for interrupted meeting %s (%dms)", m.ID, *m.DurationMs)
	return nil
}

// GenerateSummary summarizes a completed meeting
func (s *Service) GenerateSummary(ctx context.Context, meetingID string) (*summary.Result, error) {
	if s.summarizer == nil {
		return nil, ErrNoSummarizer
	}
	res, err := s.summarizer.Generate(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	s.state.update(meetingID, func(d *data) { d.putMeeting(res.Meeting) })
	return res, nil
}

// LoadMeetings refreshes the meeting list in state from the store
func (s *Service) LoadMeetings(ctx context.Context) ([]*types.Meeting, error) {
	meetings, err := s.store.ListMeetings(ctx, LoadLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	s.state.update("", func(d *data) {
		d.meetingIDs = d.meetingIDs[:0:0]
		for _, m := range meetings {
			d.meetingByID[m.ID] = m.Clone()
			d.meetingIDs = append(d.meetingIDs, m.ID)
		}
	})
	return meetings, nil
}

// ListMeetings pages through the store newest first
func (s *Service) ListMeetings(ctx context.Context, limit, offset int) ([]*types.Meeting, error) {
	return s.store.ListMeetings(ctx, limit, offset)
}

// GetMeeting reads one meeting from the store
func (s *Service) GetMeeting(ctx context.Context, id string) (*types.Meeting, error) {
	return s.store.GetMeeting(ctx, id)
}

// LoadSegments loads a meeting's transcript into state
func (s *Service) LoadSegments(ctx context.Context, meetingID string) ([]types.MeetingSegment, error) {
	segments, err := s.store.ListSegments(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	s.state.update(meetingID, func(d *data) { d.setSegments(segments) })
	return segments, nil
}

// Segments reads a meeting's transcript without touching state
func (s *Service) Segments(ctx context.Context, meetingID string) ([]types.MeetingSegment, error) {
	if _, err := s.store.GetMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	return s.store.ListSegments(ctx, meetingID)
}

// Subscribe streams state events until cancel is called
func (s *Service) Subscribe() (<-chan Event, func()) {
	return s.state.Subscribe()
}

// SelectMeeting makes a meeting active and clears loaded segments
func (s *Service) SelectMeeting(meetingID string) {
	s.state.update(meetingID, func(d *data) {
		d.activeMeetingID = meetingID
		d.setSegments(nil)
	})
}

// UpdateTitle renames a meeting, optimistically
func (s *Service) UpdateTitle(ctx context.Context, meetingID, title string) (*types.Meeting, error) {
	m, ok := s.state.Meeting(meetingID)
	if !ok {
		var err error
		if m, err = s.store.GetMeeting(ctx, meetingID); err != nil {
			return nil, err
		}
	}
	m.Title = strings.TrimSpace(title)
	m.UpdatedAt = s.now().UTC()

	err := s.state.execute(ctx, command{
		scope:  meetingID,
		apply:  func(d *data) { d.putMeeting(m) },
		remote: func(ctx context.Context) error { return s.store.UpdateMeeting(ctx, m) },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update title: %w", err)
	}
	return m, nil
}

// DeleteMeeting removes a meeting with its segments and audio. The local
// removal is undone if the store refuses.
func (s *Service) DeleteMeeting(ctx context.Context, meetingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil && s.session.MeetingID() == meetingID {
		return ErrMeetingRecording
	}
	if s.processor.InFlight(meetingID) {
		return ErrAlreadyProcessing
	}

	m, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return err
	}

	err = s.state.execute(ctx, command{
		scope:  meetingID,
		apply:  func(d *data) { d.removeMeeting(meetingID) },
		remote: func(ctx context.Context) error { return s.store.DeleteMeeting(ctx, meetingID) },
	})
	if err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}

	if m.AudioPath != nil {
		if err := s.audio.DeleteAudio(*m.AudioPath); err != nil {
			logging.Warn(logging.CategoryMeeting, "could not remove audio for %s: %v", meetingID, err)
		}
	}
	logging.Info(logging.CategoryMeeting, "meeting %s deleted", meetingID)
	return nil
}

// RenameSpeaker renames a speaker across one meeting. The store is updated
// first; state follows only on success.
func (s *Service) RenameSpeaker(ctx context.Context, meetingID, speakerID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptySpeakerName
	}
	if err := s.store.RenameSpeaker(ctx, meetingID, speakerID, name); err != nil {
		return fmt.Errorf("failed to rename speaker: %w", err)
	}
	s.state.update(meetingID, func(d *data) {
		for _, segID := range d.segmentIDs {
			seg, ok := d.segmentByID[segID]
			if !ok || seg.MeetingID != meetingID || seg.SpeakerID == nil || *seg.SpeakerID != speakerID {
				continue
			}
			seg.SpeakerName = types.StringPtr(name)
			d.segmentByID[segID] = seg
		}
	})
	return nil
}

// Close stops an active recording, if any, keeping its audio
func (s *Service) Close(ctx context.Context) error {
	if _, err := s.StopRecording(ctx); err != nil && !errors.Is(err, ErrNotRecording) {
		return err
	}
	return nil
}
