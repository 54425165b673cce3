package recording

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/codebuildervaibhav/meeting-recorder/internal/audio"
	"github.com/codebuildervaibhav/meeting-recorder/internal/logging"
	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

const DefaultTickInterval = time.Second

// SessionOptions configures a recording session
type SessionOptions struct {
	MeetingID      string
	StartedAt      time.Time
	Engine         audio.Engine
	Writer         Writer
	FlushThreshold int
	ChannelSize    int
	TickInterval   time.Duration
	OnTick         func(elapsedMs int64)
}

// Session owns everything a live recording holds: the chunk buffer, the
// engine subscription and the elapsed ticker. Close releases all of it.
type Session struct {
	meetingID string
	startedAt time.Time
	writer    Writer
	buffer    *ChunkBuffer

	unsubscribe func()
	stopTicker  chan struct{}
	tickerDone  chan struct{}

	inputOnce sync.Once
	closeOnce sync.Once
	closeErr  error

	mu        sync.Mutex
	finalized bool
}

// Open subscribes to the engine and starts the elapsed ticker
func Open(opts SessionOptions) (*Session, error) {
	if opts.Engine == nil || opts.Writer == nil {
		return nil, fmt.Errorf("session requires an engine and a writer")
	}
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}

	s := &Session{
		meetingID:  opts.MeetingID,
		startedAt:  opts.StartedAt,
		writer:     opts.Writer,
		buffer:     NewChunkBuffer(opts.Writer, opts.FlushThreshold, opts.ChannelSize),
		stopTicker: make(chan struct{}),
		tickerDone: make(chan struct{}),
	}
	s.unsubscribe = opts.Engine.Subscribe(s.buffer.Append)
	go s.tick(opts.TickInterval, opts.OnTick)

	logging.Info(logging.CategoryRecording, "session opened for meeting %s", s.meetingID)
	return s, nil
}

func (s *Session) MeetingID() string {
	return s.meetingID
}

func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Elapsed is the wall time since the session started
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.startedAt)
}

func (s *Session) Stats() BufferStats {
	return s.buffer.Stats()
}

// StopInput detaches the engine subscription and stops the ticker. Later
// calls are no-ops.
func (s *Session) StopInput() {
	s.inputOnce.Do(func() {
		s.unsubscribe()
		close(s.stopTicker)
		<-s.tickerDone
	})
}

// Finalize stops input, flushes what is buffered and seals the audio file
func (s *Session) Finalize(ctx context.Context) (types.AudioArtifact, error) {
	s.StopInput()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return types.AudioArtifact{}, ErrBufferFinalized
	}
	s.finalized = true

	art, err := s.buffer.Finalize(ctx)
	if err != nil {
		return types.AudioArtifact{}, fmt.Errorf("failed to finalize audio: %w", err)
	}
	stats := s.buffer.Stats()
	logging.Info(logging.CategoryRecording, "meeting %s finalized: %d samples persisted, %d lost, %dms",
		s.meetingID, stats.Persisted, stats.Lost, art.DurationMs)
	return art, nil
}

// Close tears the session down. When Finalize has not run, buffered audio is
// discarded and the partial file removed; otherwise Close waits for the file to
// be sealed. Every step runs even if an earlier one fails.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.StopInput()

		s.mu.Lock()
		finalized := s.finalized
		s.finalized = true
		s.mu.Unlock()

		if finalized {
			// a cancelled Finalize may still be sealing the file
			if _, err := s.buffer.Wait(); err != nil {
				logging.Debug(logging.CategoryRecording, "session for meeting %s closed after failed seal: %v", s.meetingID, err)
			}
			return
		}
		s.buffer.Close()
		if err := s.writer.Abort(); err != nil {
			s.closeErr = errors.Join(s.closeErr, fmt.Errorf("failed to abort audio writer: %w", err))
		}
		logging.Info(logging.CategoryRecording, "session for meeting %s discarded", s.meetingID)
	})
	return s.closeErr
}

func (s *Session) tick(interval time.Duration, onTick func(int64)) {
	defer close(s.tickerDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopTicker:
			return
		case <-ticker.C:
			if onTick != nil {
				onTick(time.Since(s.startedAt).Milliseconds())
			}
		}
	}
}
