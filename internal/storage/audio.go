package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/codebuildervaibhav/meeting-recorder/internal/audio"
	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

var (
	ErrOutsideAudioDir = errors.New("path is outside the meeting audio directory")
	ErrWriterClosed    = errors.New("audio writer already finalized")
)

// AudioStore manages per-meeting WAV files under one directory
type AudioStore struct {
	dir string
}

// NewAudioStore creates the audio directory if needed
func NewAudioStore(dir string) (*AudioStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve audio directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}
	return &AudioStore{dir: abs}, nil
}

// Dir returns the managed directory
func (s *AudioStore) Dir() string {
	return s.dir
}

// PathFor returns the WAV path used for a meeting id
func (s *AudioStore) PathFor(meetingID string) string {
	return filepath.Join(s.dir, SanitizeID(meetingID)+".wav")
}

// StartWriter opens a new WAV file for the meeting, truncating any previous one
func (s *AudioStore) StartWriter(meetingID string, sampleRate uint32) (*AudioWriter, error) {
	if sampleRate == 0 {
		return nil, fmt.Errorf("failed to start audio writer: sample rate is zero")
	}
	path := s.PathFor(meetingID)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio file: %w", err)
	}
	if err := audio.WriteWAVHeader(f, sampleRate, 0); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write wav header: %w", err)
	}
	return &AudioWriter{file: f, path: path, sampleRate: sampleRate}, nil
}

// LoadMeetingAudio reads the stored recording for a meeting
func (s *AudioStore) LoadMeetingAudio(meetingID string) ([]float32, uint32, error) {
	data, err := os.ReadFile(s.PathFor(meetingID))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read meeting audio: %w", err)
	}
	samples, rate, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode meeting audio: %w", err)
	}
	return samples, rate, nil
}

// Artifact describes the sealed recording stored for a meeting
func (s *AudioStore) Artifact(meetingID string) (types.AudioArtifact, error) {
	samples, rate, err := s.LoadMeetingAudio(meetingID)
	if err != nil {
		return types.AudioArtifact{}, err
	}
	return types.AudioArtifact{
		FilePath:   s.PathFor(meetingID),
		DurationMs: audio.DurationMs(int64(len(samples)), rate),
	}, nil
}

// DeleteAudio removes a recording. Paths outside the managed directory are refused
// and a missing file is not an error.
func (s *AudioStore) DeleteAudio(path string) error {
	if !s.Contains(path) {
		return fmt.Errorf("failed to delete %s: %w", path, ErrOutsideAudioDir)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete audio: %w", err)
	}
	return nil
}

// Contains reports whether path resolves to a file inside the managed directory
func (s *AudioStore) Contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(s.dir, abs)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// SanitizeID keeps ASCII letters, digits, '-' and '_' so ids are safe file names
func SanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "meeting"
	}
	return b.String()
}

// AudioWriter appends PCM samples to a WAV file and patches its header on Finalize
type AudioWriter struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	sampleRate uint32
	samples    int64
	scratch    []byte
	closed     bool
}

// Path returns the file being written
func (w *AudioWriter) Path() string {
	return w.path
}

// AppendAudioChunk converts and writes samples. Non-finite samples are skipped.
func (w *AudioWriter) AppendAudioChunk(samples []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	buf, n := audio.AppendPCM16(w.scratch[:0], samples)
	w.scratch = buf
	if _, err := w.file.Write(buf); err != nil {
		return fmt.Errorf("failed to write audio chunk: %w", err)
	}
	w.samples += int64(n)
	return nil
}

// Finalize seals the WAV file and reports its path and duration
func (w *AudioWriter) Finalize() (types.AudioArtifact, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return types.AudioArtifact{}, ErrWriterClosed
	}
	w.closed = true

	dataBytes := uint32(w.samples * 2)
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		w.file.Close()
		return types.AudioArtifact{}, fmt.Errorf("failed to seek audio file: %w", err)
	}
	if err := audio.WriteWAVHeader(w.file, w.sampleRate, dataBytes); err != nil {
		w.file.Close()
		return types.AudioArtifact{}, fmt.Errorf("failed to patch wav header: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return types.AudioArtifact{}, fmt.Errorf("failed to sync audio file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return types.AudioArtifact{}, fmt.Errorf("failed to close audio file: %w", err)
	}

	return types.AudioArtifact{
		FilePath:   w.path,
		DurationMs: audio.DurationMs(w.samples, w.sampleRate),
	}, nil
}

// Abort closes and removes a file that will never be finalized
func (w *AudioWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.file.Close()
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove aborted audio: %w", err)
	}
	return nil
}

// Samples returns how many samples have been written so far
func (w *AudioWriter) Samples() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.samples
}
