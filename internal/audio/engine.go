package audio

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrAlreadyCapturing = errors.New("capture already running")
	ErrNotCapturing     = errors.New("capture not running")
)

// ChunkHandler receives one batch of mono float samples from the capture device
type ChunkHandler func(samples []float32)

// DeviceInfo describes an input device
type DeviceInfo struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
}

// Engine is the native recording engine. Chunks are delivered to subscribers
// on the capture thread while capturing.
type Engine interface {
	Devices() ([]DeviceInfo, error)
	StartCapture(ctx context.Context, device string) (sampleRate uint32, err error)
	StopCapture(ctx context.Context) error
	Subscribe(h ChunkHandler) (unsubscribe func())
}

// subscribers is the handler registry shared by engine implementations
type subscribers struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]ChunkHandler
}

func (s *subscribers) add(h ChunkHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = make(map[int]ChunkHandler)
	}
	id := s.nextID
	s.nextID++
	s.handlers[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.handlers, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) dispatch(samples []float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.handlers {
		h(samples)
	}
}

func (s *subscribers) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}
