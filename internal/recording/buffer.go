package recording

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/codebuildervaibhav/meeting-recorder/internal/logging"
	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

const (
	DefaultFlushThreshold = 160000
	DefaultChannelSize    = 64
)

var ErrBufferFinalized = errors.New("chunk buffer already finalized")

// Writer is the durable sink behind a ChunkBuffer
type Writer interface {
	AppendAudioChunk(samples []float32) error
	Finalize() (types.AudioArtifact, error)
	Abort() error
}

// BufferStats counts samples through the buffer
type BufferStats struct {
	Appended      int64 `json:"appended"`
	Persisted     int64 `json:"persisted"`
	Lost          int64 `json:"lost"`
	FailedFlushes int64 `json:"failedFlushes"`
}

// ChunkBuffer accumulates sample batches and flushes them to a Writer once the
// threshold is reached. A single consumer goroutine owns the accumulator; at most
// one flush runs at a time.
type ChunkBuffer struct {
	writer    Writer
	threshold int
	in        chan []float32
	done      chan struct{}
	discard   atomic.Bool

	mu     sync.RWMutex
	closed bool

	sealOnce sync.Once
	artifact types.AudioArtifact
	sealErr  error

	appended      atomic.Int64
	persisted     atomic.Int64
	lost          atomic.Int64
	failedFlushes atomic.Int64
}

// NewChunkBuffer starts the consumer goroutine. Zero values pick the defaults.
func NewChunkBuffer(w Writer, threshold, channelSize int) *ChunkBuffer {
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	if channelSize <= 0 {
		channelSize = DefaultChannelSize
	}
	b := &ChunkBuffer{
		writer:    w,
		threshold: threshold,
		in:        make(chan []float32, channelSize),
		done:      make(chan struct{}),
	}
	go b.consume()
	return b
}

// Append queues a batch. It never fails and never touches the writer; batches
// arriving after Finalize or Close are counted as lost.
func (b *ChunkBuffer) Append(samples []float32) {
	if len(samples) == 0 {
		return
	}
	batch := make([]float32, len(samples))
	copy(batch, samples)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.lost.Add(int64(len(batch)))
		return
	}
	b.appended.Add(int64(len(batch)))
	b.in <- batch
}

// Finalize stops intake, waits for any in-flight flush, flushes the remainder and
// seals the writer. If ctx ends first the drain carries on and the writer is
// sealed in the background; Wait blocks until that has happened.
func (b *ChunkBuffer) Finalize(ctx context.Context) (types.AudioArtifact, error) {
	if !b.closeInput() {
		return types.AudioArtifact{}, ErrBufferFinalized
	}
	select {
	case <-b.done:
	case <-ctx.Done():
		go func() {
			if _, err := b.seal(); err != nil {
				logging.Error(logging.CategoryBuffer, "sealing audio after cancelled finalize: %v", err)
			}
		}()
		return types.AudioArtifact{}, ctx.Err()
	}
	return b.seal()
}

// Wait blocks until a finalized buffer has drained and sealed its writer
func (b *ChunkBuffer) Wait() (types.AudioArtifact, error) {
	return b.seal()
}

// Close stops intake and drops whatever has not been flushed. The writer is left
// untouched. After Finalize it only waits for the drain.
func (b *ChunkBuffer) Close() {
	b.mu.Lock()
	if !b.closed {
		b.discard.Store(true)
		b.closed = true
		close(b.in)
	}
	b.mu.Unlock()
	<-b.done
}

// Stats returns a snapshot of the counters
func (b *ChunkBuffer) Stats() BufferStats {
	return BufferStats{
		Appended:      b.appended.Load(),
		Persisted:     b.persisted.Load(),
		Lost:          b.lost.Load(),
		FailedFlushes: b.failedFlushes.Load(),
	}
}

func (b *ChunkBuffer) closeInput() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.closed = true
	close(b.in)
	return true
}

// seal runs the writer's Finalize exactly once, after the consumer exits
func (b *ChunkBuffer) seal() (types.AudioArtifact, error) {
	b.sealOnce.Do(func() {
		<-b.done
		b.artifact, b.sealErr = b.writer.Finalize()
	})
	return b.artifact, b.sealErr
}

func (b *ChunkBuffer) consume() {
	defer close(b.done)

	var (
		acc       []float32
		flushing  bool
		flushDone = make(chan struct{}, 1)
	)

	startFlush := func() {
		batch := acc
		acc = nil
		flushing = true
		go func() {
			b.flush(batch)
			flushDone <- struct{}{}
		}()
	}

	in := b.in
	for in != nil {
		select {
		case samples, ok := <-in:
			if !ok {
				in = nil
				break
			}
			acc = append(acc, samples...)
			if !flushing && len(acc) >= b.threshold {
				startFlush()
			}
		case <-flushDone:
			flushing = false
			if len(acc) >= b.threshold {
				startFlush()
			}
		}
	}

	if flushing {
		<-flushDone
	}
	if b.discard.Load() {
		b.lost.Add(int64(len(acc)))
		return
	}
	if len(acc) > 0 {
		b.flush(acc)
	}
}

// flush writes one batch. Failures are logged and the batch is dropped so the
// recording keeps going.
func (b *ChunkBuffer) flush(batch []float32) {
	if len(batch) == 0 {
		return
	}
	if err := b.writer.AppendAudioChunk(batch); err != nil {
		b.failedFlushes.Add(1)
		b.lost.Add(int64(len(batch)))
		logging.Error(logging.CategoryBuffer, "flush of %d samples failed: %v", len(batch), err)
		return
	}
	b.persisted.Add(int64(len(batch)))
}
