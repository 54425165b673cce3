package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/codebuildervaibhav/meeting-recorder/internal/logging"
	"github.com/codebuildervaibhav/meeting-recorder/internal/output"
	"github.com/codebuildervaibhav/meeting-recorder/internal/summary"
	"github.com/codebuildervaibhav/meeting-recorder/internal/transcription"
	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

const (
	queueSize      = 100
	exportAttempts = 3
)

var (
	ErrAlreadyQueued = errors.New("meeting already has a transcription job")
	ErrQueueFull     = errors.New("transcription queue is full")
	ErrPoolStopped   = errors.New("worker pool stopped")
)

// Processor transcribes one meeting
type Processor interface {
	Process(ctx context.Context, meetingID string) (*transcription.Result, error)
}

// Summarizer generates a summary after transcription
type Summarizer interface {
	Generate(ctx context.Context, meetingID string) (*summary.Result, error)
}

// Exporter uploads a rendered transcript and returns its link
type Exporter interface {
	UploadTranscript(ctx context.Context, m *types.Meeting, markdown string) (string, error)
}

// Store is used to mark a meeting failed when a job panics
type Store interface {
	GetMeeting(ctx context.Context, id string) (*types.Meeting, error)
	UpdateMeeting(ctx context.Context, m *types.Meeting) error
}

// DoneFunc is called once per job with the final meeting and segments
type DoneFunc func(meetingID string, m *types.Meeting, segments []types.MeetingSegment, err error)

// WorkerPool manages a pool of workers processing transcription jobs
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	processor   Processor
	store       Store
	summarizer  Summarizer
	exporter    Exporter
	onDone      DoneFunc
	retryDelay  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	stopped  bool
	inFlight map[string]*Job
}

// NewWorkerPool creates a new worker pool. summarizer and exporter are optional.
func NewWorkerPool(workerCount int, processor Processor, store Store, summarizer Summarizer, exporter Exporter) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobQueue:    make(chan *Job, queueSize),
		workerCount: workerCount,
		processor:   processor,
		store:       store,
		summarizer:  summarizer,
		exporter:    exporter,
		retryDelay:  time.Second,
		ctx:         ctx,
		cancel:      cancel,
		inFlight:    make(map[string]*Job),
	}
}

// OnDone registers the completion callback. Call before Start.
func (wp *WorkerPool) OnDone(fn DoneFunc) {
	wp.onDone = fn
}

// Start initializes all workers
func (wp *WorkerPool) Start() {
	logging.Info(logging.CategoryQueue, "starting worker pool with %d workers", wp.workerCount)
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop refuses new jobs and waits for running ones to finish
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.wg.Wait()
	wp.cancel()
	logging.Info(logging.CategoryQueue, "worker pool stopped")
}

// Enqueue adds a job for the meeting. One job per meeting at a time.
func (wp *WorkerPool) Enqueue(meetingID string) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped {
		return ErrPoolStopped
	}
	if _, ok := wp.inFlight[meetingID]; ok {
		return ErrAlreadyQueued
	}

	job := NewJob(meetingID)
	select {
	case wp.jobQueue <- job:
	default:
		return ErrQueueFull
	}
	wp.inFlight[meetingID] = job
	logging.Info(logging.CategoryQueue, "job %s enqueued for meeting %s", job.ID, meetingID)
	return nil
}

// InFlight reports whether a job for the meeting is queued or running
func (wp *WorkerPool) InFlight(meetingID string) bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	_, ok := wp.inFlight[meetingID]
	return ok
}

// Jobs returns copies of the queued and running jobs
func (wp *WorkerPool) Jobs() []Job {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	out := make([]Job, 0, len(wp.inFlight))
	for _, j := range wp.inFlight {
		out = append(out, *j)
	}
	return out
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	logging.Debug(logging.CategoryQueue, "worker %d started", id)

	for job := range wp.jobQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Error(logging.CategoryQueue, "worker %d: PANIC processing job %s: %v\n%s",
						id, job.ID, r, string(debug.Stack()))
					wp.finish(job, nil, nil, wp.markFailed(job.MeetingID, fmt.Errorf("worker panic: %v", r)))
				}
			}()

			wp.processJob(id, job)
		}()
	}
}

// processJob runs transcription, then the optional summary and export steps
func (wp *WorkerPool) processJob(workerID int, job *Job) {
	logging.Info(logging.CategoryQueue, "worker %d: processing job %s (meeting %s)", workerID, job.ID, job.MeetingID)
	wp.setStatus(job, StatusProcessing)

	// Step 1: transcribe
	result, err := wp.processor.Process(wp.ctx, job.MeetingID)
	if err != nil {
		var m *types.Meeting
		if result != nil {
			m = result.Meeting
		}
		wp.finish(job, m, nil, err)
		return
	}
	m := result.Meeting

	// Step 2: summary, when enabled
	if wp.summarizer != nil && len(result.Segments) > 0 {
		res, err := wp.summarizer.Generate(wp.ctx, job.MeetingID)
		if err != nil {
			logging.Warn(logging.CategoryQueue, "worker %d: summary for %s failed: %v", workerID, job.MeetingID, err)
		} else {
			m = res.Meeting
		}
	}

	// Step 3: export to Google Drive (with retry)
	if wp.exporter != nil {
		markdown := output.RenderTranscript(m, result.Segments)
		for attempt := 1; attempt <= exportAttempts; attempt++ {
			url, err := wp.exporter.UploadTranscript(wp.ctx, m, markdown)
			if err == nil {
				wp.mu.Lock()
				job.ExportURL = url
				wp.mu.Unlock()
				logging.Info(logging.CategoryExport, "meeting %s exported: %s", job.MeetingID, url)
				break
			}
			logging.Warn(logging.CategoryExport, "worker %d: export attempt %d/%d failed: %v", workerID, attempt, exportAttempts, err)
			if attempt < exportAttempts {
				time.Sleep(time.Duration(attempt*attempt) * wp.retryDelay)
			}
		}
	}

	wp.finish(job, m, result.Segments, nil)
}

func (wp *WorkerPool) setStatus(job *Job, status string) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	job.Status = status
	if status == StatusProcessing {
		job.StartedAt = time.Now()
	}
}

func (wp *WorkerPool) finish(job *Job, m *types.Meeting, segments []types.MeetingSegment, err error) {
	wp.mu.Lock()
	job.FinishedAt = time.Now()
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
	} else {
		job.Status = StatusCompleted
	}
	delete(wp.inFlight, job.MeetingID)
	wp.mu.Unlock()

	if err != nil {
		logging.Error(logging.CategoryQueue, "job %s for meeting %s failed: %v", job.ID, job.MeetingID, err)
	} else {
		logging.Info(logging.CategoryQueue, "job %s for meeting %s completed in %s",
			job.ID, job.MeetingID, job.FinishedAt.Sub(job.StartedAt).Round(time.Millisecond))
	}
	if wp.onDone != nil {
		wp.onDone(job.MeetingID, m, segments, err)
	}
}

// markFailed moves a meeting to failed after a panic and returns the cause
func (wp *WorkerPool) markFailed(meetingID string, cause error) error {
	if wp.store == nil {
		return cause
	}
	m, err := wp.store.GetMeeting(wp.ctx, meetingID)
	if err != nil {
		return cause
	}
	if types.CanTransition(m.Status, types.StatusFailed) {
		m.Status = types.StatusFailed
		m.UpdatedAt = time.Now().UTC()
		if err := wp.store.UpdateMeeting(wp.ctx, m); err != nil {
			logging.Warn(logging.CategoryQueue, "could not mark meeting %s failed: %v", meetingID, err)
		}
	}
	return cause
}
