package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/codebuildervaibhav/meeting-recorder/internal/logging"
)

// Referencer lists the audio paths still owned by a meeting
type Referencer interface {
	AudioPaths(ctx context.Context) (map[string]bool, error)
}

// Result describes one sweep
type Result struct {
	Deleted int
	Freed   int64
}

// Scheduler removes orphaned recordings from the audio directory. A file is
// orphaned when no meeting references it and it has not been written for maxAge.
type Scheduler struct {
	audioDir string
	interval time.Duration
	maxAge   time.Duration
	refs     Referencer
	now      func() time.Time

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(audioDir string, refs Referencer, intervalMinutes, maxAgeHours int) *Scheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 60
	}
	if maxAgeHours <= 0 {
		maxAgeHours = 24
	}
	return &Scheduler{
		audioDir: audioDir,
		interval: time.Duration(intervalMinutes) * time.Minute,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
		refs:     refs,
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately, then sweeps every interval
func (s *Scheduler) Start() {
	logging.Info(logging.CategoryCleanup, "running initial orphaned audio cleanup")
	s.Sweep(context.Background())

	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep(context.Background())
			case <-s.stopChan:
				return
			}
		}
	}()

	logging.Info(logging.CategoryCleanup, "cleanup scheduler started (interval: %s, max age: %s)", s.interval, s.maxAge)
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		<-s.done
		logging.Info(logging.CategoryCleanup, "cleanup scheduler stopped")
	})
}

// Sweep deletes orphaned .wav files once
func (s *Scheduler) Sweep(ctx context.Context) Result {
	var res Result

	referenced, err := s.refs.AudioPaths(ctx)
	if err != nil {
		// without the reference set every file looks orphaned
		logging.Warn(logging.CategoryCleanup, "skipping cleanup: %v", err)
		return res
	}

	entries, err := os.ReadDir(s.audioDir)
	if err != nil {
		logging.Warn(logging.CategoryCleanup, "failed to read audio directory: %v", err)
		return res
	}

	now := s.now()
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".wav") {
			continue
		}
		path := filepath.Join(s.audioDir, entry.Name())
		if referenced[path] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			continue
		}
		if err := os.Remove(path); err != nil {
			logging.Warn(logging.CategoryCleanup, "failed to delete orphaned file %s: %v", path, err)
			continue
		}
		res.Deleted++
		res.Freed += info.Size()
		logging.Debug(logging.CategoryCleanup, "deleted orphaned recording %s (age: %s, size: %dKB)",
			entry.Name(), age.Round(time.Hour), info.Size()/1024)
	}

	if res.Deleted > 0 {
		logging.Info(logging.CategoryCleanup, "cleanup complete: %d files deleted, %.2fMB freed",
			res.Deleted, float64(res.Freed)/(1024*1024))
	}
	return res
}
