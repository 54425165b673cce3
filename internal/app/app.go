// Package app wires storage, capture, providers and workers into one meeting service.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/codebuildervaibhav/meeting-recorder/internal/audio"
	"github.com/codebuildervaibhav/meeting-recorder/internal/cleanup"
	"github.com/codebuildervaibhav/meeting-recorder/internal/config"
	"github.com/codebuildervaibhav/meeting-recorder/internal/logging"
	"github.com/codebuildervaibhav/meeting-recorder/internal/meeting"
	"github.com/codebuildervaibhav/meeting-recorder/internal/queue"
	"github.com/codebuildervaibhav/meeting-recorder/internal/recording"
	"github.com/codebuildervaibhav/meeting-recorder/internal/storage"
	"github.com/codebuildervaibhav/meeting-recorder/internal/summary"
	"github.com/codebuildervaibhav/meeting-recorder/internal/transcription"
)

// Version is reported by /health and the CLI
var Version = "dev"

// Options tune what New builds
type Options struct {
	// Engine overrides the native capture engine
	Engine audio.Engine
	// Background starts the cleanup scheduler
	Background bool
	// DisableExport skips Google Drive even when credentials exist
	DisableExport bool
}

// App owns every long-lived component
type App struct {
	Config    *config.Config
	DB        *storage.MeetingDB
	Audio     *storage.AudioStore
	Engine    audio.Engine
	Service   *meeting.Service
	Workers   *queue.WorkerPool
	Summaries *summary.Generator
	Cleanup   *cleanup.Scheduler

	closeEngine func()
}

// audioFiles adapts AudioStore to the writer interface the recording session uses
type audioFiles struct {
	*storage.AudioStore
}

func (f audioFiles) StartWriter(meetingID string, sampleRate uint32) (recording.Writer, error) {
	w, err := f.AudioStore.StartWriter(meetingID, sampleRate)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// New opens storage and builds the service graph. Call Start to run workers.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	db, err := storage.NewMeetingDB(cfg.Storage.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	files, err := storage.NewAudioStore(cfg.AudioDir())
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &App{Config: cfg, DB: db, Audio: files, Engine: opts.Engine}
	if a.Engine == nil {
		native := audio.NewMalgoEngine(0)
		a.Engine = native
		a.closeEngine = native.Close
	}

	orchestrator := transcription.NewOrchestrator(db, files, newDiarizer(cfg), newTranscriber(cfg))
	if !orchestrator.HasProvider() {
		logging.Warn(logging.CategoryApp, "no transcription provider configured; stopped meetings will fail until one is set")
	}

	a.Summaries = summary.NewGenerator(db, newTextGenerator(cfg))

	var autoSummary queue.Summarizer
	if cfg.Summary.Auto && a.Summaries.Enabled() {
		autoSummary = a.Summaries
	}

	var exporter queue.Exporter
	if !opts.DisableExport {
		if drive := newDriveClient(ctx, cfg); drive != nil {
			exporter = drive
		}
	}

	a.Workers = queue.NewWorkerPool(cfg.Workers.Count, orchestrator, db, autoSummary, exporter)
	a.Service = meeting.NewService(db, audioFiles{files}, a.Engine, a.Workers, a.Summaries, meeting.Options{
		Device:         cfg.Recording.Device,
		FlushThreshold: cfg.Recording.FlushThreshold,
		ChannelSize:    cfg.Recording.ChannelSize,
	})
	a.Workers.OnDone(a.Service.ProcessingDone)

	if opts.Background {
		a.Cleanup = cleanup.NewScheduler(files.Dir(), db, cfg.Cleanup.IntervalMinutes, cfg.Cleanup.MaxAgeHours)
	}
	return a, nil
}

// Start runs the worker pool and, when enabled, the cleanup scheduler
func (a *App) Start(ctx context.Context) error {
	a.Workers.Start()
	if a.Cleanup != nil {
		a.Cleanup.Start()
	}
	if _, err := a.Service.LoadMeetings(ctx); err != nil {
		return err
	}
	return nil
}

// Close stops recording, drains workers and releases storage
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Service.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	a.Workers.Stop()
	if a.Cleanup != nil {
		a.Cleanup.Stop()
	}
	if a.closeEngine != nil {
		a.closeEngine()
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func newDiarizer(cfg *config.Config) transcription.Diarizer {
	if cfg.Transcription.Diarizer != "assemblyai" {
		return nil
	}
	if cfg.Transcription.AssemblyAIKey == "" {
		logging.Warn(logging.CategoryApp, "assemblyai diarizer selected but ASSEMBLYAI_API_KEY is not set")
		return nil
	}
	return transcription.NewAssemblyAIDiarizer(
		cfg.Transcription.AssemblyAIKey,
		"",
		time.Duration(cfg.Transcription.PollIntervalSecs)*time.Second,
		cfg.Transcription.MaxPollAttempts,
	)
}

func newTranscriber(cfg *config.Config) transcription.Transcriber {
	if cfg.Transcription.Transcriber == "none" {
		return nil
	}
	t, err := transcription.NewWhisperTranscriber(transcription.WhisperOptions{
		Provider: cfg.Transcription.Transcriber,
		APIKey:   cfg.Transcription.OpenAIKey,
		BaseURL:  cfg.Transcription.BaseURL,
		Model:    cfg.Transcription.Model,
		Format:   cfg.Transcription.Format,
		Language: cfg.Transcription.Language,
	})
	if err != nil {
		logging.Warn(logging.CategoryApp, "transcriber disabled: %v", err)
		return nil
	}
	return t
}

func newTextGenerator(cfg *config.Config) summary.TextGenerator {
	if cfg.Summary.AnthropicKey == "" {
		logging.Info(logging.CategoryApp, "ANTHROPIC_API_KEY not set - summaries disabled")
		return nil
	}
	return summary.NewAnthropicGenerator(cfg.Summary.AnthropicKey, cfg.Summary.Model, cfg.Summary.MaxTokens)
}

// newDriveClient is optional - it may fail if credentials are not set up
func newDriveClient(ctx context.Context, cfg *config.Config) *storage.DriveClient {
	if cfg.GoogleDrive.CredentialsFile == "" {
		return nil
	}
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err != nil {
		logging.Info(logging.CategoryExport, "Google Drive credentials not found - transcripts stay local")
		return nil
	}
	client, err := storage.NewDriveClient(ctx,
		cfg.GoogleDrive.CredentialsFile,
		cfg.GoogleDrive.TokenFile,
		cfg.GoogleDrive.FolderName,
	)
	if err != nil {
		logging.Warn(logging.CategoryExport, "Google Drive not available: %v", err)
		return nil
	}
	logging.Info(logging.CategoryExport, "Google Drive export enabled")
	return client
}
