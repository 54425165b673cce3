// Package handlers exposes the meeting service over HTTP and WebSocket.
package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/meeting-recorder/internal/audio"
	"github.com/codebuildervaibhav/meeting-recorder/internal/logging"
	"github.com/codebuildervaibhav/meeting-recorder/internal/meeting"
	"github.com/codebuildervaibhav/meeting-recorder/internal/queue"
	"github.com/codebuildervaibhav/meeting-recorder/internal/recording"
	"github.com/codebuildervaibhav/meeting-recorder/internal/summary"
	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

// Service is the part of meeting.Service the routes use
type Service interface {
	ListMeetings(ctx context.Context, limit, offset int) ([]*types.Meeting, error)
	GetMeeting(ctx context.Context, id string) (*types.Meeting, error)
	Segments(ctx context.Context, meetingID string) ([]types.MeetingSegment, error)
	UpdateTitle(ctx context.Context, meetingID, title string) (*types.Meeting, error)
	DeleteMeeting(ctx context.Context, meetingID string) error
	RenameSpeaker(ctx context.Context, meetingID, speakerID, name string) error
	RetryTranscription(ctx context.Context, meetingID string) (*types.Meeting, error)
	GenerateSummary(ctx context.Context, meetingID string) (*summary.Result, error)
	StartRecording(ctx context.Context, opts meeting.StartOptions) (*types.Meeting, error)
	StopRecording(ctx context.Context) (*types.Meeting, error)
	Snapshot() meeting.Snapshot
	Recording() (string, recording.BufferStats, bool)
	Subscribe() (<-chan meeting.Event, func())
}

// JobLister reports queued and running transcription jobs
type JobLister interface {
	Jobs() []queue.Job
}

// Deps are the collaborators the routes need. Jobs is optional.
type Deps struct {
	Service Service
	Engine  audio.Engine
	Jobs    JobLister
	Version string
}

// NewApp builds the fiber app with middleware and every route registered
func NewApp(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "meeting-recorder",
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${status} ${method} ${path} ${latency}\n",
		Output: logging.Writer(logging.CategoryHTTP),
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	Register(app, deps)
	return app
}

// Register mounts the routes on an existing app
func Register(app *fiber.App, deps Deps) {
	meetings := NewMeetingHandler(deps.Service)
	rec := NewRecordingHandler(deps.Service, deps.Engine, deps.Jobs)
	stream := NewStateStreamHandler(deps.Service)

	app.Get("/health", func(c *fiber.Ctx) error {
		snap := deps.Service.Snapshot()
		return c.JSON(fiber.Map{
			"status":      "healthy",
			"version":     deps.Version,
			"isRecording": snap.IsRecording,
		})
	})

	// Get server logs
	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logging.Lines(),
		})
	})

	app.Get("/meetings", meetings.List)
	app.Get("/meetings/:id", meetings.Get)
	app.Patch("/meetings/:id", meetings.UpdateTitle)
	app.Delete("/meetings/:id", meetings.Delete)
	app.Get("/meetings/:id/segments", meetings.Segments)
	app.Get("/meetings/:id/transcript", meetings.Transcript)
	app.Post("/meetings/:id/speakers/:speakerId", meetings.RenameSpeaker)
	app.Post("/meetings/:id/retry", meetings.Retry)
	app.Post("/meetings/:id/summary", meetings.Summarize)

	app.Get("/recording", rec.Status)
	app.Post("/recording/start", rec.Start)
	app.Post("/recording/stop", rec.Stop)
	app.Get("/devices", rec.Devices)

	// WebSocket route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/recording", websocket.New(stream.Handle))
}
