package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-recorder/internal/audio"
	"github.com/codebuildervaibhav/meeting-recorder/internal/meeting"
)

// RecordingHandler drives the single recording session
type RecordingHandler struct {
	svc    Service
	engine audio.Engine
	jobs   JobLister
}

// NewRecordingHandler creates a new recording handler. jobs may be nil.
func NewRecordingHandler(svc Service, engine audio.Engine, jobs JobLister) *RecordingHandler {
	return &RecordingHandler{svc: svc, engine: engine, jobs: jobs}
}

// Start begins recording a new meeting
func (h *RecordingHandler) Start(c *fiber.Ctx) error {
	var req meeting.StartOptions
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	m, err := h.svc.StartRecording(c.UserContext(), req)
	if err != nil {
		return sendError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

// Stop ends the active recording and queues transcription
func (h *RecordingHandler) Stop(c *fiber.Ctx) error {
	m, err := h.svc.StopRecording(c.UserContext())
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(m)
}

// Status reports the recording flags, buffer counters and queued jobs
func (h *RecordingHandler) Status(c *fiber.Ctx) error {
	snap := h.svc.Snapshot()
	resp := fiber.Map{
		"activeMeetingId": snap.ActiveMeetingID,
		"isRecording":     snap.IsRecording,
		"isProcessing":    snap.IsProcessing,
		"elapsedMs":       snap.ElapsedMs,
	}
	if id, stats, ok := h.svc.Recording(); ok {
		resp["recordingMeetingId"] = id
		resp["buffer"] = stats
	}
	if h.jobs != nil {
		resp["jobs"] = h.jobs.Jobs()
	}
	return c.JSON(resp)
}

// Devices lists capture devices
func (h *RecordingHandler) Devices(c *fiber.Ctx) error {
	devices, err := h.engine.Devices()
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(fiber.Map{"devices": devices})
}
