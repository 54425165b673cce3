package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-recorder/internal/output"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// MeetingHandler serves meeting history, transcripts and edits
type MeetingHandler struct {
	svc Service
}

// NewMeetingHandler creates a new meeting handler
func NewMeetingHandler(svc Service) *MeetingHandler {
	return &MeetingHandler{svc: svc}
}

// List returns one page of meetings, newest first
func (h *MeetingHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultPageSize)
	offset := c.QueryInt("offset", 0)
	if limit <= 0 || limit > maxPageSize || offset < 0 {
		return badRequest(c, "limit must be 1-500 and offset non-negative")
	}

	meetings, err := h.svc.ListMeetings(c.UserContext(), limit, offset)
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(fiber.Map{
		"meetings": meetings,
		"limit":    limit,
		"offset":   offset,
	})
}

// Get returns one meeting
func (h *MeetingHandler) Get(c *fiber.Ctx) error {
	m, err := h.svc.GetMeeting(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(m)
}

// Segments returns a meeting's transcript segments in time order
func (h *MeetingHandler) Segments(c *fiber.Ctx) error {
	segments, err := h.svc.Segments(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(fiber.Map{"segments": segments})
}

// Transcript renders the meeting as markdown
func (h *MeetingHandler) Transcript(c *fiber.Ctx) error {
	id := c.Params("id")
	m, err := h.svc.GetMeeting(c.UserContext(), id)
	if err != nil {
		return sendError(c, err)
	}
	segments, err := h.svc.Segments(c.UserContext(), id)
	if err != nil {
		return sendError(c, err)
	}
	c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
	return c.SendString(output.RenderTranscript(m, segments))
}

type titleRequest struct {
	Title string `json:"title"`
}

// UpdateTitle renames a meeting
func (h *MeetingHandler) UpdateTitle(c *fiber.Ctx) error {
	var req titleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" {
		return badRequest(c, "title is required")
	}

	m, err := h.svc.UpdateTitle(c.UserContext(), c.Params("id"), req.Title)
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(m)
}

// Delete removes a meeting, its segments and its audio
func (h *MeetingHandler) Delete(c *fiber.Ctx) error {
	if err := h.svc.DeleteMeeting(c.UserContext(), c.Params("id")); err != nil {
		return sendError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type renameRequest struct {
	Name string `json:"name"`
}

// RenameSpeaker sets the display name for one speaker of one meeting
func (h *MeetingHandler) RenameSpeaker(c *fiber.Ctx) error {
	var req renameRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	id := c.Params("id")
	if err := h.svc.RenameSpeaker(c.UserContext(), id, c.Params("speakerId"), req.Name); err != nil {
		return sendError(c, err)
	}
	segments, err := h.svc.Segments(c.UserContext(), id)
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(fiber.Map{"segments": segments})
}

// Retry re-queues transcription of the stored audio
func (h *MeetingHandler) Retry(c *fiber.Ctx) error {
	m, err := h.svc.RetryTranscription(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"meeting": m,
		"status":  "queued",
	})
}

// Summarize generates and stores a summary for a completed meeting
func (h *MeetingHandler) Summarize(c *fiber.Ctx) error {
	res, err := h.svc.GenerateSummary(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(fiber.Map{
		"meeting": res.Meeting,
		"summary": res.Summary,
	})
}
