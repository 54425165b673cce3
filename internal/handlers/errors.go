package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-recorder/internal/logging"
	"github.com/codebuildervaibhav/meeting-recorder/internal/meeting"
	"github.com/codebuildervaibhav/meeting-recorder/internal/queue"
	"github.com/codebuildervaibhav/meeting-recorder/internal/summary"
	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{types.ErrMeetingNotFound, fiber.StatusNotFound, "ERR_NOT_FOUND"},
	{meeting.ErrAlreadyRecording, fiber.StatusConflict, "ERR_ALREADY_RECORDING"},
	{meeting.ErrNotRecording, fiber.StatusConflict, "ERR_NOT_RECORDING"},
	{meeting.ErrMeetingRecording, fiber.StatusConflict, "ERR_MEETING_RECORDING"},
	{meeting.ErrAlreadyProcessing, fiber.StatusConflict, "ERR_PROCESSING"},
	{queue.ErrAlreadyQueued, fiber.StatusConflict, "ERR_PROCESSING"},
	{types.ErrInvalidTransition, fiber.StatusConflict, "ERR_INVALID_STATE"},
	{summary.ErrNotCompleted, fiber.StatusConflict, "ERR_INVALID_STATE"},
	{summary.ErrNoSegments, fiber.StatusConflict, "ERR_NO_SEGMENTS"},
	{meeting.ErrNoSummarizer, fiber.StatusBadRequest, "ERR_NOT_CONFIGURED"},
	{summary.ErrNoGenerator, fiber.StatusBadRequest, "ERR_NOT_CONFIGURED"},
	{meeting.ErrEmptySpeakerName, fiber.StatusBadRequest, "ERR_INVALID_REQUEST"},
	{queue.ErrQueueFull, fiber.StatusServiceUnavailable, "ERR_QUEUE_FULL"},
}

// sendError writes the single JSON error shape used by every route
func sendError(c *fiber.Ctx, err error) error {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return c.Status(m.status).JSON(fiber.Map{
				"error": err.Error(),
				"code":  m.code,
			})
		}
	}
	logging.Error(logging.CategoryHTTP, "%s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
		"code":  "ERR_INTERNAL",
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
		"code":  "ERR_INVALID_REQUEST",
	})
}
