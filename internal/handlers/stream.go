package handlers

import (
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/meeting-recorder/internal/logging"
	"github.com/codebuildervaibhav/meeting-recorder/internal/meeting"
)

// StateStreamHandler pushes recording state frames over a WebSocket
type StateStreamHandler struct {
	svc Service
}

// NewStateStreamHandler creates a new state stream handler
func NewStateStreamHandler(svc Service) *StateStreamHandler {
	return &StateStreamHandler{svc: svc}
}

// Handle sends the current state, then one frame per state event until the
// client goes away. Incoming messages are ignored.
func (h *StateStreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	events, cancel := h.svc.Subscribe()
	defer cancel()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snap := h.svc.Snapshot()
	first := meeting.Event{
		Type:            meeting.EventState,
		ActiveMeetingID: snap.ActiveMeetingID,
		IsRecording:     snap.IsRecording,
		IsProcessing:    snap.IsProcessing,
		ElapsedMs:       snap.ElapsedMs,
	}
	if err := c.WriteJSON(first); err != nil {
		return
	}
	logging.Debug(logging.CategoryHTTP, "state stream connected: %s", c.RemoteAddr())

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(ev); err != nil {
				logging.Debug(logging.CategoryHTTP, "state stream write failed: %v", err)
				return
			}
		case <-gone:
			logging.Debug(logging.CategoryHTTP, "state stream closed: %s", c.RemoteAddr())
			return
		}
	}
}
