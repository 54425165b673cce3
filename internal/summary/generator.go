package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codebuildervaibhav/meeting-recorder/internal/logging"
	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

var (
	ErrNoSegments   = errors.New("meeting has no transcript segments")
	ErrNotCompleted = errors.New("meeting transcript is not completed")
	ErrNoGenerator  = errors.New("no LLM provider configured for summary generation")
)

// TextGenerator runs one non-streaming completion
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Store is the persistence the generator needs
type Store interface {
	GetMeeting(ctx context.Context, id string) (*types.Meeting, error)
	UpdateMeeting(ctx context.Context, m *types.Meeting) error
	ListSegments(ctx context.Context, meetingID string) ([]types.MeetingSegment, error)
}

// Result pairs the updated meeting with the full decoded summary
type Result struct {
	Meeting *types.Meeting `json:"meeting"`
	Summary Summary        `json:"summary"`
}

// Generator produces and stores meeting summaries
type Generator struct {
	store Store
	llm   TextGenerator
	now   func() time.Time
}

// NewGenerator creates a generator; a nil llm makes every call fail with ErrNoGenerator
func NewGenerator(store Store, llm TextGenerator) *Generator {
	return &Generator{store: store, llm: llm, now: time.Now}
}

// Enabled reports whether an LLM is configured
func (g *Generator) Enabled() bool {
	return g.llm != nil
}

// Generate summarizes a completed meeting and persists the summary and action
// items. On any upstream failure the meeting is left untouched.
func (g *Generator) Generate(ctx context.Context, meetingID string) (*Result, error) {
	m, err := g.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if m.Status != types.StatusCompleted {
		return nil, fmt.Errorf("cannot summarize meeting in status %q: %w", m.Status, ErrNotCompleted)
	}

	segments, err := g.store.ListSegments(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load segments: %w", err)
	}
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}
	if g.llm == nil {
		return nil, ErrNoGenerator
	}

	raw, err := g.llm.Generate(ctx, SystemPrompt, BuildPrompt(segments))
	if err != nil {
		return nil, fmt.Errorf("summary generation failed: %w", err)
	}
	s := DecodeSummary(raw)

	items, err := json.Marshal(s.ActionItems)
	if err != nil {
		return nil, err
	}
	updated := m.Clone()
	updated.Summary = types.StringPtr(s.Summary)
	updated.ActionItems = types.StringPtr(string(items))
	updated.UpdatedAt = g.now()
	if err := g.store.UpdateMeeting(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to save summary: %w", err)
	}

	logging.Info(logging.CategorySummary, "meeting %s summarized: %d topics, %d decisions, %d action items",
		meetingID, len(s.KeyTopics), len(s.Decisions), len(s.ActionItems))
	return &Result{Meeting: updated, Summary: s}, nil
}
