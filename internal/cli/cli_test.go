package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codebuildervaibhav/meeting-recorder/internal/app"
	"github.com/codebuildervaibhav/meeting-recorder/internal/audio"
	"github.com/codebuildervaibhav/meeting-recorder/internal/config"
	"github.com/codebuildervaibhav/meeting-recorder/internal/meeting"
	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

type harness struct {
	deps *Dependencies
	out  *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DataDir = dir
	cfg.Storage.Database = filepath.Join(dir, "meetings.db")
	cfg.Transcription.Transcriber = "none"

	out := &bytes.Buffer{}
	return &harness{
		out: out,
		deps: &Dependencies{
			Config: cfg,
			Open: func(ctx context.Context, opts app.Options) (*app.App, error) {
				opts.Engine = audio.NewFakeEngine(16000)
				opts.DisableExport = true
				return app.New(ctx, cfg, opts)
			},
			Out:          out,
			Err:          out,
			PollInterval: 5 * time.Millisecond,
		},
	}
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	h.out.Reset()
	cmd := NewRootCmd(h.deps)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func (h *harness) seed(t *testing.T, m *types.Meeting, segments ...types.MeetingSegment) {
	t.Helper()
	ctx := context.Background()
	a, err := h.deps.Open(ctx, app.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close(ctx)
	if err := a.DB.CreateMeeting(ctx, m); err != nil {
		t.Fatal(err)
	}
	if len(segments) > 0 {
		if err := a.DB.CreateSegmentsBatch(ctx, segments); err != nil {
			t.Fatal(err)
		}
	}
}

func completedMeeting(id, title string) *types.Meeting {
	now := time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)
	return &types.Meeting{
		ID:        id,
		Title:     title,
		StartedAt: now,
		Status:    types.StatusCompleted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestListAndShow(t *testing.T) {
	h := newHarness(t)

	if err := h.run(t, "list"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(h.out.String(), "No meetings found") {
		t.Errorf("empty list output:\n%s", h.out)
	}

	speaker := "A"
	h.seed(t, completedMeeting("m1", "Design review"), types.MeetingSegment{
		ID: "s1", MeetingID: "m1", SpeakerID: &speaker, SpeakerName: &speaker,
		Text: "Let's cut scope", StartMs: 0, EndMs: 2000, CreatedAt: time.Now(),
	})

	if err := h.run(t, "list"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(h.out.String(), "Design review") || !strings.Contains(h.out.String(), "m1") {
		t.Errorf("list output:\n%s", h.out)
	}

	if err := h.run(t, "show", "m1"); err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(h.out.String(), "# Design review") || !strings.Contains(h.out.String(), "Let's cut scope") {
		t.Errorf("show output:\n%s", h.out)
	}

	if err := h.run(t, "show", "missing"); err == nil {
		t.Error("show of a missing meeting succeeded")
	}
}

func TestTitleRenameDelete(t *testing.T) {
	h := newHarness(t)
	speaker := "A"
	h.seed(t, completedMeeting("m1", "Old"), types.MeetingSegment{
		ID: "s1", MeetingID: "m1", SpeakerID: &speaker, SpeakerName: &speaker,
		Text: "hi", EndMs: 1000, CreatedAt: time.Now(),
	})

	if err := h.run(t, "title", "m1", "New", "name"); err != nil {
		t.Fatalf("title: %v", err)
	}
	if err := h.run(t, "rename-speaker", "m1", "A", "Alice"); err != nil {
		t.Fatalf("rename-speaker: %v", err)
	}
	if err := h.run(t, "show", "m1"); err != nil {
		t.Fatalf("show: %v", err)
	}
	out := h.out.String()
	if !strings.Contains(out, "# New name") || !strings.Contains(out, "Alice: hi") {
		t.Errorf("show after edits:\n%s", out)
	}

	if err := h.run(t, "delete", "m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := h.run(t, "show", "m1"); err == nil {
		t.Error("meeting still present after delete")
	}
}

func TestSummarizeWithoutKey(t *testing.T) {
	h := newHarness(t)
	h.deps.Config.Summary.AnthropicKey = ""
	h.seed(t, completedMeeting("m1", "x"))

	if err := h.run(t, "summarize", "m1"); err == nil {
		t.Error("summarize succeeded without an LLM key")
	}
}

func TestRecordStopsOnInterrupt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, err := h.deps.Open(ctx, app.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close(ctx)
	if err := a.Start(ctx); err != nil {
		t.Fatal(err)
	}

	interrupted := make(chan struct{})
	close(interrupted)
	if err := runRecording(ctx, h.deps, a, meeting.StartOptions{Title: "Quick"}, interrupted); err != nil {
		t.Fatalf("runRecording: %v", err)
	}

	out := h.out.String()
	if !strings.Contains(out, `Recording "Quick"`) || !strings.Contains(out, "Recording stopped") {
		t.Errorf("output:\n%s", out)
	}
	// no provider is configured, so the job ends failed
	if !strings.Contains(out, "failed") {
		t.Errorf("expected failed status in output:\n%s", out)
	}
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	if err := h.run(t, "version"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(h.out.String(), "meetingctl "+app.Version) {
		t.Errorf("version output: %q", h.out)
	}
}
