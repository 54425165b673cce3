package output

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/codebuildervaibhav/meeting-recorder/internal/audio"
	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

// Formatter prints CLI progress and listings
type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) RecordingStarted(m *types.Meeting) {
	fmt.Fprintf(f.w, "🎙️  Recording %q (%s). Press Ctrl+C to stop.\n", m.Title, m.ID)
}

func (f *Formatter) RecordingStopped(m *types.Meeting) {
	var d time.Duration
	if m.DurationMs != nil {
		d = time.Duration(*m.DurationMs) * time.Millisecond
	}
	fmt.Fprintf(f.w, "⏹️  Recording stopped (%s)\n", formatDuration(d))
}

func (f *Formatter) Transcribing() {
	fmt.Fprintf(f.w, "📝 Transcribing audio...\n")
}

func (f *Formatter) Summarizing() {
	fmt.Fprintf(f.w, "🤖 Generating summary...\n")
}

func (f *Formatter) MeetingStatus(m *types.Meeting) {
	switch m.Status {
	case types.StatusCompleted:
		f.Success(fmt.Sprintf("Meeting %s completed", m.ID))
	case types.StatusFailed:
		f.Error(fmt.Sprintf("Meeting %s failed; run 'meetingctl retry %s' once a provider is configured", m.ID, m.ID))
	default:
		f.Info(fmt.Sprintf("Meeting %s is %s", m.ID, m.Status))
	}
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "⚠️  %s\n", msg)
}

// MeetingList prints meetings as an aligned table
func (f *Formatter) MeetingList(meetings []*types.Meeting) {
	if len(meetings) == 0 {
		f.Info("No meetings found")
		return
	}
	tw := tabwriter.NewWriter(f.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tSTATUS\tTITLE")
	for _, m := range meetings {
		dur := "-"
		if m.DurationMs != nil {
			dur = formatDuration(time.Duration(*m.DurationMs) * time.Millisecond)
		}
		status := m.Status
		if m.Summary != nil {
			status += " ✅"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			m.ID, m.StartedAt.Local().Format(time.DateTime), dur, status, m.Title)
	}
	tw.Flush()
}

func (f *Formatter) DeviceList(devices []audio.DeviceInfo) {
	if len(devices) == 0 {
		f.Info("No capture devices found")
		return
	}
	for _, d := range devices {
		marker := " "
		if d.IsDefault {
			marker = "*"
		}
		fmt.Fprintf(f.w, " %s %s\n", marker, d.Name)
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
