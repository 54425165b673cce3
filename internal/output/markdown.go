package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

// RenderTranscript renders a meeting, its summary and its segments as markdown
func RenderTranscript(m *types.Meeting, segments []types.MeetingSegment) string {
	var b strings.Builder

	if m.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", m.Title)
	} else {
		b.WriteString("# Meeting Transcript\n\n")
	}
	fmt.Fprintf(&b, "- Started: %s\n", m.StartedAt.Local().Format(time.DateTime))
	if m.DurationMs != nil {
		fmt.Fprintf(&b, "- Duration: %s\n", (time.Duration(*m.DurationMs) * time.Millisecond).Truncate(time.Second))
	}
	fmt.Fprintf(&b, "- Status: %s\n", m.Status)

	if m.Summary != nil && *m.Summary != "" {
		b.WriteString("\n## Summary\n\n")
		b.WriteString(strings.TrimSpace(*m.Summary))
		b.WriteString("\n")
	}

	if items := decodeActionItems(m.ActionItems); len(items) > 0 {
		b.WriteString("\n## Action Items\n\n")
		for _, it := range items {
			line := "- [ ] " + it.Task
			if it.Assignee != nil && *it.Assignee != "" {
				line += " (" + *it.Assignee + ")"
			}
			if it.Priority != "" {
				line += " `" + it.Priority + "`"
			}
			b.WriteString(line + "\n")
		}
	}

	b.WriteString("\n---\n\n")
	if len(segments) == 0 {
		b.WriteString("_No transcript available._\n")
		return b.String()
	}
	for _, s := range segments {
		ts := fmt.Sprintf("[%s-%s] ", MsToTS(s.StartMs), MsToTS(s.EndMs))
		fmt.Fprintf(&b, "%s%s: %s\n\n", ts, SpeakerLabel(s), strings.TrimSpace(s.Text))
	}
	return b.String()
}

// SpeakerLabel picks the speaker name, then the speaker id, then a generic label
func SpeakerLabel(s types.MeetingSegment) string {
	if s.SpeakerName != nil && *s.SpeakerName != "" {
		return *s.SpeakerName
	}
	if s.SpeakerID != nil && *s.SpeakerID != "" {
		return *s.SpeakerID
	}
	return "Speaker"
}

// MsToTS formats a millisecond offset as HH:MM:SS
func MsToTS(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

func decodeActionItems(raw *string) []types.ActionItem {
	if raw == nil || *raw == "" {
		return nil
	}
	var items []types.ActionItem
	if err := json.Unmarshal([]byte(*raw), &items); err != nil {
		return nil
	}
	return items
}
