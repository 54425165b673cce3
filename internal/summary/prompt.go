package summary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codebuildervaibhav/meeting-recorder/internal/output"
	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

// SystemPrompt is sent with every summary request
const SystemPrompt = "You are a meeting summary assistant. Return only valid JSON."

const instructions = `You are a meeting assistant. Analyze the following meeting transcript and produce a JSON response with this exact structure:

{
  "summary": "A concise 2-4 paragraph summary of the meeting covering the main discussion points.",
  "keyTopics": ["topic1", "topic2", "topic3"],
  "decisions": ["decision1", "decision2"],
  "actionItems": [
    {"task": "description of task", "assignee": "person name or null", "priority": "high|medium|low"}
  ]
}

Rules:
- Write the summary in clear, professional language
- Extract only action items that were explicitly discussed or agreed upon
- If no speaker names are available, use the speaker IDs
- If no clear decisions or action items exist, return empty arrays
- Return ONLY valid JSON, no markdown formatting

Meeting Transcript:
`

// BuildPrompt renders the instructions followed by one line per segment in
// start order.
func BuildPrompt(segments []types.MeetingSegment) string {
	ordered := make([]types.MeetingSegment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartMs < ordered[j].StartMs
	})

	lines := make([]string, 0, len(ordered))
	for _, s := range ordered {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", output.MsToTS(s.StartMs), output.SpeakerLabel(s), s.Text))
	}
	return instructions + strings.Join(lines, "\n")
}
