package summary

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

// Summary is the structured result of a summary request
type Summary struct {
	Summary     string             `json:"summary"`
	KeyTopics   []string           `json:"keyTopics"`
	Decisions   []string           `json:"decisions"`
	ActionItems []types.ActionItem `json:"actionItems"`
}

var (
	jsonFence = regexp.MustCompile("```json\\s*")
	anyFence  = regexp.MustCompile("```\\s*")
)

// DecodeSummary never fails. Output that is not a JSON object becomes the
// summary text as-is; fields of the wrong shape decode as empty.
func DecodeSummary(raw string) Summary {
	cleaned := anyFence.ReplaceAllString(jsonFence.ReplaceAllString(raw, ""), "")
	cleaned = strings.TrimSpace(cleaned)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil || fields == nil {
		return fallback(raw)
	}

	out := Summary{
		KeyTopics:   []string{},
		Decisions:   []string{},
		ActionItems: []types.ActionItem{},
	}
	if err := json.Unmarshal(fields["summary"], &out.Summary); err != nil {
		out.Summary = ""
	}
	out.KeyTopics = decodeStrings(fields["keyTopics"])
	out.Decisions = decodeStrings(fields["decisions"])
	out.ActionItems = decodeActionItems(fields["actionItems"])
	return out
}

func fallback(raw string) Summary {
	return Summary{
		Summary:     raw,
		KeyTopics:   []string{},
		Decisions:   []string{},
		ActionItems: []types.ActionItem{},
	}
}

func decodeStrings(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}

func decodeActionItems(raw json.RawMessage) []types.ActionItem {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []types.ActionItem{}
	}
	out := make([]types.ActionItem, 0, len(items))
	for _, item := range items {
		var v struct {
			Task     string  `json:"task"`
			Assignee *string `json:"assignee"`
			Priority string  `json:"priority"`
		}
		if json.Unmarshal(item, &v) != nil {
			continue
		}
		if v.Assignee != nil && (*v.Assignee == "" || strings.EqualFold(*v.Assignee, "null")) {
			v.Assignee = nil
		}
		out = append(out, types.ActionItem{
			Task:     v.Task,
			Assignee: v.Assignee,
			Priority: normalizePriority(v.Priority),
		})
	}
	return out
}

func normalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case types.PriorityHigh:
		return types.PriorityHigh
	case types.PriorityLow:
		return types.PriorityLow
	default:
		return types.PriorityMedium
	}
}
