package state

import (
	"fmt"
	"strings"
	"time"

	"github.com/famulus-ai/famulus/core"
)

// HiddenAttachmentText replaces the text of attachments considered stale, so
// the prompt keeps the fact that something was shared without carrying its
// full content.
const HiddenAttachmentText = "[Hidden]"

// attachmentFreshness is the window behind the newest attachment-bearing
// message within which attachments stay visible.
const attachmentFreshness = time.Hour

// RedactStaleAttachments returns a copy of the messages where every
// attachment older than one hour before the newest attachment-bearing
// message has its text replaced by HiddenAttachmentText. Messages without
// attachments pass through unchanged.
func RedactStaleAttachments(messages []core.Memory) []core.Memory {
	var newest time.Time
	for _, m := range messages {
		if len(m.Content.Attachments) > 0 && m.CreatedAt.After(newest) {
			newest = m.CreatedAt
		}
	}
	if newest.IsZero() {
		return messages
	}
	cutoff := newest.Add(-attachmentFreshness)

	out := make([]core.Memory, len(messages))
	for i, m := range messages {
		if len(m.Content.Attachments) == 0 || !m.CreatedAt.Before(cutoff) {
			out[i] = m
			continue
		}
		cp := m.Clone()
		for j := range cp.Content.Attachments {
			cp.Content.Attachments[j].Text = HiddenAttachmentText
		}
		out[i] = cp
	}
	return out
}

// FormatActors renders one line per actor for the actors block.
func FormatActors(actors []core.Actor) string {
	lines := make([]string, len(actors))
	for i, a := range actors {
		if a.Username != "" && a.Username != a.Name {
			lines[i] = fmt.Sprintf("%s (@%s)", a.Name, a.Username)
		} else {
			lines[i] = a.Name
		}
	}
	return strings.Join(lines, "\n")
}

// FormatMessages renders a transcript, oldest first, resolving speaker names
// through the actors. Attachments are folded in parenthetically and the
// chosen action is appended when present.
func FormatMessages(messages []core.Memory, actors []core.Actor) string {
	names := make(map[string]string, len(actors))
	for _, a := range actors {
		names[a.ID] = a.Name
	}

	lines := make([]string, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- { // stored newest first
		m := messages[i]
		name, ok := names[m.UserID]
		if !ok {
			name = "Unknown User"
		}

		line := fmt.Sprintf("%s: %s", name, m.Content.Text)
		if len(m.Content.Attachments) > 0 {
			var titles []string
			for _, att := range m.Content.Attachments {
				titles = append(titles, fmt.Sprintf("%s (%s)", att.Title, att.ID))
			}
			line += fmt.Sprintf(" (Attachments: %s)", strings.Join(titles, ", "))
		}
		if m.Content.Action != "" && m.Content.Action != "NONE" {
			line += fmt.Sprintf(" (%s)", m.Content.Action)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// FormatAttachments renders the attachment detail block for every attachment
// in the messages, newest message first.
func FormatAttachments(messages []core.Memory) string {
	var blocks []string
	for _, m := range messages {
		for _, att := range m.Content.Attachments {
			var b strings.Builder
			fmt.Fprintf(&b, "ID: %s\nName: %s", att.ID, att.Title)
			if att.URL != "" {
				fmt.Fprintf(&b, "\nURL: %s", att.URL)
			}
			if att.Description != "" {
				fmt.Fprintf(&b, "\nDescription: %s", att.Description)
			}
			fmt.Fprintf(&b, "\nText: %s", att.Text)
			blocks = append(blocks, b.String())
		}
	}
	return strings.Join(blocks, "\n\n")
}

// FormatFacts renders facts as a bulleted list, oldest first so newer facts
// read as refinements.
func FormatFacts(facts []core.Memory) string {
	lines := make([]string, 0, len(facts))
	for i := len(facts) - 1; i >= 0; i-- {
		lines = append(lines, "- "+facts[i].Content.Text)
	}
	return strings.Join(lines, "\n")
}

// FormatGoals renders each goal with its status and objective checklist.
func FormatGoals(goals []core.Goal) string {
	var blocks []string
	for _, g := range goals {
		var b strings.Builder
		fmt.Fprintf(&b, "Goal: %s (%s)", g.Name, g.Status)
		for _, o := range g.Objectives {
			mark := " "
			if o.Completed {
				mark = "x"
			}
			fmt.Fprintf(&b, "\n- [%s] %s", mark, o.Description)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// formatMessageExamples renders sampled example conversations with
// placeholder speakers replaced per conversation.
func formatMessageExamples(examples [][]core.MessageExample, replace func() *strings.Replacer) string {
	var blocks []string
	for _, turns := range examples {
		replacer := replace()
		var lines []string
		for _, turn := range turns {
			line := fmt.Sprintf("%s: %s", replacer.Replace(turn.User), replacer.Replace(turn.Content.Text))
			if turn.Content.Action != "" {
				line += fmt.Sprintf(" (%s)", turn.Content.Action)
			}
			lines = append(lines, line)
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}
