package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"supportchat/models"
)

// Transcript renders one conversation's message list for the terminal.
// Messages authored by self sit on the right edge, the counterpart's on the
// left, in the order they were handed over.
type Transcript struct {
	// Self is the sender identity whose bubbles render right-aligned.
	Self string
	// Width is the usable terminal width. Zero falls back to a sane default.
	Width int
}

const defaultWidth = 80

// Render lays the messages out top to bottom in arrival order.
func (t Transcript) Render(messages []models.Message) string {
	width := t.Width
	if width <= 0 {
		width = defaultWidth
	}

	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, t.renderMessage(msg, width))
	}
	return strings.Join(lines, "\n")
}

func (t Transcript) renderMessage(msg models.Message, width int) string {
	style := incomingBubble
	if msg.Sender == t.Self {
		style = outgoingBubble
		if msg.Pending {
			style = pendingBubble
		}
	}

	header := senderLabel.Render(msg.Sender)
	if stamp := formatTimestamp(msg.Timestamp); stamp != "" {
		header += " " + timestampLabel.Render(stamp)
	}
	bubble := lipgloss.JoinVertical(lipgloss.Left, header, style.Render(msg.Content))
	return lipgloss.PlaceHorizontal(width, bubbleAlign(msg.Sender, t.Self), bubble)
}

// bubbleAlign maps a message's author to its horizontal edge: self on the
// right, everyone else on the left.
func bubbleAlign(sender, self string) lipgloss.Position {
	if sender == self {
		return lipgloss.Right
	}
	return lipgloss.Left
}

func formatTimestamp(unixMilli int64) string {
	if unixMilli <= 0 {
		return ""
	}
	return time.UnixMilli(unixMilli).Local().Format("15:04")
}
