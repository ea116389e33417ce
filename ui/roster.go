package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"supportchat/chat"
)

// Roster renders the admin's conversation list as a table: one row per
// counterpart, most recently notified first, with a presence dot and an
// unread badge.
type Roster struct {
	// Active is the id of the open conversation, marked in its row.
	Active string
}

const previewLimit = 40

// Render draws the roster table.
func (r Roster) Render(entries []chat.RosterEntry, presence map[string]bool) string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.User.Name
		if name == "" {
			name = entry.User.ID
		}
		if entry.User.ID == r.Active {
			name = activeMarker.Render("> " + name)
		}

		badge := ""
		if entry.LastMessage.Unread {
			badge = unreadBadge.Render("●")
		}

		rows = append(rows, []string{
			presenceDot(presence[entry.User.ID]),
			name,
			truncatePreview(entry.LastMessage.Content),
			badge,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorder).
		Headers("", "User", "Last Message", "").
		Rows(rows...)
	return t.String()
}

func presenceDot(online bool) string {
	if online {
		return onlineDot.Render("●")
	}
	return offlineDot.Render("○")
}

func truncatePreview(content string) string {
	content = strings.ReplaceAll(content, "\n", " ")
	runes := []rune(content)
	if len(runes) <= previewLimit {
		return content
	}
	return string(runes[:previewLimit-1]) + "…"
}
