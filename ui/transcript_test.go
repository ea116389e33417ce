package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"supportchat/models"
)

func TestTranscriptKeepsArrivalOrder(t *testing.T) {
	transcript := Transcript{Self: "U1", Width: 60}
	out := transcript.Render([]models.Message{
		{ID: "a", Sender: "admin", Content: "first", Timestamp: 300},
		{ID: "b", Sender: "U1", Content: "second", Timestamp: 100},
		{ID: "c", Sender: "admin", Content: "third", Timestamp: 200},
	})

	first := strings.Index(out, "first")
	second := strings.Index(out, "second")
	third := strings.Index(out, "third")
	if first < 0 || second < 0 || third < 0 {
		t.Fatalf("missing message content in output:\n%s", out)
	}
	if !(first < second && second < third) {
		t.Fatalf("expected arrival order, got positions %d %d %d", first, second, third)
	}
}

func TestBubbleAlign(t *testing.T) {
	if got := bubbleAlign("U1", "U1"); got != lipgloss.Right {
		t.Fatalf("self bubble: got %v, want right", got)
	}
	if got := bubbleAlign("admin", "U1"); got != lipgloss.Left {
		t.Fatalf("counterpart bubble: got %v, want left", got)
	}
}

func TestTranscriptEmpty(t *testing.T) {
	if out := (Transcript{Self: "U1"}).Render(nil); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}
