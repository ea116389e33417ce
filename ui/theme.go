package ui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha palette.
var (
	ctpSurface0 = lipgloss.Color("#313244")
	ctpSurface1 = lipgloss.Color("#45475a")
	ctpOverlay0 = lipgloss.Color("#6c7086")
	ctpSubtext0 = lipgloss.Color("#a6adc8")
	ctpText     = lipgloss.Color("#cdd6f4")
	ctpBlue     = lipgloss.Color("#89b4fa")
	ctpGreen    = lipgloss.Color("#a6e3a1")
	ctpRed      = lipgloss.Color("#f38ba8")
	ctpMauve    = lipgloss.Color("#cba6f7")
)

var (
	outgoingBubble = lipgloss.NewStyle().
			Foreground(ctpText).
			Background(ctpSurface1).
			Padding(0, 1)

	incomingBubble = lipgloss.NewStyle().
			Foreground(ctpText).
			Background(ctpSurface0).
			Padding(0, 1)

	pendingBubble = outgoingBubble.Foreground(ctpSubtext0).Italic(true)

	senderLabel = lipgloss.NewStyle().
			Foreground(ctpSubtext0).
			Bold(true)

	timestampLabel = lipgloss.NewStyle().
			Foreground(ctpOverlay0)

	unreadBadge = lipgloss.NewStyle().
			Foreground(ctpRed).
			Bold(true)

	onlineDot  = lipgloss.NewStyle().Foreground(ctpGreen)
	offlineDot = lipgloss.NewStyle().Foreground(ctpOverlay0)

	tableBorder = lipgloss.NewStyle().Foreground(ctpMauve)

	activeMarker = lipgloss.NewStyle().Foreground(ctpBlue).Bold(true)
)
