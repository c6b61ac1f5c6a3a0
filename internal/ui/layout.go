package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/noticeboard/internal/theme"
)

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the top bar: title, optional unread badge on the
// left and a status string on the right.
func (l Layout) RenderHeader(title, badge, status string) string {
	left := theme.HeaderStyle.Render(title)
	if badge != "" {
		left = lipgloss.JoinHorizontal(lipgloss.Top, left, theme.BadgeStyle.Render(badge))
	}

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(status)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		left,
		fill(l.Width-lipgloss.Width(left)-lipgloss.Width(statusRendered), theme.HeaderStyle),
		statusRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		rendered,
		fill(l.Width-lipgloss.Width(rendered), theme.StatusBarStyle),
	)
}

// RenderToast right-aligns a boxed toast within the layout width.
func (l Layout) RenderToast(body string) string {
	maxWidth := l.Width / 2
	if maxWidth < 20 {
		maxWidth = l.Width
	}
	box := theme.ToastStyle.Width(maxWidth).Render(body)
	return lipgloss.PlaceHorizontal(l.Width, lipgloss.Right, box)
}

// RenderWithFrame composes a full terminal view. The content is padded
// or clipped so the status bar stays pinned to the bottom row, and an
// optional toast is drawn just above it.
func (l Layout) RenderWithFrame(header, content, toast, statusBar string) string {
	height := l.ContentHeight()
	if toast != "" {
		height -= lipgloss.Height(toast)
	}
	if height < 0 {
		height = 0
	}

	body := lipgloss.NewStyle().
		Width(l.Width).
		Height(height).
		MaxHeight(height).
		Render(content)

	parts := []string{header, body}
	if toast != "" {
		parts = append(parts, toast)
	}
	parts = append(parts, statusBar)

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func fill(width int, style lipgloss.Style) string {
	if width < 0 {
		width = 0
	}
	return style.Render(
		lipgloss.NewStyle().
			Width(width).
			Background(style.GetBackground()).
			Render(""),
	)
}
