package noticelist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/noticeboard/internal/model"
	"github.com/nhle/noticeboard/internal/theme"
)

// NoticeItem wraps a model.Notification so it can be used in a bubbles/list.
type NoticeItem struct {
	Notice model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i NoticeItem) FilterValue() string { return i.Notice.Title }

// Title returns the notice title for the list.
func (i NoticeItem) Title() string { return i.Notice.Title }

// Description returns a short summary line for the list.
func (i NoticeItem) Description() string {
	parts := []string{string(i.Notice.Audience), relativeTime(i.Notice.CreatedAt)}
	if i.Notice.CreatorName != "" {
		parts = append(parts, i.Notice.CreatorName)
	}
	return strings.Join(parts, " | ")
}

// NoticeDelegate implements list.ItemDelegate for rendering notices.
type NoticeDelegate struct{}

// Height returns the number of lines each item takes.
func (d NoticeDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d NoticeDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d NoticeDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notice line.
func (d NoticeDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ni, ok := item.(NoticeItem)
	if !ok {
		return
	}
	n := ni.Notice

	aud := string(n.Audience)
	if aud == "" {
		aud = "?"
	}
	audBadge := theme.AudienceStyle(aud).Render(strings.ToUpper(aud))

	byline := ""
	if n.CreatorName != "" {
		byline = theme.DimmedStyle.Render(" by " + n.CreatorName)
	}

	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(n.CreatedAt))

	line := fmt.Sprintf("● %s %s%s  %s", audBadge, n.Title, byline, timeStr)

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("Jan 02")
	}
}
