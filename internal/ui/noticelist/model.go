package noticelist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/noticeboard/internal/keys"
	"github.com/nhle/noticeboard/internal/model"
	"github.com/nhle/noticeboard/internal/theme"
)

// ClosedMsg is sent when the user closes the panel.
type ClosedMsg struct{}

// Model is the notification panel: a list of notices above the body of
// the selected one.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates a new notice panel model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, NoticeDelegate{}, width, listHeight(height))
	l.Title = "Notices"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// SetItems replaces the displayed notices, keeping the cursor in range.
func (m *Model) SetItems(items []model.Notification) tea.Cmd {
	listItems := make([]list.Item, len(items))
	for i, n := range items {
		listItems[i] = NoticeItem{Notice: n}
	}
	return m.list.SetItems(listItems)
}

// Len returns the number of displayed notices.
func (m Model) Len() int {
	return len(m.list.Items())
}

// Selected returns the notice under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	item, ok := m.list.SelectedItem().(NoticeItem)
	if !ok {
		return model.Notification{}, false
	}
	return item.Notice, true
}

// Update handles messages for the panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		return m, func() tea.Msg { return ClosedMsg{} }
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the panel.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notices for you right now.")
	}

	body := ""
	if n, ok := m.Selected(); ok {
		body = m.renderBody(n)
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), body)
}

func (m Model) renderBody(n model.Notification) string {
	title := lipgloss.NewStyle().Bold(true).Render(n.Title)

	meta := n.CreatedAt.Local().Format("Mon Jan 02 15:04")
	if n.CreatorName != "" {
		meta += " · " + n.CreatorName
	}
	if n.ExpiresAt != nil {
		meta += " · until " + n.ExpiresAt.Local().Format("Jan 02")
	}

	return theme.PanelStyle.
		Width(max(m.width-4, 10)).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			title,
			theme.DimmedStyle.Render(meta),
			"",
			n.Message,
		))
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, listHeight(height))
}

// listHeight leaves roughly a third of the panel for the message body.
func listHeight(height int) int {
	h := height * 2 / 3
	if h < 3 {
		return 3
	}
	return h
}
