package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/noticeboard/internal/keys"
	"github.com/nhle/noticeboard/internal/model"
	notifysync "github.com/nhle/noticeboard/internal/sync"
	"github.com/nhle/noticeboard/internal/theme"
	"github.com/nhle/noticeboard/internal/ui"
	helpview "github.com/nhle/noticeboard/internal/ui/help"
	"github.com/nhle/noticeboard/internal/ui/noticelist"
)

// actionTimeout bounds a refresh or mark-read triggered from the keyboard.
const actionTimeout = 30 * time.Second

// Controller is the part of the notification poller the UI drives.
type Controller interface {
	Refresh(ctx context.Context) error
	MarkAllAsRead(ctx context.Context) error
	DismissToast()
}

// snapshotMsg carries a published poller snapshot into the UI.
type snapshotMsg notifysync.Snapshot

// snapshotsClosedMsg is sent once the subscription channel closes.
type snapshotsClosedMsg struct{}

// actionDoneMsg reports the outcome of a refresh or mark-read.
type actionDoneMsg struct {
	action string
	err    error
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewHome ViewState = iota
	ViewPanel
	ViewHelp
)

// Model is the root Bubble Tea model. It renders whatever the poller
// publishes and forwards user actions back to it; it never fetches on
// its own.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	ctrl         Controller
	updates      <-chan notifysync.Snapshot
	snap         notifysync.Snapshot
	panel        noticelist.Model
	helpView     helpview.Model
	spinner      spinner.Model
	userName     string
	ready        bool
	flash        string
}

// New creates the root model. updates is usually the channel returned by
// Poller.Subscribe.
func New(ctrl Controller, updates <-chan notifysync.Snapshot, userName string) Model {
	k := keys.DefaultKeyMap()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorWhite)

	return Model{
		currentView: ViewHome,
		keys:        k,
		ctrl:        ctrl,
		updates:     updates,
		panel:       noticelist.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		spinner:     sp,
		userName:    userName,
	}
}

// Init starts listening for snapshots and animating the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForSnapshot(), m.spinner.Tick)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.panel.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		m.helpView.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		return m, nil

	case snapshotMsg:
		m.snap = notifysync.Snapshot(msg)
		cmd := m.panel.SetItems(m.snap.Items)
		if m.snap.State == notifysync.StateIdle && m.currentView == ViewPanel {
			m.currentView = ViewHome
		}
		return m, tea.Batch(cmd, m.waitForSnapshot())

	case snapshotsClosedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case actionDoneMsg:
		if msg.err != nil {
			m.flash = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else {
			m.flash = ""
		}
		return m, nil

	case noticelist.ClosedMsg:
		m.currentView = ViewHome
		return m, nil

	case tea.KeyMsg:
		// Global keys that work regardless of current view
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			return m, m.refresh()

		case key.Matches(msg, m.keys.Dismiss):
			m.ctrl.DismissToast()
			return m, nil

		case key.Matches(msg, m.keys.Open):
			if m.currentView == ViewHome && m.snap.State == notifysync.StatePolling {
				m.currentView = ViewPanel
				return m, m.markAllAsRead()
			}

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewPanel:
		m.panel, cmd = m.panel.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Notices", m.badge(), m.syncStatus())

	toast := ""
	if t := m.snap.ActiveToast; t != nil {
		toast = m.layout.RenderToast(renderToast(*t))
	}

	statusBar := m.layout.RenderStatusBar(m.keyHints())
	return m.layout.RenderWithFrame(header, m.renderContent(), toast, statusBar)
}

// badge returns the "[N new]" marker, or "" when nothing is unread.
func (m Model) badge() string {
	if m.snap.UnreadCount <= 0 {
		return ""
	}
	return fmt.Sprintf("[%d new]", m.snap.UnreadCount)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewPanel:
		return m.panel.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return m.renderHome()
	}
}

func (m Model) renderHome() string {
	style := lipgloss.NewStyle().
		Width(m.layout.ContentWidth()).
		Height(m.layout.ContentHeight()).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.snap.State != notifysync.StatePolling {
		return style.Render("Signed out.\n\nRun 'noticeboard login' to see institute notices.")
	}

	who := string(m.snap.Role)
	if m.userName != "" {
		who = fmt.Sprintf("%s (%s)", m.userName, m.snap.Role)
	}

	var summary string
	switch {
	case len(m.snap.Items) == 0 && m.snap.LastFetched.IsZero():
		summary = "Loading notices..."
	case len(m.snap.Items) == 0:
		summary = "No notices for you right now."
	case m.snap.UnreadCount > 0:
		summary = fmt.Sprintf("%d notices, %d new.", len(m.snap.Items), m.snap.UnreadCount)
	default:
		summary = fmt.Sprintf("%d notices, all read.", len(m.snap.Items))
	}

	return style.Render(fmt.Sprintf("Signed in as %s\n\n%s\n\nPress enter to open.", who, summary))
}

// syncStatus returns a short string describing the poller state.
func (m Model) syncStatus() string {
	switch {
	case m.snap.State != notifysync.StatePolling:
		return "signed out"
	case m.snap.Loading:
		return m.spinner.View() + " loading"
	case m.snap.Error != "":
		return "⚠ offline"
	case !m.snap.LastFetched.IsZero():
		return "updated " + m.snap.LastFetched.Local().Format("15:04")
	default:
		return ""
	}
}

// keyHints returns the status bar text. Errors take precedence over hints.
func (m Model) keyHints() string {
	if m.snap.Error != "" {
		return theme.ErrorStyle.Render(m.snap.Error)
	}
	if m.flash != "" {
		return theme.ErrorStyle.Render(m.flash)
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewPanel:
		return "j/k move | esc close | r refresh | q quit"
	default:
		return m.helpView.ShortView()
	}
}

func renderToast(n model.Notification) string {
	title := lipgloss.NewStyle().Bold(true).Render("New: " + n.Title)
	if n.Message == "" {
		return title
	}
	msg := n.Message
	if r := []rune(msg); len(r) > 80 {
		msg = string(r[:79]) + "…"
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, msg)
}

// waitForSnapshot returns a tea.Cmd that waits for the next published
// snapshot. It must be re-issued after each snapshotMsg.
func (m Model) waitForSnapshot() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return snapshotsClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m Model) refresh() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		// Fetch failures already show up in the snapshot.
		_ = ctrl.Refresh(ctx)
		return actionDoneMsg{action: "refresh"}
	}
}

func (m Model) markAllAsRead() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{action: "mark read", err: ctrl.MarkAllAsRead(ctx)}
	}
}
