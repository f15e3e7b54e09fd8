// Package status is the terminal view of a running session: run flags, the
// countdown to the next send, the queued message and the activity log.
package status

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap/zapcore"

	"github.com/IRandonation/AutoTikTokSendComment/internal/activity"
	"github.com/IRandonation/AutoTikTokSendComment/internal/delivery"
	"github.com/IRandonation/AutoTikTokSendComment/internal/pilot"
	"github.com/IRandonation/AutoTikTokSendComment/internal/scheduler"
)

const refreshInterval = 250 * time.Millisecond

// Controller is the subset of pilot.Controller the view drives.
type Controller interface {
	ToggleSending(ctx context.Context) (bool, error)
	ToggleLiking(ctx context.Context) (bool, error)
	SendNow(ctx context.Context, message string) (delivery.Outcome, error)
	State() pilot.RunState
}

// EntrySource yields the newest activity lines.
type EntrySource interface {
	Entries(limit int) []activity.Entry
}

// StatusMsg carries a scheduler update into the program.
type StatusMsg scheduler.Status

// LogMsg signals that the activity log changed.
type LogMsg activity.Entry

type refreshMsg time.Time

type actionMsg struct{ err error }

// Model is the Bubble Tea model of the status view.
type Model struct {
	ctx     context.Context
	ctrl    Controller
	entries EntrySource
	keys    KeyMap
	help    help.Model
	input   textinput.Model

	composing bool
	state     pilot.RunState
	status    scheduler.Status
	lastErr   error
	width     int
	height    int
}

// New creates the view model. ctx bounds every action the view triggers.
func New(ctx context.Context, ctrl Controller, entries EntrySource) *Model {
	input := textinput.New()
	input.Placeholder = "Message to send now..."
	input.CharLimit = 200

	return &Model{
		ctx:     ctx,
		ctrl:    ctrl,
		entries: entries,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		input:   input,
		state:   ctrl.State(),
	}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m *Model) Init() tea.Cmd {
	return refresh()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StatusMsg:
		m.status = scheduler.Status(msg)
		m.state = m.ctrl.State()
		return m, nil

	case LogMsg:
		return m, nil

	case refreshMsg:
		m.state = m.ctrl.State()
		return m, refresh()

	case actionMsg:
		m.lastErr = msg.err
		m.state = m.ctrl.State()
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}

	if m.composing {
		switch {
		case key.Matches(msg, m.keys.Cancel):
			m.stopComposing()
			return m, nil
		case key.Matches(msg, m.keys.Submit):
			text := m.input.Value()
			m.stopComposing()
			return m, m.sendNow(text)
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.ToggleSend):
		return m, m.action(func(ctx context.Context) error {
			_, err := m.ctrl.ToggleSending(ctx)
			return err
		})
	case key.Matches(msg, m.keys.ToggleLike):
		return m, m.action(func(ctx context.Context) error {
			_, err := m.ctrl.ToggleLiking(ctx)
			return err
		})
	case key.Matches(msg, m.keys.Compose):
		m.composing = true
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) stopComposing() {
	m.composing = false
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) action(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg { return actionMsg{err: fn(ctx)} }
}

func (m *Model) sendNow(text string) tea.Cmd {
	return m.action(func(ctx context.Context) error {
		_, err := m.ctrl.SendNow(ctx, text)
		return err
	})
}

// Countdown renders the remaining time with one decimal, e.g. "8.3 s".
func Countdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1f s", d.Seconds())
}

func flag(on bool) string {
	if on {
		return onStyle.Render("ON")
	}
	return offStyle.Render("OFF")
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("autosend"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s   %s %s\n",
		labelStyle.Render("Sending:"), flag(m.state.Running),
		labelStyle.Render("Liking:"), flag(m.state.Liking))

	var panel strings.Builder
	switch {
	case !m.state.Running:
		panel.WriteString(labelStyle.Render("Stopped"))
	case m.status.Phase == scheduler.PhaseSending:
		fmt.Fprintf(&panel, "%s %s", labelStyle.Render("Sending:"), m.status.Current)
	case m.status.Phase == scheduler.PhaseCountingDown:
		fmt.Fprintf(&panel, "%s %s\n%s %s",
			labelStyle.Render("Next send in"), countdownStyle.Render(Countdown(m.status.Remaining)),
			labelStyle.Render("Next:"), m.status.Next)
	default:
		panel.WriteString(labelStyle.Render("Starting..."))
	}
	b.WriteString(panelStyle.Render(panel.String()))
	b.WriteString("\n")

	if m.composing {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	if m.lastErr != nil {
		b.WriteString(warnStyle.Render("! " + m.lastErr.Error()))
		b.WriteString("\n")
	}

	helpView := m.help.View(m.keys)
	used := lipgloss.Height(b.String()) + lipgloss.Height(helpView) + 1
	limit := 10
	if m.height > 0 {
		limit = m.height - used
	}
	if limit > 0 {
		for _, e := range m.entries.Entries(limit) {
			line := e.String()
			if e.Level >= zapcore.WarnLevel {
				line = warnStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(helpView)
	return b.String()
}
