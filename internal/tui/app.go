// Package tui is the interactive picker for confirming manual hand-offs.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/handoff"
	"github.com/kingrea/crosspost/internal/ledger"
)

type appState int

const (
	statePick appState = iota
	stateReference
)

const maxLogLines = 8

// Backend lists and confirms hand-offs. *orchestrator.Orchestrator
// satisfies it.
type Backend interface {
	Pending() ([]handoff.Staged, error)
	Confirm(ctx context.Context, sequence int, platform catalog.Platform, reference string) (ledger.Record, error)
}

type pendingMsg struct {
	items []handoff.Staged
	err   error
}

type confirmedMsg struct {
	staged handoff.Staged
	record ledger.Record
	err    error
}

// pendingItem implements list.Item for a staged hand-off.
type pendingItem struct {
	staged handoff.Staged
}

func (i pendingItem) Title() string {
	return fmt.Sprintf("#%d %s · %s", i.staged.Sequence, i.staged.Platform.Label(), i.staged.Title)
}

func (i pendingItem) Description() string {
	if i.staged.StagedAt.IsZero() {
		return i.staged.Path
	}
	return fmt.Sprintf("staged %s · %s", i.staged.StagedAt.Local().Format("Jan 02 15:04"), i.staged.Path)
}

func (i pendingItem) FilterValue() string { return i.staged.Title }

// App is the bubbletea model.
type App struct {
	backend Backend
	ctx     context.Context
	now     func() time.Time

	state     appState
	menu      list.Model
	input     textinput.Model
	selected  *handoff.Staged
	log       []string
	confirmed int
	err       string

	width  int
	height int
}

// AppOption customizes the App.
type AppOption func(*App)

// WithClock overrides log timestamps.
func WithClock(now func() time.Time) AppOption {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

// NewApp builds the picker.
func NewApp(ctx context.Context, backend Backend, opts ...AppOption) *App {
	menu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	menu.Title = "Pending hand-offs"
	menu.SetShowStatusBar(false)
	input := textinput.New()
	input.Placeholder = "https://… (optional)"
	input.CharLimit = 2048
	a := &App{
		backend: backend,
		ctx:     ctx,
		now:     time.Now,
		menu:    menu,
		input:   input,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the program on the terminal and returns how many hand-offs
// were confirmed.
func Run(ctx context.Context, backend Backend) (int, error) {
	app := NewApp(ctx, backend)
	model, err := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return app.confirmed, err
	}
	if final, ok := model.(*App); ok {
		return final.confirmed, nil
	}
	return app.confirmed, nil
}

// Confirmed reports how many hand-offs were confirmed this session.
func (a *App) Confirmed() int {
	return a.confirmed
}

func (a *App) logf(format string, args ...any) {
	line := a.now().Format("15:04:05") + " " + fmt.Sprintf(format, args...)
	a.log = append(a.log, line)
	if len(a.log) > maxLogLines {
		a.log = a.log[len(a.log)-maxLogLines:]
	}
}

func (a *App) fetchPending() tea.Cmd {
	return func() tea.Msg {
		items, err := a.backend.Pending()
		return pendingMsg{items: items, err: err}
	}
}

func (a *App) confirm(staged handoff.Staged, reference string) tea.Cmd {
	return func() tea.Msg {
		rec, err := a.backend.Confirm(a.ctx, staged.Sequence, staged.Platform, reference)
		return confirmedMsg{staged: staged, record: rec, err: err}
	}
}

// Init loads the pending list.
func (a *App) Init() tea.Cmd {
	return a.fetchPending()
}

// Update handles one message.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.menu.SetSize(max(0, msg.Width-6), max(0, msg.Height-12))
		return a, nil

	case pendingMsg:
		if msg.err != nil {
			a.err = msg.err.Error()
			return a, nil
		}
		a.err = ""
		items := make([]list.Item, len(msg.items))
		for i, staged := range msg.items {
			items[i] = pendingItem{staged: staged}
		}
		return a, a.menu.SetItems(items)

	case confirmedMsg:
		a.state = statePick
		a.selected = nil
		a.input.Blur()
		a.input.SetValue("")
		if msg.err != nil {
			a.err = msg.err.Error()
			a.logf("failed %d/%s: %v", msg.staged.Sequence, msg.staged.Platform, msg.err)
		} else {
			a.err = ""
			a.confirmed++
			a.logf("confirmed %d/%s", msg.staged.Sequence, msg.staged.Platform)
		}
		return a, a.fetchPending()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		}
		if a.state == stateReference {
			return a.updateReference(msg)
		}
		if a.menu.FilterState() != list.Filtering {
			switch msg.String() {
			case "q", "esc":
				return a, tea.Quit
			case "r":
				return a, a.fetchPending()
			case "enter":
				item, ok := a.menu.SelectedItem().(pendingItem)
				if !ok {
					return a, nil
				}
				staged := item.staged
				a.selected = &staged
				a.state = stateReference
				a.input.SetValue("")
				return a, a.input.Focus()
			}
		}
	}

	if a.state == stateReference {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}
	var cmd tea.Cmd
	a.menu, cmd = a.menu.Update(msg)
	return a, cmd
}

func (a *App) updateReference(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.state = statePick
		a.selected = nil
		a.input.Blur()
		return a, nil
	case "enter":
		if a.selected == nil {
			a.state = statePick
			return a, nil
		}
		return a, a.confirm(*a.selected, strings.TrimSpace(a.input.Value()))
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// View renders the picker with the session log beneath it.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render("CROSSPOST · confirm hand-offs")

	var main string
	switch a.state {
	case stateReference:
		main = a.renderReference()
	default:
		if len(a.menu.Items()) == 0 {
			main = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("Nothing is waiting for confirmation.")
		} else {
			main = a.menu.View()
		}
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(max(20, width-4)).
		Render(main)

	parts := []string{header, box}
	if a.err != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Render(a.err))
	}
	if panel := a.renderLogPanel(); panel != "" {
		parts = append(parts, panel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Render("enter select · r refresh · / filter · q quit")
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (a *App) renderReference() string {
	if a.selected == nil {
		return ""
	}
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("Confirm #%d on %s", a.selected.Sequence, a.selected.Platform.Label()))
	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render("Paste the published URL, then enter. esc goes back.")
	return lipgloss.JoinVertical(lipgloss.Left, title, a.selected.Title, "", a.input.View(), "", hint)
}

func (a *App) renderLogPanel() string {
	if len(a.log) == 0 {
		return ""
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render("LOG")
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(a.log, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(head + "\n" + body)
}
