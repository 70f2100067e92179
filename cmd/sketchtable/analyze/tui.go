package analyzecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	bubbletable "github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/papercomputeco/sketchtable/pkg/cliui"
	"github.com/papercomputeco/sketchtable/pkg/stream"
	"github.com/papercomputeco/sketchtable/pkg/table"
	"github.com/papercomputeco/sketchtable/pkg/usage"
)

const (
	maxColumnWidth = 32
	chromeHeight   = 6
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	paneStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("237"))
	focusedStyle = paneStyle.BorderForeground(lipgloss.Color("214"))
)

type pane int

const (
	paneReply pane = iota
	paneTable
)

type analyzeKeyMap struct {
	Cancel key.Binding
	Rerun  key.Binding
	Focus  key.Binding
	Up     key.Binding
	Down   key.Binding
	Quit   key.Binding
}

func (k analyzeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Cancel, k.Rerun, k.Focus, k.Down, k.Up, k.Quit}
}

func (k analyzeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Cancel, k.Rerun, k.Focus}, {k.Down, k.Up, k.Quit}}
}

func defaultKeyMap() analyzeKeyMap {
	return analyzeKeyMap{
		Cancel: key.NewBinding(key.WithKeys("c", "esc"), key.WithHelp("c", "cancel")),
		Rerun:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rerun")),
		Focus:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
		Up:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type streamStartedMsg struct {
	events <-chan stream.Event
}

type streamEventMsg struct {
	event stream.Event
}

type streamClosedMsg struct{}

type startFailedMsg struct {
	err error
}

type fileChangedMsg struct{}

type analyzeModel struct {
	ctx     context.Context
	runner  runner
	changes <-chan struct{}

	imagePath string
	prompt    string

	events    <-chan stream.Event
	starting  bool
	streaming bool
	restart   bool
	status    stream.State
	err       error
	runs      int

	reply   string
	percent float64
	usage   usage.State
	table   table.Table

	progress progress.Model
	viewport viewport.Model
	grid     bubbletable.Model
	spinner  spinner.Model
	focus    pane
	keys     analyzeKeyMap
	help     help.Model

	width  int
	height int
}

func runTUI(ctx context.Context, out io.Writer, r *analysis, changes <-chan struct{}) error {
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.TrueColor))
	renderer.SetColorProfile(termenv.TrueColor)
	lipgloss.SetDefaultRenderer(renderer)

	model := newAnalyzeModel(ctx, r, changes, r.imagePath, r.params.Prompt)

	program := bubbletea.NewProgram(model,
		bubbletea.WithContext(ctx),
		bubbletea.WithAltScreen(),
	)
	final, err := program.Run()

	if err != nil && !errors.Is(err, bubbletea.ErrProgramKilled) {
		return err
	}
	if m, ok := final.(analyzeModel); ok {
		fmt.Fprint(out, m.summary())
	}
	return nil
}

func newAnalyzeModel(ctx context.Context, r runner, changes <-chan struct{}, imagePath, prompt string) analyzeModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = okStyle

	grid := bubbletable.New(bubbletable.WithHeight(10))
	grid.SetStyles(tableStyles(false))

	return analyzeModel{
		ctx:       ctx,
		runner:    r,
		changes:   changes,
		imagePath: imagePath,
		prompt:    prompt,
		status:    stream.StateIdle,
		starting:  true,
		progress:  progress.New(progress.WithDefaultGradient()),
		viewport:  viewport.New(80, 10),
		grid:      grid,
		spinner:   s,
		focus:     paneReply,
		keys:      defaultKeyMap(),
		help:      help.New(),
	}
}

func (m analyzeModel) Init() bubbletea.Cmd {
	return bubbletea.Batch(m.spinner.Tick, startCmd(m.ctx, m.runner), waitForChange(m.changes))
}

func (m analyzeModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case streamStartedMsg:
		m.events = msg.events
		m.starting = false
		m.streaming = true
		m.status = stream.StateStreaming
		m.err = nil
		m.runs++
		m.reply = ""
		m.percent = 0
		m.usage = usage.State{}
		m.table = table.Table{}
		m.grid.SetRows(nil)
		m.grid.SetColumns(nil)
		m.viewport.SetContent("")
		if m.restart {
			m.runner.cancel()
		}
		return m, waitForEvent(m.events)

	case startFailedMsg:
		m.starting = false
		m.restart = false
		m.status = stream.StateFailed
		m.err = msg.err
		return m, nil

	case streamEventMsg:
		m.apply(msg.event)
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.events = nil
		m.streaming = false
		if m.restart {
			m.restart = false
			m.starting = true
			return m, startCmd(m.ctx, m.runner)
		}
		return m, nil

	case fileChangedMsg:
		return m.rerun(waitForChange(m.changes))

	case spinner.TickMsg:
		var cmd bubbletea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case bubbletea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m analyzeModel) handleKey(msg bubbletea.KeyMsg) (bubbletea.Model, bubbletea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.runner.cancel()
		return m, bubbletea.Quit
	case key.Matches(msg, m.keys.Cancel):
		if m.streaming {
			m.restart = false
			m.runner.cancel()
		}
		return m, nil
	case key.Matches(msg, m.keys.Rerun):
		return m.rerun(nil)
	case key.Matches(msg, m.keys.Focus):
		if m.focus == paneReply {
			m.focus = paneTable
			m.grid.Focus()
		} else {
			m.focus = paneReply
			m.grid.Blur()
		}
		m.grid.SetStyles(tableStyles(m.focus == paneTable))
		return m, nil
	}

	var cmd bubbletea.Cmd
	if m.focus == paneTable {
		m.grid, cmd = m.grid.Update(msg)
	} else {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// rerun starts a new stream, cancelling the running one first. The new
// stream is started once the old channel is closed. A start still in
// flight is cancelled as soon as it reports back.
func (m analyzeModel) rerun(next bubbletea.Cmd) (bubbletea.Model, bubbletea.Cmd) {
	switch {
	case m.streaming:
		m.restart = true
		m.runner.cancel()
		return m, next
	case m.starting:
		m.restart = true
		return m, next
	}
	m.starting = true
	return m, bubbletea.Batch(startCmd(m.ctx, m.runner), next)
}

func (m *analyzeModel) apply(ev stream.Event) {
	switch ev.Kind {
	case stream.EventContent:
		m.reply += ev.Delta
		m.viewport.SetContent(m.wrapReply())
		m.viewport.GotoBottom()
	case stream.EventProgress:
		m.percent = float64(ev.Progress) / 100
	case stream.EventUsage:
		m.usage = ev.Usage
	case stream.EventTable:
		m.setTable(ev.Table)
	case stream.EventCompleted:
		m.status = stream.StateCompleted
		m.percent = 1
	case stream.EventFailed:
		m.status = stream.StateFailed
		m.err = ev.Err
	}
}

// setTable replaces the grid contents. Rows are cleared before the columns
// change so the grid never renders rows wider than its columns.
func (m *analyzeModel) setTable(t table.Table) {
	m.table = t
	titles := t.Titles()
	cells := t.Rectangular()

	columns := make([]bubbletable.Column, len(titles))
	for i, title := range titles {
		width := lipgloss.Width(title)
		for _, row := range cells {
			width = max(width, lipgloss.Width(row[i]))
		}
		columns[i] = bubbletable.Column{Title: title, Width: min(width, maxColumnWidth)}
	}

	rows := make([]bubbletable.Row, len(cells))
	for i, row := range cells {
		rows[i] = bubbletable.Row(row)
	}

	m.grid.SetRows(nil)
	m.grid.SetColumns(columns)
	m.grid.SetRows(rows)
}

func (m *analyzeModel) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}

	bodyHeight := max(m.height-chromeHeight-2, 3)
	replyWidth := max(m.width*11/20-2, 10)

	m.viewport.Width = replyWidth
	m.viewport.Height = bodyHeight
	m.viewport.SetContent(m.wrapReply())

	m.grid.SetWidth(max(m.width-replyWidth-6, 10))
	m.grid.SetHeight(bodyHeight)

	m.progress.Width = max(m.width-24, 10)
}

func (m analyzeModel) wrapReply() string {
	return lipgloss.NewStyle().Width(m.viewport.Width).Render(m.reply)
}

func (m analyzeModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("sketchtable"))
	b.WriteString("  ")
	b.WriteString(mutedStyle.Render(filepath.Base(m.imagePath)))
	b.WriteString("  ")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	if m.prompt != "" {
		b.WriteString(mutedStyle.Render("> " + m.prompt))
	}
	b.WriteString("\n")
	b.WriteString(m.progress.ViewAs(m.percent))
	b.WriteString("\n")

	replyPane, tablePane := paneStyle, paneStyle
	if m.focus == paneReply {
		replyPane = focusedStyle
	} else {
		tablePane = focusedStyle
	}

	right := mutedStyle.Render("no table yet")
	if !m.table.Empty() {
		right = m.grid.View()
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		replyPane.Render(m.viewport.View()),
		tablePane.Render(right),
	))
	b.WriteString("\n")

	b.WriteString(m.usage.Label())
	b.WriteString("\n")
	if m.err != nil && m.status == stream.StateFailed {
		b.WriteString(failStyle.Render("error: " + m.err.Error()))
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(m.help.View(m.keys)))

	return b.String()
}

func (m analyzeModel) statusLine() string {
	switch m.status {
	case stream.StateStreaming:
		return m.spinner.View() + " streaming"
	case stream.StateCompleted:
		return okStyle.Render("✓ completed")
	case stream.StateFailed:
		if errors.Is(m.err, context.Canceled) {
			return mutedStyle.Render("cancelled")
		}
		return failStyle.Render("✗ failed")
	default:
		return mutedStyle.Render("idle")
	}
}

// summary is printed after the alt screen closes so the result stays in the
// scrollback.
func (m analyzeModel) summary() string {
	var b strings.Builder
	if !m.table.Empty() {
		b.WriteString(cliui.RenderTable(m.table.Titles(), m.table.Rectangular()))
		b.WriteString("\n")
	}
	if m.runs > 0 {
		b.WriteString(m.usage.Label())
		b.WriteString("\n")
	}
	if m.err != nil && !errors.Is(m.err, context.Canceled) {
		b.WriteString(cliui.FailMark + " " + m.err.Error() + "\n")
	}
	return b.String()
}

func tableStyles(focused bool) bubbletable.Styles {
	s := bubbletable.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("237")).
		BorderBottom(true).
		Bold(true)
	if focused {
		s.Selected = s.Selected.Foreground(lipgloss.Color("235")).Background(lipgloss.Color("214"))
	} else {
		s.Selected = lipgloss.NewStyle()
	}
	return s
}

func startCmd(ctx context.Context, r runner) bubbletea.Cmd {
	return func() bubbletea.Msg {
		events, err := r.start(ctx)
		if err != nil {
			return startFailedMsg{err: err}
		}
		return streamStartedMsg{events: events}
	}
}

// waitForEvent reads one event. Every event is followed by another
// waitForEvent until the channel is closed.
func waitForEvent(events <-chan stream.Event) bubbletea.Cmd {
	if events == nil {
		return nil
	}
	return func() bubbletea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return streamEventMsg{event: ev}
	}
}

func waitForChange(changes <-chan struct{}) bubbletea.Cmd {
	if changes == nil {
		return nil
	}
	return func() bubbletea.Msg {
		<-changes
		return fileChangedMsg{}
	}
}
