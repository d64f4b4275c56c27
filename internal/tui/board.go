// internal/tui/board.go
// Package tui renders live frame progress for a generate run as a full-screen
// Bubble Tea board.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/atelier/internal/pipeline"
	"github.com/mwiater/atelier/internal/run"
)

const (
	labelWidth    = 18
	defaultWidth  = 100
	critiqueCells = 160
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Width(labelWidth)
	faintStyle  = lipgloss.NewStyle().Faint(true)
	bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("124")).Padding(0, 1)
	chipStyles  = map[chipKind]lipgloss.Style{
		chipQueued:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Background(lipgloss.Color("238")).Padding(0, 1),
		chipRunning: lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("33")).Padding(0, 1),
		chipDone:    lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("34")).Padding(0, 1),
		chipSkipped: lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Background(lipgloss.Color("236")).Padding(0, 1),
		chipError:   lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("160")).Padding(0, 1),
	}
)

type chipKind int

const (
	chipQueued chipKind = iota
	chipRunning
	chipDone
	chipSkipped
	chipError
)

// Messages delivered to the board from the generate goroutine.
type (
	eventMsg   pipeline.Event
	runDoneMsg struct {
		result *run.Result
		err    error
	}
)

// frameRow is the board's view of one frame.
type frameRow struct {
	index    int
	label    string
	status   pipeline.Status
	message  string
	critique string
	width    int
	height   int
}

func (r frameRow) chip() chipKind {
	switch {
	case r.status.Stage == pipeline.StageError:
		return chipError
	case r.status.Stage == pipeline.StageDone:
		return chipDone
	case r.status.Stage == pipeline.StageQueued || r.status.Stage == "":
		return chipQueued
	case r.status.Skipped:
		return chipSkipped
	default:
		return chipRunning
	}
}

type model struct {
	prompt string
	cancel context.CancelFunc

	rows    []frameRow
	spinner spinner.Model
	bar     progress.Model

	width, height int
	startedAt     time.Time
	cancelling    bool
	finished      bool

	result *run.Result
	err    error
}

func newModel(prompt string, frames int, cancel context.CancelFunc) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 24

	rows := make([]frameRow, frames)
	for i := range rows {
		rows[i] = frameRow{index: i, label: fmt.Sprintf("Frame %d", i+1), status: pipeline.Status{Stage: pipeline.StageQueued}}
	}
	return &model{
		prompt:    prompt,
		cancel:    cancel,
		rows:      rows,
		spinner:   s,
		bar:       bar,
		width:     defaultWidth,
		startedAt: time.Now(),
	}
}

func (m *model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.finished {
				return m, tea.Quit
			}
			if !m.cancelling && m.cancel != nil {
				m.cancelling = true
				m.cancel()
			}
		}
		return m, nil

	case eventMsg:
		m.apply(pipeline.Event(msg))
		return m, nil

	case runDoneMsg:
		m.finished = true
		m.result, m.err = msg.result, msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) row(index int) *frameRow {
	for len(m.rows) <= index {
		n := len(m.rows)
		m.rows = append(m.rows, frameRow{index: n, label: fmt.Sprintf("Frame %d", n+1)})
	}
	return &m.rows[index]
}

func (m *model) apply(e pipeline.Event) {
	r := m.row(e.FrameIndex)
	if e.Label != "" {
		r.label = e.Label
	}
	switch e.Kind {
	case pipeline.EventStage:
		if r.status.Stage.Terminal() {
			return
		}
		r.status = e.Status()
		r.message = e.Reason
	case pipeline.EventPreview, pipeline.EventResult:
		r.width, r.height = e.Width, e.Height
	case pipeline.EventCritique:
		r.critique = e.Text
	case pipeline.EventError:
		r.message = e.Message
	}
}

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("atelier") + "  " + faintStyle.Render(clip(m.prompt, max(20, m.width-12))) + "\n\n")

	detailWidth := max(20, m.width-labelWidth-m.bar.Width-20)
	for _, r := range m.rows {
		indicator := " "
		if r.chip() == chipRunning {
			indicator = m.spinner.View()
		}
		chip := chipStyles[r.chip()].Render(string(r.status.Stage))
		line := fmt.Sprintf("%s %s %s %s", indicator, labelStyle.Render(clip(r.label, labelWidth)), m.bar.ViewAs(r.status.Progress), chip)
		if r.width > 0 && r.height > 0 {
			line += faintStyle.Render(fmt.Sprintf(" %dx%d", r.width, r.height))
		}
		if r.message != "" {
			line += "  " + faintStyle.Render(clip(firstLine(r.message), detailWidth))
		}
		b.WriteString(line + "\n")
		if r.critique != "" {
			critique := wrapCritique(r.critique, critiqueCells, max(20, m.width-6))
			b.WriteString(faintStyle.Render(indent(critique, "    ")) + "\n")
		}
	}

	b.WriteString("\n")
	if m.cancelling && !m.finished {
		b.WriteString(bannerStyle.Render("cancelling: finished frames are kept") + "\n")
	}
	elapsed := time.Since(m.startedAt).Round(time.Second)
	b.WriteString(faintStyle.Render(fmt.Sprintf("%s elapsed  q cancel", elapsed)))
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// Generate starts a run and reports its events to sink.
type Generate func(ctx context.Context, sink pipeline.Sink) (*run.Result, error)

// Run shows the board while gen executes and returns gen's result. Quitting the
// board cancels the run; the board stays up until the run unwinds.
func Run(ctx context.Context, prompt string, frames int, gen Generate) (*run.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newModel(prompt, frames, cancel)
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		res, err := gen(ctx, func(e pipeline.Event) { p.Send(eventMsg(e)) })
		p.Send(runDoneMsg{result: res, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("frame board: %w", err)
	}
	fm, ok := final.(*model)
	if !ok || !fm.finished {
		return nil, errors.New("frame board exited before the run finished")
	}
	return fm.result, fm.err
}
