package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ProgressMsg reports the number of completed units of work.
type ProgressMsg int

// DoneMsg ends the progress display.
type DoneMsg struct{}

// ProgressModel is a Bubble Tea model showing a progress bar for a fixed
// amount of work. Ctrl+C cancels the work.
type ProgressModel struct {
	Label     string
	Total     int
	Done      int
	Cancelled bool
	bar       progress.Model
	cancel    context.CancelFunc
}

// NewProgressModel creates a progress model for total units of work.
func NewProgressModel(label string, total int, cancel context.CancelFunc) ProgressModel {
	return ProgressModel{
		Label:  label,
		Total:  total,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth(GetTerminalWidth()))),
		cancel: cancel,
	}
}

// Init implements tea.Model
func (m ProgressModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			m.Cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = barWidth(msg.Width)
	case ProgressMsg:
		if int(msg) > m.Done {
			m.Done = int(msg)
		}
	case DoneMsg:
		m.Done = m.Total
		return m, tea.Quit
	}
	return m, nil
}

// Percent returns the completed fraction (0.0 - 1.0).
func (m ProgressModel) Percent() float64 {
	if m.Total <= 0 {
		return 1
	}
	return float64(m.Done) / float64(m.Total)
}

// View implements tea.Model
func (m ProgressModel) View() string {
	var b strings.Builder

	if m.Label != "" {
		b.WriteString(ProgressLabelStyle.Render(m.Label))
		b.WriteString("\n\n")
	}

	line := fmt.Sprintf("%s  %3.0f%%  [%d/%d]", m.bar.ViewAs(m.Percent()), m.Percent()*100, m.Done, m.Total)
	b.WriteString(lipgloss.NewStyle().PaddingLeft(2).Render(line))
	b.WriteString("\n")

	if m.Cancelled {
		b.WriteString(NoteStyle.Render("  (cancelled)"))
		b.WriteString("\n")
	}
	return b.String()
}

func barWidth(termWidth int) int {
	w := termWidth - 20 // Leave room for percentage and counter
	if w < 20 {
		w = 20
	}
	if w > 50 {
		w = 50
	}
	return w
}

// Task is work that reports how many of its units are complete.
// report may be called from several goroutines.
type Task func(ctx context.Context, report func(done int))

// RunWithProgress runs task while rendering a progress bar to out. When out
// is not a terminal the task runs without any display. It returns
// context.Canceled if the user interrupted the task.
func RunWithProgress(ctx context.Context, out io.Writer, label string, total int, task Task) error {
	if out == nil {
		out = os.Stdout
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if f, ok := out.(*os.File); !ok || f != os.Stdout || !IsTerminal() {
		task(ctx, func(int) {})
		return ctx.Err()
	}

	model := NewProgressModel(label, total, cancel)
	p := tea.NewProgram(model, tea.WithOutput(out))

	// Only forward whole-percent changes to keep the render loop idle.
	var lastPercent atomic.Int64
	lastPercent.Store(-1)
	report := func(done int) {
		pct := int64(100)
		if total > 0 {
			pct = int64(done * 100 / total)
		}
		if prev := lastPercent.Load(); pct > prev && lastPercent.CompareAndSwap(prev, pct) {
			p.Send(ProgressMsg(done))
		}
	}

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		task(ctx, report)
		p.Send(DoneMsg{})
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		<-finished
		return fmt.Errorf("progress display failed: %w", err)
	}

	if m, ok := final.(ProgressModel); ok && m.Cancelled {
		<-finished
		return context.Canceled
	}
	<-finished
	return nil
}
