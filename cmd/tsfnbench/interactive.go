package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type scenarioStartMsg struct {
	producers int
	started   time.Time
}

type deliveredMsg struct {
	producers int
	delivered int64
}

type resultMsg struct {
	result Result
}

type doneMsg struct {
	err error
}

type benchModel struct {
	err       error
	cfg       benchConfig
	started   time.Time
	results   []Result
	spinner   spinner.Model
	bar       progress.Model
	current   int
	delivered int64
	done      bool
	cancel    context.CancelFunc
}

func newBenchModel(cfg benchConfig, cancel context.CancelFunc) *benchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = labelStyle

	return &benchModel{
		cfg:     cfg,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		cancel:  cancel,
	}
}

func (m *benchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *benchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			return m, tea.Quit
		}

	case scenarioStartMsg:
		m.current = msg.producers
		m.started = msg.started
		m.delivered = 0

	case deliveredMsg:
		if msg.producers == m.current {
			m.delivered = msg.delivered
		}

	case resultMsg:
		m.results = append(m.results, msg.result)

	case doneMsg:
		m.done = true
		m.err = msg.err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// percent reports how far the running scenario is, by items when the
// scenario has an item budget and by time otherwise.
func (m *benchModel) percent() float64 {
	var p float64
	if total := m.cfg.expected(m.current); total > 0 {
		p = float64(m.delivered) / float64(total)
	} else if m.cfg.duration > 0 && !m.started.IsZero() {
		p = float64(time.Since(m.started)) / float64(m.cfg.duration)
	}
	return min(max(p, 0), 1)
}

func (m *benchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Threadsafe Function Bench"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s %d  %s %s  %s %v\n\n",
		labelStyle.Render("capacity"), m.cfg.capacity,
		labelStyle.Render("mode"), m.cfg.mode,
		labelStyle.Render("guest"), m.cfg.guest))

	for _, r := range m.results {
		b.WriteString(resultStyle.Render(fmt.Sprintf("%3d producers  %12.0f items/sec  delivered %d  rejected %d",
			r.Producers, r.Throughput, r.Delivered, r.Rejected)))
		b.WriteString("\n")
	}

	switch {
	case m.err != nil:
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	case !m.done && m.current > 0:
		b.WriteString(fmt.Sprintf("\n%s %d producers  %d delivered\n", m.spinner.View(), m.current, m.delivered))
		b.WriteString(m.bar.ViewAs(m.percent()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(helpStyle.Render("q quit"))
	} else {
		b.WriteString(helpStyle.Render("q abort"))
	}
	return b.String()
}

func runInteractive(ctx context.Context, cfg benchConfig) ([]Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newBenchModel(cfg, cancel), tea.WithAltScreen())

	type outcome struct {
		results []Result
		err     error
	}
	finished := make(chan outcome, 1)

	go func() {
		var results []Result
		var err error
		for _, n := range cfg.producers {
			p.Send(scenarioStartMsg{producers: n, started: time.Now()})
			var res Result
			res, err = runScenario(ctx, cfg, n, func(delivered int64) {
				p.Send(deliveredMsg{producers: n, delivered: delivered})
			})
			if err != nil {
				err = fmt.Errorf("%d producers: %w", n, err)
				break
			}
			results = append(results, res)
			p.Send(resultMsg{result: res})
		}
		p.Send(doneMsg{err: err})
		finished <- outcome{results, err}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-finished
		return nil, err
	}

	cancel()
	out := <-finished
	return out.results, out.err
}
