// Package tui renders a running simulation in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/sim"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffff"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffaa00"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("#333344"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff"))
)

const historyLen = 60

type stepMsg struct {
	x dynamo.State
	t float64
}

type eventMsg sim.EventRecord

type doneMsg struct {
	result *sim.Result
	err    error
}

// Feed forwards simulation progress to a program. Steps are dropped
// when they arrive faster than the frame rate; events never are.
type Feed struct {
	send      func(tea.Msg)
	interval  time.Duration
	lastFrame time.Time
}

func NewFeed(send func(tea.Msg), frameRate int) *Feed {
	if frameRate <= 0 {
		frameRate = 30
	}
	return &Feed{send: send, interval: time.Second / time.Duration(frameRate)}
}

func (f *Feed) OnStep(x dynamo.State, t float64) {
	if time.Since(f.lastFrame) < f.interval {
		return
	}
	f.lastFrame = time.Now()
	f.send(stepMsg{x: x.Clone(), t: t})
}

func (f *Feed) OnEvent(ev sim.EventRecord) {
	f.send(eventMsg(ev))
}

type model struct {
	name     string
	labels   []string
	duration float64
	cancel   context.CancelFunc

	t         float64
	x         dynamo.State
	events    int
	lastEvent float64
	history   []float64

	done   bool
	result *sim.Result
	err    error
}

func newModel(name string, labels []string, duration float64, cancel context.CancelFunc) model {
	return model{
		name:     name,
		labels:   labels,
		duration: duration,
		cancel:   cancel,
		history:  make([]float64, 0, historyLen),
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case stepMsg:
		m.t = msg.t
		m.x = msg.x
		if len(msg.x) > 0 {
			m.history = append(m.history, msg.x[0])
			if len(m.history) > historyLen {
				m.history = m.history[1:]
			}
		}
	case eventMsg:
		m.events++
		m.lastEvent = msg.Time
	case doneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		if msg.result != nil && len(msg.result.Times) > 0 {
			m.t = msg.result.Times[len(msg.result.Times)-1]
			m.x = msg.result.Final()
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	statusIcon := green.Render("●")
	statusText := green.Render("running")
	switch {
	case m.err != nil:
		statusIcon, statusText = red.Render("●"), red.Render("failed")
	case m.done && m.result != nil && m.result.Terminated():
		statusIcon, statusText = yellow.Render("○"), yellow.Render("terminated")
	case m.done:
		statusIcon, statusText = cyan.Render("○"), cyan.Render("done")
	}
	b.WriteString(fmt.Sprintf("\n   %s %s  %s\n", statusIcon, cyan.Render(m.name), statusText))

	progress := 0.0
	if m.duration > 0 {
		progress = min(m.t/m.duration, 1)
	}
	barWidth := 36
	filled := int(progress * float64(barWidth))
	timeStr := fmt.Sprintf("%.2fs/%.0fs", m.t, m.duration)
	bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
	b.WriteString(fmt.Sprintf("   %s %s\n\n", bar, dim.Render(timeStr)))

	if len(m.x) > 0 {
		var stateStr strings.Builder
		stateStr.WriteString("   ")
		for i, v := range m.x {
			if i >= 4 {
				break
			}
			label := fmt.Sprintf("x%d", i)
			if i < len(m.labels) {
				label = m.labels[i]
			}
			stateStr.WriteString(dim.Render(label + "="))
			stateStr.WriteString(white.Render(fmt.Sprintf("%.4g", v)))
			stateStr.WriteString("  ")
		}
		b.WriteString(stateStr.String() + "\n")
	}

	if len(m.history) > 1 {
		label := "x0"
		if len(m.labels) > 0 {
			label = m.labels[0]
		}
		b.WriteString(fmt.Sprintf("   %s %s\n", dim.Render(label), cyan.Render(sparkline(m.history, 24))))
	}

	events := fmt.Sprintf("   events %d", m.events)
	if m.events > 0 {
		events += fmt.Sprintf("  last at t=%.4g", m.lastEvent)
	}
	b.WriteString(dim.Render(events) + "\n")

	if m.err != nil {
		b.WriteString("   " + red.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n" + dim.Render("   q quit") + "\n")
	return b.String()
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		minVal = min(minVal, v)
		maxVal = max(maxVal, v)
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	step := max(len(data)/width, 1)
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		idx := int((data[i*step] - minVal) / rang * 7)
		sb.WriteRune(chars[min(max(idx, 0), 7)])
	}
	return sb.String()
}

// RunLive runs s under a live terminal view and returns its result.
// Quitting the view cancels the run.
func RunLive(ctx context.Context, s *sim.Simulator, cfg sim.Config, labels []string, frameRate int) (*sim.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(s.Model().Name(), labels, cfg.Duration, cancel))
	s.AddObserver(NewFeed(p.Send, frameRate))

	go func() {
		result, err := s.Run(ctx, cfg)
		p.Send(doneMsg{result: result, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m := final.(model)
	if !m.done {
		return nil, context.Canceled
	}
	return m.result, m.err
}
