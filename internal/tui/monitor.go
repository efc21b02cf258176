package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/jointlink/internal/sim"
	"github.com/san-kum/jointlink/internal/subscriber"
)

const (
	frameInterval   = 16 * time.Millisecond
	traceCapacity   = 240
	maxStepsPerTick = 64
)

type frameMsg time.Time

func frame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// MonitorModel hosts the subscriber: each frame it polls once and advances
// the engine by the frame's worth of timesteps. Quitting stops the host.
type MonitorModel struct {
	loop   *subscriber.Loop
	engine *sim.Engine
	joints []sim.JointInfo

	cursor   int
	trace    []float64
	counts   map[subscriber.Outcome]int
	lastRecv time.Time
	last     time.Time
	err      error

	width, height int
}

func NewMonitorModel(loop *subscriber.Loop, engine *sim.Engine) MonitorModel {
	return MonitorModel{
		loop:   loop,
		engine: engine,
		joints: engine.Joints(),
		trace:  make([]float64, 0, traceCapacity),
		counts: make(map[subscriber.Outcome]int),
		width:  80,
		height: 24,
	}
}

// Err is the engine error that stopped the monitor, if any.
func (m MonitorModel) Err() error { return m.err }

func (m MonitorModel) Init() tea.Cmd { return frame() }

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case frameMsg:
		return m.advance(time.Time(msg))
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				m.trace = m.trace[:0]
			}
		case "down", "j":
			if m.cursor < len(m.joints)-1 {
				m.cursor++
				m.trace = m.trace[:0]
			}
		}
	}
	return m, nil
}

func (m MonitorModel) advance(now time.Time) (tea.Model, tea.Cmd) {
	outcome := m.loop.Poll()
	m.counts[outcome]++
	if outcome == subscriber.Accepted {
		m.lastRecv = now
	}

	steps := 1
	if !m.last.IsZero() {
		steps = int(now.Sub(m.last).Seconds() / m.engine.Timestep())
		steps = max(1, min(steps, maxStepsPerTick))
	}
	m.last = now
	for i := 0; i < steps; i++ {
		if err := m.engine.Step(); err != nil {
			m.err = err
			return m, tea.Quit
		}
	}

	if len(m.joints) > 0 {
		if len(m.trace) == traceCapacity {
			m.trace = append(m.trace[:0], m.trace[1:]...)
		}
		m.trace = append(m.trace, m.engine.Position(m.cursor))
	}
	return m, frame()
}

func (m MonitorModel) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("JOINT MONITOR") + "\n\n")

	status := warnStyle.Render("WAITING")
	if !m.lastRecv.IsZero() && time.Since(m.lastRecv) < time.Second {
		status = okStyle.Render("LIVE")
	}
	fmt.Fprintf(&s, "%s   %s %s   %s %s\n", status,
		labelStyle.Render("last ts"), valueStyle.Render(fmt.Sprint(m.loop.LastAccepted())),
		labelStyle.Render("sim t"), valueStyle.Render(fmt.Sprintf("%.2fs", m.engine.Time())))
	fmt.Fprintf(&s, "%s %d  %s %d  %s %d  %s %d\n",
		labelStyle.Render("accepted"), m.counts[subscriber.Accepted],
		labelStyle.Render("stale"), m.counts[subscriber.Stale],
		labelStyle.Render("malformed"), m.counts[subscriber.Malformed],
		labelStyle.Render("off-topic"), m.counts[subscriber.TopicMismatch])

	if len(m.joints) == 0 {
		s.WriteString(subtle.Render("no joints") + "\n")
		return s.String()
	}

	var rows strings.Builder
	start := max(0, min(m.cursor-visibleRows/2, len(m.joints)-visibleRows))
	end := min(start+visibleRows, len(m.joints))
	for i := start; i < end; i++ {
		j := m.joints[i]
		name := fmt.Sprintf("%-16s", j.Name)
		if i == m.cursor {
			name = selectedStyle.Render("▸ " + name)
		} else {
			name = "  " + labelStyle.Render(name)
		}
		q := m.engine.Position(i)
		fmt.Fprintf(&rows, "%s %s %s %s\n", name, rangeBar(q, j.Min, j.Max, barWidth),
			valueStyle.Render(fmt.Sprintf("%+.3f", q)),
			subtle.Render(fmt.Sprintf("%+.3f rad/s", m.engine.Velocity(i))))
	}
	s.WriteString(panelStyle.Render(strings.TrimRight(rows.String(), "\n")) + "\n")

	if len(m.trace) > 1 {
		chart := asciigraph.Plot(m.trace,
			asciigraph.Height(6),
			asciigraph.Width(min(max(m.width-12, 20), 60)),
			asciigraph.Caption(m.joints[m.cursor].Name+" (rad)"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}
	if m.err != nil {
		s.WriteString(errStyle.Render("engine stopped: "+m.err.Error()) + "\n")
	}
	s.WriteString(keyHint.Render("↑/↓ joint  q quit"))
	return s.String()
}
