package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/jointlink/internal/publisher"
	"github.com/san-kum/jointlink/internal/registry"
)

const (
	defaultStep = 0.05
	minStep     = 0.005
	maxStep     = 0.5
	barWidth    = 24
	visibleRows = 16
)

// publishTickMsg carries the cadence generation it was scheduled under.
// Ticks from an older generation are dropped, which is how "publish now"
// resets the cadence.
type publishTickMsg struct {
	gen int
}

// PoseSaver persists the given registry values and returns them as a preset.
type PoseSaver func(entries []registry.Entry) (registry.Preset, error)

// ControlModel is the manual control panel: it edits the registry and
// publishes it on a fixed cadence.
type ControlModel struct {
	ctx     context.Context
	reg     *registry.Registry
	loop    *publisher.Loop
	presets []registry.Preset
	period  time.Duration
	saver   PoseSaver

	cursor int
	offset int
	step   float64
	gen    int
	status string
	failed bool
	err    error

	width, height int
}

func NewControlModel(ctx context.Context, reg *registry.Registry, loop *publisher.Loop, presets []registry.Preset, period time.Duration) ControlModel {
	return ControlModel{
		ctx:     ctx,
		reg:     reg,
		loop:    loop,
		presets: append([]registry.Preset(nil), presets...),
		period:  period,
		step:    defaultStep,
		width:   80,
		height:  24,
	}
}

// WithPoseSaver enables the save key. Saved poses join the preset list.
func (m ControlModel) WithPoseSaver(fn PoseSaver) ControlModel {
	m.saver = fn
	return m
}

// Err is the send error that stopped the panel, if any.
func (m ControlModel) Err() error { return m.err }

func (m ControlModel) scheduleTick() tea.Cmd {
	gen := m.gen
	return tea.Tick(m.period, func(time.Time) tea.Msg { return publishTickMsg{gen: gen} })
}

func (m ControlModel) Init() tea.Cmd {
	return m.scheduleTick()
}

func (m ControlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case publishTickMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		return m.publish()
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m ControlModel) publish() (tea.Model, tea.Cmd) {
	if err := m.loop.Publish(m.ctx); err != nil {
		m.err = err
		return m, tea.Quit
	}
	return m, m.scheduleTick()
}

func (m ControlModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := m.reg.Len()
	m.failed = false
	switch key := msg.String(); key {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < n-1 {
			m.cursor++
		}
	case "left", "h":
		if n > 0 {
			m.reg.Nudge(m.cursor, -m.step)
		}
	case "right", "l":
		if n > 0 {
			m.reg.Nudge(m.cursor, m.step)
		}
	case "+", "=":
		m.step = min(m.step*2, maxStep)
	case "-", "_":
		m.step = max(m.step/2, minStep)
	case "z":
		m.reg.ZeroAll()
		m.status = "all joints zeroed"
	case "s":
		m.savePose()
	case "p", "enter":
		m.gen++
		m.status = "published"
		return m.publish()
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			i := int(key[0] - '1')
			if i < len(m.presets) {
				p := m.presets[i]
				applied := m.reg.ApplyPreset(p)
				m.status = fmt.Sprintf("preset %s (%d joints)", p.Name, applied)
			}
		}
	}
	m.scroll()
	return m, nil
}

func (m *ControlModel) savePose() {
	if m.saver == nil {
		m.status, m.failed = "no pose store", true
		return
	}
	p, err := m.saver(m.reg.Snapshot())
	if err != nil {
		m.status, m.failed = "save failed: "+err.Error(), true
		return
	}
	m.presets = append(m.presets, p)
	if len(m.presets) > 9 {
		m.status = fmt.Sprintf("saved pose %s (preset slots full)", p.Name)
		return
	}
	m.status = fmt.Sprintf("saved pose %s as preset %d", p.Name, len(m.presets))
}

// scroll keeps the cursor inside the visible window of joint rows.
func (m *ControlModel) scroll() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visibleRows {
		m.offset = m.cursor - visibleRows + 1
	}
}

func (m ControlModel) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("JOINT CONTROL") + "\n\n")

	entries := m.reg.Snapshot()
	nameWidth := 8
	for _, e := range entries {
		nameWidth = max(nameWidth, len(e.Name))
	}

	var rows strings.Builder
	end := min(m.offset+visibleRows, len(entries))
	for i := m.offset; i < end; i++ {
		e := entries[i]
		name := fmt.Sprintf("%-*s", nameWidth, e.Name)
		if i == m.cursor {
			name = selectedStyle.Render("▸ " + name)
		} else {
			name = "  " + labelStyle.Render(name)
		}
		fmt.Fprintf(&rows, "%s %s %s %s\n", name,
			subtle.Render(fmt.Sprintf("%6.2f", e.Min)),
			rangeBar(e.Value, e.Min, e.Max, barWidth),
			subtle.Render(fmt.Sprintf("%-6.2f", e.Max))+" "+valueStyle.Render(fmt.Sprintf("%+.3f", e.Value)))
	}
	if len(entries) == 0 {
		rows.WriteString(subtle.Render("no joints") + "\n")
	} else if len(entries) > visibleRows {
		fmt.Fprintf(&rows, "%s\n", subtle.Render(fmt.Sprintf("%d-%d of %d", m.offset+1, end, len(entries))))
	}
	s.WriteString(panelStyle.Render(strings.TrimRight(rows.String(), "\n")) + "\n")

	if len(m.presets) > 0 {
		s.WriteString(labelStyle.Render("presets "))
		for i, p := range m.presets {
			if i >= 9 {
				break
			}
			fmt.Fprintf(&s, "%s %s  ", valueStyle.Render(fmt.Sprint(i+1)), p.Name)
		}
		s.WriteString("\n")
	}

	s.WriteString(separator(min(m.width, 72)) + "\n")
	fmt.Fprintf(&s, "%s %s   %s %s   %s %s\n",
		labelStyle.Render("tick"), valueStyle.Render(fmt.Sprint(m.loop.Tick())),
		labelStyle.Render("step"), valueStyle.Render(fmt.Sprintf("%.3f", m.step)),
		labelStyle.Render("rate"), valueStyle.Render(m.period.String()))
	switch {
	case m.err != nil:
		s.WriteString(errStyle.Render("send failed: "+m.err.Error()) + "\n")
	case m.failed:
		s.WriteString(errStyle.Render(m.status) + "\n")
	case m.status != "":
		s.WriteString(okStyle.Render(m.status) + "\n")
	}
	s.WriteString(keyHint.Render("↑/↓ joint  ←/→ adjust  +/- step  1-9 preset  s save pose  p publish now  z zero  q quit"))
	return s.String()
}
