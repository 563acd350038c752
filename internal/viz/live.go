package viz

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bje-/hector/internal/component"
	"github.com/bje-/hector/internal/components"
	"github.com/bje-/hector/internal/core"
)

const (
	yearsPerFrame = 5
	frameRate     = 15
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

// LiveModel steps a prepared core toward a target date, sampling CO2 and
// temperature through the message interface and redrawing each frame.
type LiveModel struct {
	core   *core.Core
	target float64

	years []float64
	co2   []float64
	tas   []float64

	done bool
	err  error
}

func NewLive(c *core.Core, target float64) LiveModel {
	if target <= 0 {
		target = c.EndDate()
	}
	return LiveModel{core: c, target: target}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m LiveModel) Init() tea.Cmd {
	return tick()
}

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case TickMsg:
		if m.done || m.err != nil {
			return m, nil
		}
		next := m.core.CurrentDate() + yearsPerFrame
		if next > m.target {
			next = m.target
		}
		if err := m.core.Run(next); err != nil {
			m.err = err
			return m, nil
		}
		if err := m.sample(); err != nil {
			m.err = err
			return m, nil
		}
		if m.core.CurrentDate() >= m.target {
			m.done = true
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

func (m *LiveModel) sample() error {
	date := m.core.CurrentDate()
	env := component.MessageData{Date: date}

	co2, err := m.core.SendMessage(component.GetData, components.CapAtmosphericCO2, env)
	if err != nil {
		return err
	}
	tas, err := m.core.SendMessage(component.GetData, components.CapGlobalTAS, env)
	if err != nil {
		return err
	}

	m.years = append(m.years, date)
	m.co2 = append(m.co2, co2.Magnitude())
	m.tas = append(m.tas, tas.Magnitude())
	return nil
}

func (m LiveModel) View() string {
	header := headerStyle.Render(
		fmt.Sprintf("hector live  run=%s  year=%.0f / %.0f",
			m.core.RunName(), m.core.CurrentDate(), m.target))

	body := header + "\n"
	if m.err != nil {
		body += errStyle.Render(fmt.Sprintf("error: %v", m.err)) + "\n"
	}
	if len(m.years) > 0 {
		body += Plot("atmospheric CO2 (ppmv)", m.years, m.co2, 10) + "\n\n"
		body += Plot("temperature anomaly (degC)", m.years, m.tas, 8) + "\n"
	}
	status := "running..."
	if m.done {
		status = "finished"
	}
	body += helpStyle.Render(status + "  [q] quit")
	return body
}
