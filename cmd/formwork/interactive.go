package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/formworklabs/formwork/shape"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	frameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	logStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)

type builderState int

const (
	stateEditing builderState = iota
	stateBuilt
)

type stepperModel struct {
	typeName string
	sess     *session
	input    textinput.Model
	log      []string
	result   string
	errMsg   string
	state    builderState
	quitting bool
}

const logLimit = 12

func newStepperModel(typeName string, s *shape.Shape) (*stepperModel, error) {
	sess, err := newSession(s)
	if err != nil {
		return nil, err
	}
	ti := textinput.New()
	ti.Placeholder = "field name"
	ti.Prompt = "> "
	ti.CharLimit = 128
	ti.Width = 60
	ti.Focus()
	return &stepperModel{
		typeName: typeName,
		sess:     sess,
		input:    ti,
	}, nil
}

func (m *stepperModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *stepperModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if m.state == stateBuilt {
				m.quitting = true
				return m, tea.Quit
			}
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			if line == "quit" || line == "q" {
				m.quitting = true
				return m, tea.Quit
			}
			m.errMsg = ""
			status, err := m.sess.exec(line)
			if err != nil {
				m.errMsg = err.Error()
				m.appendLog(errorStyle.Render(fmt.Sprintf("%s: %v", line, err)))
				return m, nil
			}
			m.appendLog(logStyle.Render(status))
			if strings.HasPrefix(status, "built:") {
				m.result = status
				m.state = stateBuilt
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *stepperModel) appendLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > logLimit {
		m.log = m.log[len(m.log)-logLimit:]
	}
}

func (m *stepperModel) View() string {
	if m.quitting {
		if m.result != "" {
			return m.result + "\n"
		}
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("formwork: building %s", m.typeName)))
	b.WriteString("\n")

	b.WriteString(frameStyle.Render(fmt.Sprintf("frames: %d  path: %s  shape: %s",
		m.sess.p.FrameCount(), pathString(m.sess.p), m.sess.p.Shape())))
	if m.sess.p.IsPoisoned() {
		b.WriteString("  ")
		b.WriteString(errorStyle.Render("[poisoned]"))
	}
	b.WriteString("\n\n")

	for _, line := range m.log {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.log) > 0 {
		b.WriteString("\n")
	}

	switch m.state {
	case stateBuilt:
		b.WriteString(resultStyle.Render(m.result))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter/esc: quit"))
	default:
		if m.errMsg != "" {
			b.WriteString(errorStyle.Render("error: " + m.errMsg))
			b.WriteString("\n")
		}
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("ops: field nth set default variant some none ok err pointee list map item key value push setkey end defer finish build  |  esc: quit"))
	}
	return b.String()
}

func runInteractive(typeName string, s *shape.Shape) error {
	m, err := newStepperModel(typeName, s)
	if err != nil {
		return err
	}
	defer m.sess.close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("interactive mode failed: %w", err)
	}
	if m.result != "" {
		fmt.Println(m.result)
	}
	return nil
}
