package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"strider/internal/plugin"
)

// promptModel is a bubbletea model that asks one question at a time.
type promptModel struct {
	questions []plugin.ConfigQuestion
	idx       int
	inputs    []textinput.Model
	done      bool
}

func newPromptModel(questions []plugin.ConfigQuestion) promptModel {
	inputs := make([]textinput.Model, len(questions))
	for i, q := range questions {
		ti := textinput.New()
		ti.Placeholder = q.Default
		ti.CharLimit = 512
		inputs[i] = ti
	}
	m := promptModel{
		questions: questions,
		inputs:    inputs,
	}
	if len(inputs) > 0 {
		m.inputs[0].Focus()
	}
	return m
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.idx < len(m.inputs)-1 {
				m.inputs[m.idx].Blur()
				m.idx++
				m.inputs[m.idx].Focus()
				return m, textinput.Blink
			}
			m.done = true
			return m, tea.Quit
		}
	}
	if len(m.inputs) == 0 {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.idx], cmd = m.inputs[m.idx].Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || len(m.questions) == 0 {
		return ""
	}
	q := m.questions[m.idx]
	prompt := q.Prompt
	if q.Type == "bool" {
		prompt += " [y/n]"
	}
	return fmt.Sprintf("%s: %s\n", promptStyle.Render(prompt), m.inputs[m.idx].View())
}

// answers returns the entered values keyed by question, with defaults
// filled in for blank answers.
func (m promptModel) answers() (map[string]string, error) {
	out := make(map[string]string, len(m.questions))
	for i, q := range m.questions {
		v := strings.TrimSpace(m.inputs[i].Value())
		if v == "" {
			v = q.Default
		}
		if q.Type == "bool" {
			b, err := parseYesNo(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", q.Key, err)
			}
			v = strconv.FormatBool(b)
		}
		out[q.Key] = v
	}
	return out, nil
}

// promptQuestions runs the TUI and returns answers keyed by ConfigQuestion.Key.
func promptQuestions(questions []plugin.ConfigQuestion) (map[string]string, error) {
	if len(questions) == 0 {
		return map[string]string{}, nil
	}
	m := newPromptModel(questions)
	p := tea.NewProgram(m)
	result, err := p.Run()
	if err != nil {
		return nil, err
	}
	final, ok := result.(promptModel)
	if !ok || !final.done {
		return nil, fmt.Errorf("prompt cancelled")
	}
	return final.answers()
}

func parseYesNo(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1":
		return true, nil
	case "", "n", "no", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected yes or no, got %q", s)
}
