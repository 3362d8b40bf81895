// ABOUTME: Interactive sign-in wizard for connecting the terminal client to a chirp server.
// ABOUTME: Two-step bubbletea model collecting the server URL and a session token, then resolving the user.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/chirp/internal/config"
	"github.com/2389-research/chirp/internal/models"
)

// Step represents the current wizard step.
type Step int

const (
	StepAPIURL Step = iota
	StepToken
	StepValidating
	StepDone
	StepFailed
)

// validationResultMsg carries the result of an async validation attempt.
type validationResultMsg struct {
	user *models.Author
	err  error
}

// ValidateFn resolves the user behind a session token.
type ValidateFn func(ctx context.Context, apiURL, token string) (*models.Author, error)

// cancelHolder shares a cancel function across bubbletea model copies.
// It MUST be a pointer field on LoginModel so value-receiver methods can
// store the cancel func and have it visible to all copies of the model.
type cancelHolder struct {
	cancel context.CancelFunc
}

// LoginModel is the bubbletea model for the sign-in wizard.
type LoginModel struct {
	step          Step
	inputs        [2]textinput.Model
	spinner       spinner.Model
	validateFn    ValidateFn
	cancelCtx     *cancelHolder
	user          *models.Author
	validationErr error
	quitting      bool
}

// NewLoginModel creates a sign-in wizard pre-filled with existing config values.
func NewLoginModel(apiURL, token string) LoginModel {
	urlInput := textinput.New()
	urlInput.Placeholder = config.DefaultAPIURL
	urlInput.Focus()
	urlInput.Width = 50
	if apiURL != "" {
		urlInput.SetValue(apiURL)
	}

	tokenInput := textinput.New()
	tokenInput.Placeholder = "session token from the sign-in page"
	tokenInput.EchoMode = textinput.EchoPassword
	tokenInput.Width = 50
	if token != "" {
		tokenInput.SetValue(token)
	}

	s := spinner.New()
	s.Spinner = spinner.Dot

	return LoginModel{
		step:       StepAPIURL,
		inputs:     [2]textinput.Model{urlInput, tokenInput},
		spinner:    s,
		validateFn: ValidateSession,
		cancelCtx:  &cancelHolder{},
	}
}

// Init implements tea.Model.
func (m LoginModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m LoginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEscape:
			m.quitting = true
			if m.cancelCtx.cancel != nil {
				m.cancelCtx.cancel()
			}
			return m, tea.Quit
		}

		switch m.step {
		case StepAPIURL, StepToken:
			return m.updateInput(msg)
		case StepFailed:
			return m.updateFailed(msg)
		}

	case validationResultMsg:
		m.cancelCtx.cancel = nil
		if msg.err == nil {
			m.user = msg.user
			m.step = StepDone
			return m, tea.Quit
		}
		m.validationErr = msg.err
		m.step = StepFailed
		return m, nil

	case spinner.TickMsg:
		if m.step == StepValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m LoginModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		if m.step == StepAPIURL {
			val := strings.TrimRight(m.inputs[0].Value(), "/")
			if val == "" {
				val = config.DefaultAPIURL
			}
			m.inputs[0].SetValue(val)
			m.inputs[0].Blur()
			m.step = StepToken
			m.inputs[1].Focus()
			return m, textinput.Blink
		}

		if strings.TrimSpace(m.inputs[1].Value()) == "" {
			return m, nil
		}
		m.inputs[1].SetValue(strings.TrimSpace(m.inputs[1].Value()))
		m.inputs[1].Blur()
		m.step = StepValidating
		return m, tea.Batch(m.startValidation(), m.spinner.Tick)
	}

	idx := int(m.step)
	var cmd tea.Cmd
	m.inputs[idx], cmd = m.inputs[idx].Update(msg)
	return m, cmd
}

func (m LoginModel) updateFailed(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyRunes {
		switch msg.Runes[0] {
		case 'r':
			m.step = StepValidating
			m.validationErr = nil
			return m, tea.Batch(m.startValidation(), m.spinner.Tick)
		case 's':
			m.step = StepDone
			return m, tea.Quit
		case 'q':
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m LoginModel) startValidation() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelCtx.cancel = cancel
	apiURL := m.inputs[0].Value()
	token := m.inputs[1].Value()
	fn := m.validateFn
	return func() tea.Msg {
		user, err := fn(ctx, apiURL, token)
		return validationResultMsg{user: user, err: err}
	}
}

// View implements tea.Model.
func (m LoginModel) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(brandStyle.Render("   CHIRP"))
	b.WriteString(titleStyle.Render(" - Sign in"))
	b.WriteString("\n\n")
	b.WriteString("Connect the terminal client to a chirp server.\n\n")

	switch m.step {
	case StepAPIURL:
		b.WriteString(stepStyle.Render("Step 1 of 2: Server URL"))
		b.WriteString("\n")
		b.WriteString(promptStyle.Render("(press Enter for default)"))
		b.WriteString("\n")
		b.WriteString(m.inputs[0].View())
		b.WriteString("\n")

	case StepToken:
		b.WriteString(fmt.Sprintf("  Server: %s\n\n", m.inputs[0].Value()))
		b.WriteString(stepStyle.Render("Step 2 of 2: Session token"))
		b.WriteString("\n")
		b.WriteString(promptStyle.Render(fmt.Sprintf("(copy it from %s/sign-in)", m.inputs[0].Value())))
		b.WriteString("\n")
		b.WriteString(m.inputs[1].View())
		b.WriteString("\n")

	case StepValidating:
		b.WriteString(fmt.Sprintf("  Server: %s\n", m.inputs[0].Value()))
		b.WriteString(fmt.Sprintf("  Token:  %s\n\n", strings.Repeat("*", min(len(m.inputs[1].Value()), 16))))
		b.WriteString(m.spinner.View())
		b.WriteString(" Checking session...")
		b.WriteString("\n")

	case StepDone:
		if m.user != nil {
			b.WriteString(successStyle.Render("✓ Signed in as " + m.user.Handle()))
		} else {
			b.WriteString(successStyle.Render("✓ Saved"))
		}
		b.WriteString("\n")

	case StepFailed:
		errMsg := "unknown error"
		if m.validationErr != nil {
			errMsg = m.validationErr.Error()
		}
		b.WriteString(errorStyle.Render(fmt.Sprintf("✗ Sign-in failed: %s", errMsg)))
		b.WriteString("\n\n")
		b.WriteString(promptStyle.Render("[r]etry  [s]ave anyway  [q]uit"))
		b.WriteString("\n")
	}

	return b.String()
}

// Result returns the entered server URL and token.
func (m LoginModel) Result() (apiURL, token string) {
	return m.inputs[0].Value(), m.inputs[1].Value()
}

// User returns the user resolved during validation, if any.
func (m LoginModel) User() *models.Author {
	return m.user
}

// ShouldSave returns true if the wizard completed (via validation success or
// "save anyway") and the user did not cancel with Ctrl+C, Escape, or 'q'.
func (m LoginModel) ShouldSave() bool {
	return m.step == StepDone && !m.quitting
}
