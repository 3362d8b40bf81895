// ABOUTME: Unit tests for the sign-in wizard bubbletea model.
// ABOUTME: Uses synthetic tea.Msg values to test state machine transitions.
package tui

import (
	"context"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/chirp/internal/config"
	"github.com/2389-research/chirp/internal/models"
)

func TestNewLoginModel_DefaultValues(t *testing.T) {
	m := NewLoginModel("", "")
	if m.step != StepAPIURL {
		t.Errorf("expected initial step StepAPIURL, got %d", m.step)
	}
	if m.inputs[0].Value() != "" {
		t.Error("expected empty API URL input for new config")
	}
}

func TestNewLoginModel_ExistingConfig(t *testing.T) {
	m := NewLoginModel("https://chirp.example.com", "tok")
	if m.inputs[0].Value() != "https://chirp.example.com" {
		t.Errorf("expected pre-filled API URL, got %q", m.inputs[0].Value())
	}
	if m.inputs[1].Value() != "tok" {
		t.Errorf("expected pre-filled token, got %q", m.inputs[1].Value())
	}
}

func TestLoginModel_StepTransitions(t *testing.T) {
	m := NewLoginModel("", "")

	m.inputs[0].SetValue("https://chirp.example.com/")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(LoginModel)
	if m.step != StepToken {
		t.Errorf("expected StepToken after Enter on API URL, got %d", m.step)
	}
	if m.inputs[0].Value() != "https://chirp.example.com" {
		t.Errorf("expected trailing slash trimmed, got %q", m.inputs[0].Value())
	}

	m.inputs[1].SetValue("tok")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(LoginModel)
	if m.step != StepValidating {
		t.Errorf("expected StepValidating after Enter on token, got %d", m.step)
	}
	if cmd == nil {
		t.Error("expected non-nil cmd (validation + spinner tick) when entering validation")
	}
}

func TestLoginModel_DefaultAPIURL(t *testing.T) {
	m := NewLoginModel("", "")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(LoginModel)
	if m.inputs[0].Value() != config.DefaultAPIURL {
		t.Errorf("expected default API URL %q, got %q", config.DefaultAPIURL, m.inputs[0].Value())
	}
}

func TestLoginModel_EmptyTokenBlocked(t *testing.T) {
	m := NewLoginModel("", "")
	m.step = StepToken
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(LoginModel)
	if m.step != StepToken {
		t.Errorf("expected to stay on StepToken with empty input, got %d", m.step)
	}
}

func TestLoginModel_ValidationSuccess(t *testing.T) {
	m := NewLoginModel("", "")
	m.step = StepValidating

	user := &models.Author{ID: "user_1", Username: "gecko"}
	updated, _ := m.Update(validationResultMsg{user: user})
	m = updated.(LoginModel)
	if m.step != StepDone {
		t.Errorf("expected StepDone after successful validation, got %d", m.step)
	}
	if m.User() != user {
		t.Error("expected resolved user to be kept")
	}
	if !strings.Contains(m.View(), "@gecko") {
		t.Error("expected done view to name the signed-in user")
	}
}

func TestLoginModel_ValidationFailure(t *testing.T) {
	m := NewLoginModel("", "")
	m.step = StepValidating

	updated, _ := m.Update(validationResultMsg{err: fmt.Errorf("connection refused")})
	m = updated.(LoginModel)
	if m.step != StepFailed {
		t.Errorf("expected StepFailed after validation error, got %d", m.step)
	}
	view := m.View()
	for _, want := range []string{"Sign-in failed", "connection refused", "[r]etry", "[s]ave anyway", "[q]uit"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected failed view to contain %q", want)
		}
	}
}

func TestLoginModel_FailedKeys(t *testing.T) {
	t.Run("retry", func(t *testing.T) {
		m := NewLoginModel("", "")
		m.step = StepFailed
		updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
		m = updated.(LoginModel)
		if m.step != StepValidating || cmd == nil {
			t.Errorf("expected validation restart, got step %d", m.step)
		}
	})

	t.Run("save anyway", func(t *testing.T) {
		m := NewLoginModel("", "")
		m.step = StepFailed
		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
		m = updated.(LoginModel)
		if !m.ShouldSave() {
			t.Error("expected ShouldSave true after save anyway")
		}
	})

	t.Run("quit", func(t *testing.T) {
		m := NewLoginModel("", "")
		m.step = StepFailed
		updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
		m = updated.(LoginModel)
		if cmd == nil || m.ShouldSave() {
			t.Error("expected quit without saving")
		}
	})
}

func TestLoginModel_QuitOnEsc(t *testing.T) {
	m := NewLoginModel("", "")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEscape})
	m = updated.(LoginModel)
	if cmd == nil {
		t.Error("expected quit cmd on escape")
	}
	if m.ShouldSave() {
		t.Error("expected ShouldSave false after escape")
	}
}

func TestLoginModel_ViewShowsCurrentStep(t *testing.T) {
	m := NewLoginModel("", "")
	if !strings.Contains(m.View(), "CHIRP") {
		t.Error("expected view to contain CHIRP branding")
	}
	if !strings.Contains(m.View(), "Server URL") {
		t.Error("expected StepAPIURL view to mention Server URL")
	}

	m.step = StepToken
	if !strings.Contains(m.View(), "Session token") {
		t.Error("expected StepToken view to mention Session token")
	}

	m.step = StepValidating
	if !strings.Contains(m.View(), "Checking session") {
		t.Error("expected StepValidating view to mention Checking session")
	}
}

func TestLoginModel_CtrlCDuringValidation(t *testing.T) {
	cancelled := false
	m := NewLoginModel("", "")
	m.validateFn = func(ctx context.Context, _, _ string) (*models.Author, error) {
		<-ctx.Done()
		cancelled = true
		return nil, ctx.Err()
	}
	m.inputs[0].SetValue("http://localhost:3000")
	m.inputs[1].SetValue("tok")
	m.step = StepToken

	updated, batchCmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(LoginModel)
	if m.step != StepValidating {
		t.Fatalf("expected StepValidating, got %d", m.step)
	}

	// batchMsg[0] is the validation cmd, batchMsg[1] is the spinner tick
	batchMsg := batchCmd().(tea.BatchMsg)
	done := make(chan tea.Msg)
	go func() {
		done <- batchMsg[0]()
	}()

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = updated.(LoginModel)
	if !m.quitting {
		t.Error("expected quitting to be true after Ctrl+C during validation")
	}

	<-done
	if !cancelled {
		t.Error("expected validation context to be cancelled")
	}
}

func TestLoginModel_ValidationPassesCorrectArgs(t *testing.T) {
	var gotURL, gotToken string
	m := NewLoginModel("", "")
	m.validateFn = func(_ context.Context, apiURL, token string) (*models.Author, error) {
		gotURL = apiURL
		gotToken = token
		return &models.Author{ID: "user_1", Username: "gecko"}, nil
	}
	m.inputs[0].SetValue("https://chirp.example.com")
	m.inputs[1].SetValue("  secret  ")
	m.step = StepToken

	_, batchCmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	batchMsg := batchCmd().(tea.BatchMsg)
	msg := batchMsg[0]().(validationResultMsg)

	if gotURL != "https://chirp.example.com" {
		t.Errorf("expected apiURL %q, got %q", "https://chirp.example.com", gotURL)
	}
	if gotToken != "secret" {
		t.Errorf("expected trimmed token, got %q", gotToken)
	}
	if msg.user == nil || msg.user.Username != "gecko" {
		t.Errorf("unexpected validation result: %+v", msg)
	}
}
