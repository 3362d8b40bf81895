// ABOUTME: Composer view: an emoji input bound to the signed-in user.
// ABOUTME: Submits through the posts.create mutation and reports failures as a short-lived toast.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/chirp/internal/models"
	"github.com/2389-research/chirp/internal/posts"
	"github.com/2389-research/chirp/internal/query"
)

const (
	toastTTL      = 4 * time.Second
	submitTimeout = 15 * time.Second
)

type postResultMsg struct {
	post *models.Post
	err  error
}

type toastExpiredMsg struct {
	seq int
}

// Composer is the post input shown in the home header.
type Composer struct {
	user     *models.Author
	create   *query.Mutation[string, *models.Post]
	keys     KeyMap
	input    textinput.Model
	spinner  spinner.Model
	focused  bool
	posting  bool
	toast    string
	toastSeq int
}

// NewComposer creates a composer that submits through create.
func NewComposer(create *query.Mutation[string, *models.Post], keys KeyMap) Composer {
	in := textinput.New()
	in.Placeholder = "Type some emojis!"
	in.Width = 40

	s := spinner.New()
	s.Spinner = spinner.Dot

	return Composer{
		create:  create,
		keys:    keys,
		input:   in,
		spinner: s,
	}
}

// SetUser binds the composer to the current user. A nil user hides it.
func (c Composer) SetUser(u *models.Author) Composer {
	c.user = u
	return c
}

// Focus gives the input keyboard focus.
func (c Composer) Focus() (Composer, tea.Cmd) {
	c.focused = true
	if c.posting {
		return c, nil
	}
	return c, c.input.Focus()
}

// Blur removes keyboard focus.
func (c Composer) Blur() Composer {
	c.focused = false
	c.input.Blur()
	return c
}

func (c Composer) Focused() bool { return c.focused }
func (c Composer) Posting() bool { return c.posting }
func (c Composer) Value() string { return c.input.Value() }
func (c Composer) Toast() string { return c.toast }

// Update handles key input, submission results and toast expiry.
func (c Composer) Update(msg tea.Msg) (Composer, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if c.user == nil || c.posting || !c.focused {
			return c, nil
		}
		if key.Matches(msg, c.keys.Submit) {
			return c.submit()
		}
		var cmd tea.Cmd
		c.input, cmd = c.input.Update(msg)
		return c, cmd

	case postResultMsg:
		c.posting = false
		var cmd tea.Cmd
		if c.focused {
			cmd = c.input.Focus()
		}
		if msg.err == nil {
			c.input.Reset()
			return c, cmd
		}
		c.toast = posts.ComposeErrorMessage(msg.err)
		c.toastSeq++
		seq := c.toastSeq
		expire := tea.Tick(toastTTL, func(time.Time) tea.Msg { return toastExpiredMsg{seq: seq} })
		return c, tea.Batch(cmd, expire)

	case toastExpiredMsg:
		if msg.seq == c.toastSeq {
			c.toast = ""
		}
		return c, nil

	case spinner.TickMsg:
		if c.posting {
			var cmd tea.Cmd
			c.spinner, cmd = c.spinner.Update(msg)
			return c, cmd
		}
		return c, nil
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

func (c Composer) submit() (Composer, tea.Cmd) {
	content := c.input.Value()
	if content == "" {
		return c, nil
	}
	c.posting = true
	c.toast = ""
	c.input.Blur()

	create := c.create
	run := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		post, err := create.Mutate(ctx, content)
		return postResultMsg{post: post, err: err}
	}
	return c, tea.Batch(run, c.spinner.Tick)
}

// View renders the composer, or nothing when no user is bound.
func (c Composer) View() string {
	if c.user == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(handleStyle.Render(c.user.Handle()))
	b.WriteString(" ")
	b.WriteString(c.input.View())
	b.WriteString("  ")
	if c.posting {
		b.WriteString(c.spinner.View())
	} else {
		b.WriteString(promptStyle.Render("[Post]"))
	}
	if c.toast != "" {
		b.WriteString("\n")
		b.WriteString(toastStyle.Render(c.toast))
	}
	return b.String()
}
