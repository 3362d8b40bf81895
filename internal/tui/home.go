// ABOUTME: Home screen shell composing the session state, composer and feed.
// ABOUTME: Renders nothing until the current user is resolved, then header plus feed or the post page.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/chirp/internal/apierr"
	"github.com/2389-research/chirp/internal/models"
	"github.com/2389-research/chirp/internal/query"
	"github.com/2389-research/chirp/internal/rpc"
)

// SignInHint tells signed-out users how to obtain a session.
const SignInHint = "Sign in with `chirp login` to post."

type userMsg struct {
	user *models.Author
	err  error
}

// Home is the bubbletea model for the home screen.
type Home struct {
	facade   *rpc.Facade
	keys     KeyMap
	signedIn bool

	userKnown bool
	user      *models.Author
	userErr   error

	composer Composer
	feed     Feed
	post     *PostPage

	unsubscribe func()
}

// NewHome builds the home screen over facade. signedIn reports whether the
// client holds a session token worth resolving. Close releases the feed
// subscription.
func NewHome(facade *rpc.Facade, signedIn bool) Home {
	keys := DefaultKeyMap()
	feed, unsubscribe := NewFeed(facade.AllPosts, keys).Subscribe()
	return Home{
		facade:      facade,
		keys:        keys,
		signedIn:    signedIn,
		composer:    NewComposer(facade.CreatePost(query.MutationOptions[*models.Post]{}), keys),
		feed:        feed,
		unsubscribe: unsubscribe,
	}
}

// Close unsubscribes from the feed query.
func (m Home) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init implements tea.Model.
func (m Home) Init() tea.Cmd {
	return tea.Batch(m.resolveUser(), m.feed.Init())
}

func (m Home) resolveUser() tea.Cmd {
	if !m.signedIn {
		return func() tea.Msg { return userMsg{} }
	}
	facade := m.facade
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		user, err := facade.WhoAmI(ctx)
		return userMsg{user: user, err: err}
	}
}

// Update implements tea.Model.
func (m Home) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKey(msg)

	case userMsg:
		m.userKnown = true
		m.user = msg.user
		m.userErr = nil
		if msg.err != nil {
			m.user = nil
			if e, ok := apierr.As(msg.err); !ok || e.Code != apierr.CodeUnauthorized {
				m.userErr = msg.err
			}
		}
		m.composer = m.composer.SetUser(m.user)
		if m.user != nil {
			m.feed = m.feed.Blur()
			var cmd tea.Cmd
			m.composer, cmd = m.composer.Focus()
			return m, cmd
		}
		m.feed = m.feed.Focus()
		return m, nil

	case openPostMsg:
		page := NewPostPage(msg.entry, m.keys)
		m.post = &page
		return m, nil

	case closePostMsg:
		m.post = nil
		return m, nil

	case feedStateMsg:
		var cmd tea.Cmd
		m.feed, cmd = m.feed.Update(msg)
		return m, cmd

	case postResultMsg, toastExpiredMsg:
		var cmd tea.Cmd
		m.composer, cmd = m.composer.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var c1, c2 tea.Cmd
		m.composer, c1 = m.composer.Update(msg)
		m.feed, c2 = m.feed.Update(msg)
		return m, tea.Batch(c1, c2)

	default:
		// Cursor blinks and other input internals belong to the composer.
		if m.composer.Focused() {
			var cmd tea.Cmd
			m.composer, cmd = m.composer.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m Home) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.post != nil {
		page, cmd := m.post.Update(msg)
		m.post = &page
		if cmd == nil && key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, cmd
	}

	if key.Matches(msg, m.keys.Focus) && m.user != nil {
		if m.composer.Focused() {
			m.composer = m.composer.Blur()
			m.feed = m.feed.Focus()
			return m, nil
		}
		m.feed = m.feed.Blur()
		var cmd tea.Cmd
		m.composer, cmd = m.composer.Focus()
		return m, cmd
	}

	if m.composer.Focused() {
		var cmd tea.Cmd
		m.composer, cmd = m.composer.Update(msg)
		return m, cmd
	}
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.feed, cmd = m.feed.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Home) View() string {
	if !m.userKnown {
		return ""
	}
	if m.post != nil {
		return m.post.View()
	}

	var header strings.Builder
	header.WriteString(brandStyle.Render("CHIRP"))
	header.WriteString("\n\n")
	if m.user == nil {
		header.WriteString(promptStyle.Render(SignInHint))
		if m.userErr != nil {
			header.WriteString("\n")
			header.WriteString(errorStyle.Render(m.userErr.Error()))
		}
	} else {
		header.WriteString(m.composer.View())
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(header.String()))
	b.WriteString("\n")
	b.WriteString(m.feed.View())
	b.WriteString("\n")
	if m.user != nil {
		b.WriteString(helpLine(m.keys.Submit, m.keys.Focus, m.keys.Open, m.keys.Refresh, m.keys.Quit))
	} else {
		b.WriteString(helpLine(m.keys.Up, m.keys.Down, m.keys.Open, m.keys.Refresh, m.keys.Quit))
	}
	return b.String()
}

// User returns the resolved user, or nil when signed out or unresolved.
func (m Home) User() *models.Author {
	return m.user
}
