// ABOUTME: Feed view: renders the cached posts.getAll query in server order.
// ABOUTME: Follows the query through its subscription channel so invalidations repaint the list.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/2389-research/chirp/internal/models"
	"github.com/2389-research/chirp/internal/posts"
	"github.com/2389-research/chirp/internal/query"
)

type feedStateMsg struct {
	state query.State[[]models.PostWithAuthor]
}

// openPostMsg asks the shell to show the single-post page.
type openPostMsg struct {
	entry models.PostWithAuthor
}

// waitForFeed blocks on the subscription until the next state arrives.
func waitForFeed(ch <-chan query.State[[]models.PostWithAuthor]) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return feedStateMsg{state: s}
	}
}

// fetchFeed runs the query. The result arrives through the subscription.
func fetchFeed(q *query.Query[[]models.PostWithAuthor]) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		q.Fetch(ctx)
		return nil
	}
}

// Feed lists posts with their authors.
type Feed struct {
	query   *query.Query[[]models.PostWithAuthor]
	updates <-chan query.State[[]models.PostWithAuthor]
	keys    KeyMap
	state   query.State[[]models.PostWithAuthor]
	spinner spinner.Model
	cursor  int
	focused bool
}

// NewFeed creates a feed view over q.
func NewFeed(q *query.Query[[]models.PostWithAuthor], keys KeyMap) Feed {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return Feed{query: q, keys: keys, spinner: s, state: q.State()}
}

// Subscribe attaches the feed to its query. The returned func unsubscribes.
func (f Feed) Subscribe() (Feed, func()) {
	ch, unsubscribe := f.query.Subscribe()
	f.updates = ch
	return f, unsubscribe
}

// Init starts following the subscription and fetches the feed.
func (f Feed) Init() tea.Cmd {
	cmds := []tea.Cmd{fetchFeed(f.query), f.spinner.Tick}
	if f.updates != nil {
		cmds = append(cmds, waitForFeed(f.updates))
	}
	return tea.Batch(cmds...)
}

func (f Feed) Focus() Feed {
	f.focused = true
	return f
}

func (f Feed) Blur() Feed {
	f.focused = false
	return f
}

func (f Feed) Focused() bool { return f.focused }
func (f Feed) Cursor() int   { return f.cursor }

// Entries returns the posts currently rendered.
func (f Feed) Entries() []models.PostWithAuthor {
	if !f.state.HasData {
		return nil
	}
	return f.state.Data
}

// Loading reports whether the initial fetch is still outstanding.
func (f Feed) Loading() bool {
	return !f.state.HasData && (f.state.Status == query.StatusIdle || f.state.Status == query.StatusLoading)
}

// Failed reports whether the feed has nothing to show after a fetch.
func (f Feed) Failed() bool {
	return !f.Loading() && !f.state.HasData
}

// Update handles subscription states, cursor movement and spinner ticks.
func (f Feed) Update(msg tea.Msg) (Feed, tea.Cmd) {
	switch msg := msg.(type) {
	case feedStateMsg:
		f.state = msg.state
		if n := len(f.Entries()); f.cursor >= n {
			f.cursor = max(n-1, 0)
		}
		var cmd tea.Cmd
		if f.updates != nil {
			cmd = waitForFeed(f.updates)
		}
		return f, cmd

	case tea.KeyMsg:
		if !f.focused {
			return f, nil
		}
		entries := f.Entries()
		switch {
		case key.Matches(msg, f.keys.Up):
			if f.cursor > 0 {
				f.cursor--
			}
		case key.Matches(msg, f.keys.Down):
			if f.cursor < len(entries)-1 {
				f.cursor++
			}
		case key.Matches(msg, f.keys.Refresh):
			return f, fetchFeed(f.query)
		case key.Matches(msg, f.keys.Open):
			if f.cursor < len(entries) {
				entry := entries[f.cursor]
				return f, func() tea.Msg { return openPostMsg{entry: entry} }
			}
		}
		return f, nil

	case spinner.TickMsg:
		if f.Loading() {
			var cmd tea.Cmd
			f.spinner, cmd = f.spinner.Update(msg)
			return f, cmd
		}
	}
	return f, nil
}

// View renders the loading placeholder, the failure message, or one entry per post.
func (f Feed) View() string {
	if f.Loading() {
		return f.spinner.View() + " Loading..."
	}
	if f.Failed() {
		return errorStyle.Render(posts.MsgFeedFailed)
	}

	var b strings.Builder
	for i, e := range f.Entries() {
		line := handleStyle.Render(e.Author.Handle()) + promptStyle.Render(" · "+humanize.Time(e.Post.CreatedAt))
		content := e.Post.Content
		if f.focused && i == f.cursor {
			line = selectedStyle.Render("> ") + line
			content = "  " + content
		}
		b.WriteString(entryStyle.Render(line + "\n" + content))
		b.WriteString("\n")
	}
	return b.String()
}
