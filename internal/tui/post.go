// ABOUTME: Single-post page placeholder reached from the feed.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/chirp/internal/models"
	"github.com/2389-research/chirp/internal/posts"
)

type closePostMsg struct{}

// PostPage is the detail view for one post.
type PostPage struct {
	entry models.PostWithAuthor
	keys  KeyMap
}

func NewPostPage(entry models.PostWithAuthor, keys KeyMap) PostPage {
	return PostPage{entry: entry, keys: keys}
}

// ID returns the post shown on the page.
func (p PostPage) ID() string {
	return p.entry.Post.ID.String()
}

func (p PostPage) Update(msg tea.Msg) (PostPage, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, p.keys.Back) {
		return p, func() tea.Msg { return closePostMsg{} }
	}
	return p, nil
}

func (p PostPage) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(posts.PostPageTitle))
	b.WriteString("\n\n")
	b.WriteString(posts.PostPageBody)
	b.WriteString("\n\n")
	b.WriteString(helpLine(p.keys.Back, p.keys.Quit))
	return b.String()
}
