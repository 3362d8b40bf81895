// ABOUTME: MCP tool implementations for the chirp feed.
// ABOUTME: Registers whoami, read_posts, and create_post tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389-research/chirp/internal/apierr"
	"github.com/2389-research/chirp/internal/models"
	"github.com/2389-research/chirp/internal/posts"
	"github.com/2389-research/chirp/internal/query"
)

const defaultReadLimit = 10

func (s *Server) registerFeedTools() {
	s.mcp.AddTool(&gomcp.Tool{
		Name:        "whoami",
		Description: "Show the chirp account the agent is signed in as.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	}, s.handleWhoAmI)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "create_post",
		Description: "Post to the chirp feed. Posts may only contain emoji and are at most 280 characters.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"content": {"type": "string", "description": "The emoji-only content of the post.", "minLength": 1}
			},
			"required": ["content"]
		}`),
	}, s.handleCreatePost)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "read_posts",
		Description: "Read the newest posts from the chirp feed with their authors.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"limit": {"type": "number", "description": "Maximum number of posts to show (default 10)"}
			}
		}`),
	}, s.handleReadPosts)
}

func (s *Server) handleWhoAmI(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	user, err := s.facade.WhoAmI(ctx)
	if err != nil {
		return toolError("failed to resolve session: %s", describe(err)), nil
	}
	return toolText("Signed in as %s", user.Handle()), nil
}

func (s *Server) handleCreatePost(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}
	if args.Content == "" {
		return toolError("content is required"), nil
	}

	create := s.facade.CreatePost(query.MutationOptions[*models.Post]{})
	post, err := create.Mutate(ctx, args.Content)
	if err != nil {
		return toolError("failed to create post: %s", describe(err)), nil
	}

	return toolText("Post created (ID: %s)", post.ShortID()), nil
}

func (s *Server) handleReadPosts(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		Limit int `json:"limit"`
	}
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return toolError("invalid arguments: %v", err), nil
		}
	}
	if args.Limit <= 0 {
		args.Limit = defaultReadLimit
	}

	state := s.facade.AllPosts.Fetch(ctx)
	if state.Err != nil {
		return toolError("failed to read posts: %s", describe(state.Err)), nil
	}

	entries := state.Data
	if len(entries) == 0 {
		return toolText("No entries yet."), nil
	}
	if len(entries) > args.Limit {
		entries = entries[:args.Limit]
	}

	var sb strings.Builder
	for _, p := range entries {
		sb.WriteString(fmt.Sprintf("---\n%s [%s] (%s)\n%s\n",
			p.Author.Handle(),
			p.Post.CreatedAt.Format("2006-01-02 15:04:05"),
			p.Post.ShortID(),
			p.Post.Content,
		))
	}
	return toolText("%s", sb.String()), nil
}

// describe flattens an API error, including its content validation message.
func describe(err error) string {
	e, ok := apierr.As(err)
	if !ok {
		return err.Error()
	}
	if msg, ok := posts.ContentError(err); ok {
		return msg
	}
	return e.Message
}

func toolText(format string, args ...interface{}) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

func toolError(format string, args ...interface{}) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
