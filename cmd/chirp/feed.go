// ABOUTME: One-shot CLI commands for reading the feed and posting.
// ABOUTME: Call the server procedures through the RPC client without the TUI.
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/2389-research/chirp/internal/apierr"
	"github.com/2389-research/chirp/internal/models"
	"github.com/2389-research/chirp/internal/posts"
	"github.com/2389-research/chirp/internal/query"
	"github.com/2389-research/chirp/internal/rpc"
)

const cliTimeout = 15 * time.Second

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Print the newest posts",
	RunE:  runFeed,
}

var postCmd = &cobra.Command{
	Use:   "post <emoji>",
	Short: "Post to the feed",
	Args:  cobra.ExactArgs(1),
	RunE:  runPost,
}

var feedLimit int

func init() {
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(postCmd)

	feedCmd.Flags().IntVar(&feedLimit, "limit", 10, "Maximum number of posts to show")
}

func runFeed(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
	defer cancel()

	entries, err := newClient().GetAllPosts(ctx)
	if err != nil {
		return fmt.Errorf("failed to read feed: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No posts yet.")
		return nil
	}
	if feedLimit > 0 && len(entries) > feedLimit {
		entries = entries[:feedLimit]
	}

	for _, e := range entries {
		fmt.Printf("%s · %s  %s\n  %s\n\n",
			e.Author.Handle(),
			humanize.Time(e.Post.CreatedAt),
			e.Post.ShortID(),
			e.Post.Content,
		)
	}
	return nil
}

func runPost(cmd *cobra.Command, args []string) error {
	client := newClient()
	if !client.HasSession() {
		return fmt.Errorf("not signed in - run 'chirp login' first")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
	defer cancel()

	create := rpc.NewFacade(client).CreatePost(query.MutationOptions[*models.Post]{})
	post, err := create.Mutate(ctx, args[0])
	if err != nil {
		if e, ok := apierr.As(err); ok {
			if msg, ok := e.FieldError(posts.ContentField); ok {
				return errors.New(msg)
			}
		}
		return fmt.Errorf("failed to post: %w", err)
	}

	fmt.Printf("Posted (ID: %s)\n", post.ShortID())
	return nil
}
