// ABOUTME: Cobra command for the interactive home screen.
// ABOUTME: Runs the bubbletea shell with the composer and the live feed.
package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/2389-research/chirp/internal/rpc"
	"github.com/2389-research/chirp/internal/tui"
)

var homeCmd = &cobra.Command{
	Use:   "home",
	Short: "Open the feed and composer (default)",
	RunE:  runHome,
}

func init() {
	rootCmd.AddCommand(homeCmd)
}

func runHome(cmd *cobra.Command, args []string) error {
	client := newClient()
	model := tui.NewHome(rpc.NewFacade(client), client.HasSession())
	defer model.Close()

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
