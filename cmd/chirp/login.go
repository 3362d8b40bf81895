// ABOUTME: Cobra command for interactive sign-in.
// ABOUTME: Launches the bubbletea wizard and saves only the client section of the config file.
package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/2389-research/chirp/internal/config"
	"github.com/2389-research/chirp/internal/tui"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign the terminal client in to a chirp server",
	Long:  "Interactive wizard that checks a session token against the server and saves it.",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session token",
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	model := tui.NewLoginModel(globalConfig.Client.APIURL, globalConfig.Client.SessionToken)

	result, err := tea.NewProgram(model).Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	final := result.(tui.LoginModel)
	if !final.ShouldSave() {
		fmt.Println("Sign-in cancelled.")
		return nil
	}

	apiURL, token := final.Result()
	return saveClient(func(c *config.ClientConfig) {
		c.APIURL = apiURL
		c.SessionToken = token
	})
}

func runLogout(cmd *cobra.Command, args []string) error {
	return saveClient(func(c *config.ClientConfig) {
		c.SessionToken = ""
	})
}

// saveClient edits the client section of the config file. Env overrides and
// defaults in globalConfig are never written back.
func saveClient(update func(*config.ClientConfig)) error {
	update(&globalConfig.Client)
	if err := config.UpdateClient(update); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	configPath, err := config.GetConfigPath()
	if err != nil {
		fmt.Println("Config saved successfully.")
	} else {
		fmt.Printf("Config saved to %s\n", configPath)
	}
	return nil
}
