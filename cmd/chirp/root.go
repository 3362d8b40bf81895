// ABOUTME: Root Cobra command and global flags for the chirp CLI.
// ABOUTME: Loads .env and config, configures zerolog, and defaults to the home screen.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/2389-research/chirp/internal/config"
	"github.com/2389-research/chirp/internal/rpc"
)

var globalConfig *config.Config

var (
	logLevel  string
	logFile   string
	logCloser io.Closer
)

// interactive commands own the terminal, so they only log to --log-file.
var interactive = map[string]bool{
	"chirp": true,
	"home":  true,
	"login": true,
}

var rootCmd = &cobra.Command{
	Use:   "chirp",
	Short: "An emoji-only social feed",
	Long: `
 ██████╗██╗  ██╗██╗██████╗ ██████╗
██╔════╝██║  ██║██║██╔══██╗██╔══██╗
██║     ███████║██║██████╔╝██████╔╝
██║     ██╔══██║██║██╔══██╗██╔═══╝
╚██████╗██║  ██║██║██║  ██║██║
 ╚═════╝╚═╝  ╚═╝╚═╝╚═╝  ╚═╝╚═╝

Post emoji. Read everyone's emoji.
Run 'chirp serve' for the server and plain 'chirp' for the terminal client.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		if err := config.LoadDotEnv(); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		globalConfig = cfg

		return setupLogging(cmd.Name())
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			_ = logCloser.Close()
			logCloser = nil
		}
		return nil
	},
	RunE: runHome,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
}

func setupLogging(command string) error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	switch {
	case logFile != "":
		path, err := config.ExpandPath(logFile)
		if err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logCloser = f
		log.Logger = zerolog.New(f).With().Timestamp().Logger()
	case interactive[command]:
		log.Logger = zerolog.New(io.Discard)
	default:
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return nil
}

// newClient builds the RPC client from the configured server and session.
func newClient() *rpc.Client {
	return rpc.NewClient(globalConfig.GetAPIURL(), globalConfig.Client.SessionToken)
}
