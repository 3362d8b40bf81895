// ABOUTME: Cobra command that mints a session token for local development.
// ABOUTME: Signs with the server's session secret so the gate accepts it.
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389-research/chirp/internal/auth"
	"github.com/2389-research/chirp/internal/models"
)

var devTokenCmd = &cobra.Command{
	Use:   "dev-token <username>",
	Short: "Mint a development session token",
	Long: `Mint a session token signed with the configured session secret.

Use it with 'chirp login', or paste it into the server's sign-in page.`,
	Args: cobra.ExactArgs(1),
	RunE: runDevToken,
}

var (
	devTokenUserID string
	devTokenImage  string
	devTokenTTL    time.Duration
)

func init() {
	rootCmd.AddCommand(devTokenCmd)

	devTokenCmd.Flags().StringVar(&devTokenUserID, "user-id", "", "User ID (defaults to user_<username>)")
	devTokenCmd.Flags().StringVar(&devTokenImage, "image", "", "Profile image URL")
	devTokenCmd.Flags().DurationVar(&devTokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}

func runDevToken(cmd *cobra.Command, args []string) error {
	secret := globalConfig.Server.SessionSecret
	if secret == "" {
		return fmt.Errorf("no session secret configured (set CHIRP_SESSION_SECRET)")
	}

	username := models.NormalizeUsername(args[0])
	if username == "" {
		return fmt.Errorf("username is required")
	}
	userID := devTokenUserID
	if userID == "" {
		userID = "user_" + username
	}

	token, err := auth.Mint(secret, globalConfig.Server.Issuer, models.Author{
		ID:              userID,
		Username:        username,
		ProfileImageURL: devTokenImage,
	}, devTokenTTL)
	if err != nil {
		return fmt.Errorf("failed to mint token: %w", err)
	}

	fmt.Println(token)
	return nil
}
