// ABOUTME: Session validation for the sign-in wizard.
// ABOUTME: Resolves the token's user through the session.whoami procedure.
package tui

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/2389-research/chirp/internal/models"
	"github.com/2389-research/chirp/internal/rpc"
)

// ValidateSession checks the token against apiURL and returns the signed-in user.
// The context allows cancellation when the user quits during validation.
func ValidateSession(ctx context.Context, apiURL, token string) (*models.Author, error) {
	client := rpc.NewClient(apiURL, token, rpc.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}))
	user, err := client.WhoAmI(ctx)
	if err != nil {
		return nil, fmt.Errorf("session check failed: %w", err)
	}
	return user, nil
}
