package oauthcb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/plexusone/agentcore-runtime/identity"
	"github.com/plexusone/agentcore-runtime/logger"
)

// BaseURL is the internal base URL of a locally running callback server.
func BaseURL() string {
	return fmt.Sprintf("http://localhost:%d", DefaultPort)
}

// CallbackURL is the full browser-accessible callback URL, registered with
// workload identity and handed to OAuth providers as the redirect URI.
func CallbackURL() string {
	return BaseURL() + CallbackEndpoint
}

// StoreToken stores the user token identifier in a running callback server,
// binding the upcoming OAuth session to that user. Call before starting the
// flow.
func StoreToken(ctx context.Context, baseURL, userToken string) error {
	if userToken == "" {
		return fmt.Errorf("invalid user token")
	}

	body, err := json.Marshal(identity.UserTokenIdentifier{UserToken: userToken})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+UserIdentifierEndpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("storing user token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("storing user token: unexpected status %s", resp.Status)
	}
	return nil
}

// WaitForReady polls the server's ping endpoint until it answers 200 or the
// timeout elapses. A non-positive timeout defaults to 40 seconds.
func WaitForReady(ctx context.Context, baseURL string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = 40 * time.Second
	}
	logger.Logger.Info().Msg("waiting for OAuth2 callback server to be ready")

	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+PingEndpoint, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				logger.Logger.Info().Msg("OAuth2 callback server is ready")
				return true
			}
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(2 * time.Second):
		}
	}

	logger.Logger.Error().Dur("timeout", timeout).Msg("OAuth2 callback server not ready")
	return false
}
