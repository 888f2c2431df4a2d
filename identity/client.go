// Package identity talks to the AgentCore Identity service for OAuth2
// three-legged (3LO) flows.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/plexusone/agentcore-runtime/sigv4"
)

const serviceName = "bedrock-agentcore"

// UserTokenIdentifier binds an OAuth session to a user, typically the JWT
// access token from inbound authentication.
type UserTokenIdentifier struct {
	UserToken string `json:"user_token"`
}

// Client calls the regional AgentCore Identity endpoint with SigV4-signed
// requests.
type Client struct {
	httpClient *http.Client
	endpoint   string
}

// NewClient builds an identity client for the region, loading AWS
// credentials from the default chain.
func NewClient(ctx context.Context, region string) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for %s: %w", region, err)
	}
	transport := sigv4.NewTransport(nil, awsCfg.Credentials, serviceName, region)
	return &Client{
		httpClient: transport.Client(30 * time.Second),
		endpoint:   fmt.Sprintf("https://bedrock-agentcore.%s.amazonaws.com", region),
	}, nil
}

// NewClientWithEndpoint overrides the endpoint and HTTP client, used by
// tests and non-standard deployments.
func NewClientWithEndpoint(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, endpoint: endpoint}
}

type completeAuthRequest struct {
	SessionURI          string              `json:"sessionUri"`
	UserTokenIdentifier UserTokenIdentifier `json:"userTokenIdentifier"`
}

// CompleteResourceTokenAuth finishes a 3LO flow: it associates the OAuth
// session from the provider redirect with the identified user so the
// resource token becomes retrievable.
func (c *Client) CompleteResourceTokenAuth(ctx context.Context, sessionURI string, user UserTokenIdentifier) error {
	body, err := json.Marshal(completeAuthRequest{SessionURI: sessionURI, UserTokenIdentifier: user})
	if err != nil {
		return err
	}

	url := c.endpoint + "/identities/CompleteResourceTokenAuth"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("completing resource token auth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("completing resource token auth: %s: %s", resp.Status, msg)
	}
	return nil
}
