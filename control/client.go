// Package control wraps the Bedrock AgentCore control plane for runtime
// deployment and configuration updates.
package control

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcorecontrol"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcorecontrol/types"

	"github.com/plexusone/agentcore-runtime/logger"
)

// controlAPI is the subset of the control-plane client used here.
type controlAPI interface {
	ListAgentRuntimes(ctx context.Context, params *bedrockagentcorecontrol.ListAgentRuntimesInput, optFns ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.ListAgentRuntimesOutput, error)
	GetAgentRuntime(ctx context.Context, params *bedrockagentcorecontrol.GetAgentRuntimeInput, optFns ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.GetAgentRuntimeOutput, error)
	CreateAgentRuntime(ctx context.Context, params *bedrockagentcorecontrol.CreateAgentRuntimeInput, optFns ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.CreateAgentRuntimeOutput, error)
	UpdateAgentRuntime(ctx context.Context, params *bedrockagentcorecontrol.UpdateAgentRuntimeInput, optFns ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.UpdateAgentRuntimeOutput, error)
}

// Runtime is a deployed AgentCore runtime.
type Runtime struct {
	ID      string
	Arn     string
	Name    string
	Version string
	Status  types.AgentRuntimeStatus
}

// Client talks to the AgentCore control plane in a single region.
type Client struct {
	api    controlAPI
	region string
}

// RuntimeSpec describes a runtime to create or update.
type RuntimeSpec struct {
	Name         string
	ContainerURI string
	RoleArn      string
	Env          map[string]string
}

func New(ctx context.Context, region string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for %s: %w", region, err)
	}
	return &Client{api: bedrockagentcorecontrol.NewFromConfig(cfg), region: region}, nil
}

func newWithAPI(api controlAPI, region string) *Client {
	return &Client{api: api, region: region}
}

func (c *Client) Region() string { return c.region }

// FindRuntimeByName walks the runtime list looking for an exact name match.
// Returns nil when no runtime carries the name.
func (c *Client) FindRuntimeByName(ctx context.Context, name string) (*Runtime, error) {
	paginator := bedrockagentcorecontrol.NewListAgentRuntimesPaginator(c.api, &bedrockagentcorecontrol.ListAgentRuntimesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing agent runtimes in %s: %w", c.region, err)
		}
		for _, rt := range page.AgentRuntimes {
			if aws.ToString(rt.AgentRuntimeName) == name {
				return &Runtime{
					ID:      aws.ToString(rt.AgentRuntimeId),
					Arn:     aws.ToString(rt.AgentRuntimeArn),
					Name:    aws.ToString(rt.AgentRuntimeName),
					Version: aws.ToString(rt.AgentRuntimeVersion),
					Status:  rt.Status,
				}, nil
			}
		}
	}
	return nil, nil
}

// UpdateRuntimeEnv merges updates into the runtime's current environment
// variables and pushes a new runtime version. Existing keys not named in
// updates are preserved.
func (c *Client) UpdateRuntimeEnv(ctx context.Context, runtimeID string, updates map[string]string) error {
	current, err := c.api.GetAgentRuntime(ctx, &bedrockagentcorecontrol.GetAgentRuntimeInput{
		AgentRuntimeId: aws.String(runtimeID),
	})
	if err != nil {
		return fmt.Errorf("getting agent runtime %s: %w", runtimeID, err)
	}

	env := map[string]string{}
	for k, v := range current.EnvironmentVariables {
		env[k] = v
	}
	for k, v := range updates {
		env[k] = v
	}

	_, err = c.api.UpdateAgentRuntime(ctx, &bedrockagentcorecontrol.UpdateAgentRuntimeInput{
		AgentRuntimeId:       aws.String(runtimeID),
		AgentRuntimeArtifact: current.AgentRuntimeArtifact,
		RoleArn:              current.RoleArn,
		NetworkConfiguration: current.NetworkConfiguration,
		ProtocolConfiguration: &types.ProtocolConfiguration{
			ServerProtocol: types.ServerProtocolHttp,
		},
		EnvironmentVariables: env,
	})
	if err != nil {
		return fmt.Errorf("updating agent runtime %s: %w", runtimeID, err)
	}

	logger.Logger.Info().
		Str("runtime_id", runtimeID).
		Str("region", c.region).
		Int("env_keys", len(env)).
		Msg("updated runtime environment")
	return nil
}

// EnsureRuntime creates the runtime when it does not exist yet, or updates the
// existing one in place with the spec's container image and environment.
func (c *Client) EnsureRuntime(ctx context.Context, spec RuntimeSpec) (*Runtime, error) {
	existing, err := c.FindRuntimeByName(ctx, spec.Name)
	if err != nil {
		return nil, err
	}

	artifact := &types.AgentRuntimeArtifactMemberContainerConfiguration{
		Value: types.ContainerConfiguration{
			ContainerUri: aws.String(spec.ContainerURI),
		},
	}
	network := &types.NetworkConfiguration{NetworkMode: types.NetworkModePublic}
	protocol := &types.ProtocolConfiguration{ServerProtocol: types.ServerProtocolHttp}

	if existing != nil {
		_, err = c.api.UpdateAgentRuntime(ctx, &bedrockagentcorecontrol.UpdateAgentRuntimeInput{
			AgentRuntimeId:        aws.String(existing.ID),
			AgentRuntimeArtifact:  artifact,
			RoleArn:               aws.String(spec.RoleArn),
			NetworkConfiguration:  network,
			ProtocolConfiguration: protocol,
			EnvironmentVariables:  spec.Env,
		})
		if err != nil {
			return nil, fmt.Errorf("updating agent runtime %s: %w", spec.Name, err)
		}
		logger.Logger.Info().Str("name", spec.Name).Str("region", c.region).Msg("updated existing runtime")
		return existing, nil
	}

	out, err := c.api.CreateAgentRuntime(ctx, &bedrockagentcorecontrol.CreateAgentRuntimeInput{
		AgentRuntimeName:      aws.String(spec.Name),
		AgentRuntimeArtifact:  artifact,
		RoleArn:               aws.String(spec.RoleArn),
		NetworkConfiguration:  network,
		ProtocolConfiguration: protocol,
		EnvironmentVariables:  spec.Env,
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent runtime %s: %w", spec.Name, err)
	}

	logger.Logger.Info().Str("name", spec.Name).Str("region", c.region).Msg("created runtime")
	return &Runtime{
		ID:   aws.ToString(out.AgentRuntimeId),
		Arn:  aws.ToString(out.AgentRuntimeArn),
		Name: spec.Name,
	}, nil
}

// WaitReady polls the runtime until it reaches READY or a terminal failure
// state. pollInterval of zero defaults to 10 seconds.
func (c *Client) WaitReady(ctx context.Context, runtimeID string, pollInterval time.Duration) (types.AgentRuntimeStatus, error) {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	for {
		out, err := c.api.GetAgentRuntime(ctx, &bedrockagentcorecontrol.GetAgentRuntimeInput{
			AgentRuntimeId: aws.String(runtimeID),
		})
		if err != nil {
			return "", fmt.Errorf("getting agent runtime %s: %w", runtimeID, err)
		}
		switch out.Status {
		case types.AgentRuntimeStatusReady:
			return out.Status, nil
		case types.AgentRuntimeStatusCreateFailed, types.AgentRuntimeStatusUpdateFailed:
			return out.Status, fmt.Errorf("agent runtime %s entered %s", runtimeID, out.Status)
		}

		logger.Logger.Info().Str("runtime_id", runtimeID).Str("status", string(out.Status)).Msg("waiting for runtime")
		select {
		case <-ctx.Done():
			return out.Status, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
