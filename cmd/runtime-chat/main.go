// runtime-chat hosts the conversational agent behind the AgentCore runtime
// HTTP contract. Checkpoints go to AgentCore Memory in the primary region,
// and to the secondary region as well when SECONDARY_REGION and
// SECONDARY_MEMORY_ID are set.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/plexusone/agentcore-runtime/bedrock"
	"github.com/plexusone/agentcore-runtime/chatagent"
	"github.com/plexusone/agentcore-runtime/checkpoint"
	"github.com/plexusone/agentcore-runtime/config"
	"github.com/plexusone/agentcore-runtime/logger"
	"github.com/plexusone/agentcore-runtime/runtime"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.LoadWithSSM(ctx)
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel)
	logger.UseRequestLog(os.Stdout)

	primaryRegion := cfg.PrimaryRegion
	if primaryRegion == "" {
		primaryRegion = cfg.Region
	}
	if cfg.PrimaryMemoryID == "" {
		return fmt.Errorf("PRIMARY_MEMORY_ID is required")
	}

	saver, err := buildSaver(ctx, cfg, primaryRegion)
	if err != nil {
		return err
	}

	modelID := cfg.ModelID
	if modelID == "" {
		modelID, err = bedrock.ModelIDForRegion(primaryRegion)
		if err != nil {
			return err
		}
	}
	model, err := bedrock.NewModel(ctx, modelID, primaryRegion)
	if err != nil {
		return err
	}

	agent, err := chatagent.New(model, saver)
	if err != nil {
		return err
	}

	app := runtime.NewApp()
	app.Entrypoint(func(ctx context.Context, req *runtime.InvocationRequest) (any, error) {
		reply, err := agent.Invoke(ctx, req.Prompt, req.ThreadID, req.ActorID)
		if err != nil {
			return nil, err
		}
		return chatagent.Reply{Result: reply}, nil
	})

	logger.Logger.Info().
		Str("port", cfg.Port).
		Str("primary_region", primaryRegion).
		Str("secondary_region", cfg.SecondaryRegion).
		Msg("starting chat agent runtime")
	return app.Run(":" + cfg.Port)
}

// buildSaver returns a dual-region saver when a secondary memory is
// configured, and a single-region saver otherwise.
func buildSaver(ctx context.Context, cfg *config.AppConfig, primaryRegion string) (checkpoint.Saver, error) {
	primary, err := checkpoint.NewAgentCoreSaver(ctx, cfg.PrimaryMemoryID, primaryRegion)
	if err != nil {
		return nil, fmt.Errorf("creating primary saver: %w", err)
	}

	if cfg.SecondaryRegion == "" || cfg.SecondaryMemoryID == "" {
		logger.Logger.Info().Str("region", primaryRegion).Msg("memory replication disabled")
		return primary, nil
	}

	secondary, err := checkpoint.NewAgentCoreSaver(ctx, cfg.SecondaryMemoryID, cfg.SecondaryRegion)
	if err != nil {
		return nil, fmt.Errorf("creating secondary saver: %w", err)
	}
	return checkpoint.NewMultiRegionSaver(primary, secondary, primaryRegion, cfg.SecondaryRegion), nil
}
