// runtime-math hosts the worker/evaluator math agent behind the AgentCore
// runtime HTTP contract on port 8080.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/plexusone/agentcore-runtime/bedrock"
	"github.com/plexusone/agentcore-runtime/config"
	"github.com/plexusone/agentcore-runtime/logger"
	"github.com/plexusone/agentcore-runtime/mathagent"
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

	modelID := cfg.ModelID
	if modelID == "" {
		modelID, err = bedrock.ModelIDForRegion(cfg.Region)
		if err != nil {
			return err
		}
	}

	model, err := bedrock.NewModel(ctx, modelID, cfg.Region)
	if err != nil {
		return err
	}
	agent, err := mathagent.New(model)
	if err != nil {
		return err
	}

	app := runtime.NewApp()
	app.Entrypoint(func(ctx context.Context, req *runtime.InvocationRequest) (any, error) {
		return agent.Answer(ctx, req.Prompt)
	})
	app.StreamEntrypoint(func(ctx context.Context, req *runtime.InvocationRequest) (<-chan any, error) {
		mode := req.StreamMode
		if mode == "" {
			mode = mathagent.StreamModeUpdates
		}
		return agent.Stream(ctx, req.Prompt, mode), nil
	})

	logger.Logger.Info().Str("port", cfg.Port).Str("model", modelID).Msg("starting math agent runtime")
	return app.Run(":" + cfg.Port)
}
