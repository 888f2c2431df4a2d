// enable-replication wires two deployed chat runtimes into a dual-region
// memory pair. Each runtime keeps its own region's memory as primary and
// gets the other region's memory as its replication target, so checkpoints
// written in either region land in both.
//
// Usage:
//
//	enable-replication --runtime chat_agent \
//	  --primary-region us-west-2 --primary-memory-id mem-west \
//	  --secondary-region us-east-1 --secondary-memory-id mem-east
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/plexusone/agentcore-runtime/control"
	"github.com/plexusone/agentcore-runtime/logger"
)

var (
	runtimeName       = flag.String("runtime", "chat_agent", "AgentCore runtime name, same in both regions")
	primaryRegion     = flag.String("primary-region", "us-west-2", "First region")
	primaryMemoryID   = flag.String("primary-memory-id", "", "Memory ID in the first region (required)")
	secondaryRegion   = flag.String("secondary-region", "us-east-1", "Second region")
	secondaryMemoryID = flag.String("secondary-memory-id", "", "Memory ID in the second region (required)")
)

func main() {
	flag.Parse()
	logger.Init(os.Getenv("LOG_LEVEL"))

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if *primaryMemoryID == "" || *secondaryMemoryID == "" {
		return fmt.Errorf("--primary-memory-id and --secondary-memory-id are required")
	}

	ctx := context.Background()

	type side struct {
		region, ownMemory, peerRegion, peerMemory string
	}
	sides := []side{
		{*primaryRegion, *primaryMemoryID, *secondaryRegion, *secondaryMemoryID},
		{*secondaryRegion, *secondaryMemoryID, *primaryRegion, *primaryMemoryID},
	}

	for _, s := range sides {
		fmt.Printf("=== %s ===\n", s.region)

		client, err := control.New(ctx, s.region)
		if err != nil {
			return err
		}
		rt, err := client.FindRuntimeByName(ctx, *runtimeName)
		if err != nil {
			return err
		}
		if rt == nil {
			return fmt.Errorf("no runtime named %q in %s", *runtimeName, s.region)
		}
		fmt.Printf("Runtime: %s\n", rt.ID)

		err = client.UpdateRuntimeEnv(ctx, rt.ID, map[string]string{
			"PRIMARY_REGION":      s.region,
			"PRIMARY_MEMORY_ID":   s.ownMemory,
			"SECONDARY_REGION":    s.peerRegion,
			"SECONDARY_MEMORY_ID": s.peerMemory,
		})
		if err != nil {
			return err
		}

		status, err := client.WaitReady(ctx, rt.ID, 10*time.Second)
		if err != nil {
			return fmt.Errorf("runtime in %s: %w", s.region, err)
		}
		fmt.Printf("Status: %s\n\n", status)
	}

	fmt.Println("Memory replication enabled in both regions.")
	return nil
}
