// agent-cli is an interactive terminal client for a deployed AgentCore
// runtime. It resolves the runtime ARN by name, opens a session, and sends
// each line of input as an invocation.
//
// Usage:
//
//	agent-cli --region us-west-2 --runtime chat_agent
//	agent-cli --region us-west-2 --runtime chat_agent --actor-id user-42
//
// Type "quit" or "exit" to leave.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"
	"github.com/google/uuid"

	"github.com/plexusone/agentcore-runtime/control"
	"github.com/plexusone/agentcore-runtime/logger"
)

var (
	region      = flag.String("region", "us-west-2", "AWS region")
	runtimeName = flag.String("runtime", "chat_agent", "AgentCore runtime name")
	actorID     = flag.String("actor-id", "agent-1", "Actor identifier for memory scoping")
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
	ctx := context.Background()

	controlClient, err := control.New(ctx, *region)
	if err != nil {
		return err
	}
	rt, err := controlClient.FindRuntimeByName(ctx, *runtimeName)
	if err != nil {
		return err
	}
	if rt == nil {
		return fmt.Errorf("no runtime named %q in %s", *runtimeName, *region)
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(*region))
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}
	dataClient := bedrockagentcore.NewFromConfig(cfg)

	sessionID := uuid.NewString()
	fmt.Printf("Connected to %s (%s)\n", *runtimeName, rt.Arn)
	fmt.Printf("Session: %s\n", sessionID)
	fmt.Println("Type 'quit' or 'exit' to leave.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		reply, err := invoke(ctx, dataClient, rt.Arn, sessionID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invocation failed: %v\n", err)
			continue
		}
		fmt.Println(reply)
		fmt.Println()
	}
	return scanner.Err()
}

func invoke(ctx context.Context, client *bedrockagentcore.Client, arn, sessionID, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"prompt":    prompt,
		"thread_id": sessionID,
		"actor_id":  *actorID,
	})
	if err != nil {
		return "", err
	}

	out, err := client.InvokeAgentRuntime(ctx, &bedrockagentcore.InvokeAgentRuntimeInput{
		AgentRuntimeArn:  aws.String(arn),
		Qualifier:        aws.String("DEFAULT"),
		RuntimeSessionId: aws.String(sessionID),
		Payload:          payload,
	})
	if err != nil {
		return "", err
	}
	defer out.Response.Close()

	body, err := io.ReadAll(out.Response)
	if err != nil {
		return "", fmt.Errorf("reading runtime response: %w", err)
	}

	// Prefer the agent's result field; fall back to the raw body.
	var parsed struct {
		Result string `json:"result"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Result != "" {
		return parsed.Result, nil
	}
	return strings.TrimSpace(string(body)), nil
}
