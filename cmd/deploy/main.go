// deploy pushes an agent container to AWS AgentCore and waits for the
// runtime to come up.
//
// It handles:
//  1. Pushing secrets from .env to AWS Secrets Manager
//  2. Creating or updating the AgentCore runtime from a container image
//  3. Waiting until the runtime reports READY
//
// Usage:
//
//	deploy [flags]
//
// Examples:
//
//	deploy --name math_agent --container 123.dkr.ecr.us-west-2.amazonaws.com/math-agent:latest --role arn:aws:iam::123:role/runtime
//	deploy --env ../.env --name chat_agent --container ... --role ...
//	deploy --dry-run --name math_agent --container ... --role ...
//	deploy --skip-secrets --name math_agent --container ... --role ...
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/plexusone/agentcore-runtime/control"
	"github.com/plexusone/agentcore-runtime/logger"
)

var (
	region       = flag.String("region", "", "AWS region (default: AWS_REGION or us-west-2)")
	name         = flag.String("name", "", "AgentCore runtime name (required)")
	containerURI = flag.String("container", "", "ECR container image URI (required)")
	roleArn      = flag.String("role", "", "Execution role ARN (required)")
	envFile      = flag.String("env", "", "Path to .env file (default: auto-detect)")
	prefix       = flag.String("prefix", "agentcore-runtime", "Secret name prefix")
	dryRun       = flag.Bool("dry-run", false, "Preview changes without deploying")
	skipSecrets  = flag.Bool("skip-secrets", false, "Skip pushing secrets")
	verbose      = flag.Bool("verbose", false, "Show verbose output")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Deploy an agent container to AWS AgentCore.\n\n")
		fmt.Fprintf(os.Stderr, "Env file search order (if --env not specified):\n")
		fmt.Fprintf(os.Stderr, "  1. .env (current directory)\n")
		fmt.Fprintf(os.Stderr, "  2. ../.env (parent directory)\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nSteps:\n")
		fmt.Fprintf(os.Stderr, "  1. Push secrets from .env to AWS Secrets Manager\n")
		fmt.Fprintf(os.Stderr, "  2. Create or update the AgentCore runtime\n")
		fmt.Fprintf(os.Stderr, "  3. Wait for the runtime to reach READY\n")
	}
	flag.Parse()
	logger.Init(os.Getenv("LOG_LEVEL"))

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if *name == "" || *containerURI == "" || *roleArn == "" {
		return fmt.Errorf("--name, --container and --role are required")
	}

	awsRegion := *region
	if awsRegion == "" {
		awsRegion = os.Getenv("AWS_REGION")
	}
	if awsRegion == "" {
		awsRegion = os.Getenv("AWS_DEFAULT_REGION")
	}
	if awsRegion == "" {
		awsRegion = "us-west-2"
	}

	fmt.Println("=== AWS AgentCore Deployment ===")
	fmt.Println()
	fmt.Printf("Region: %s\n", awsRegion)
	fmt.Printf("Runtime: %s\n", *name)
	fmt.Printf("Container: %s\n", *containerURI)
	if *dryRun {
		fmt.Println("Mode: DRY RUN (no changes will be made)")
	}
	fmt.Println()

	ctx := context.Background()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}

	stsClient := sts.NewFromConfig(cfg)
	identity, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("getting AWS identity: %w", err)
	}
	fmt.Printf("AWS Account: %s\n", aws.ToString(identity.Account))
	fmt.Println()

	runtimeEnv := map[string]string{}

	// Step 1: Push secrets
	if !*skipSecrets {
		fmt.Println("=== Step 1: Push Secrets ===")
		if err := pushSecrets(ctx, cfg, *envFile, *prefix, runtimeEnv, *dryRun, *verbose); err != nil {
			return fmt.Errorf("pushing secrets: %w", err)
		}
		fmt.Println()
	} else {
		fmt.Println("=== Step 1: Skipping secrets (--skip-secrets) ===")
		fmt.Println()
	}

	// Step 2: Create or update runtime
	fmt.Println("=== Step 2: Deploy Runtime ===")
	if *dryRun {
		fmt.Printf("[DRY RUN] Would create/update runtime %s from %s\n", *name, *containerURI)
		fmt.Println()
		fmt.Println("=== Deployment Complete ===")
		return nil
	}

	controlClient, err := control.New(ctx, awsRegion)
	if err != nil {
		return err
	}
	rt, err := controlClient.EnsureRuntime(ctx, control.RuntimeSpec{
		Name:         *name,
		ContainerURI: *containerURI,
		RoleArn:      *roleArn,
		Env:          runtimeEnv,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Runtime ID: %s\n", rt.ID)
	fmt.Printf("Runtime ARN: %s\n", rt.Arn)
	fmt.Println()

	// Step 3: Wait for READY
	fmt.Println("=== Step 3: Wait for READY ===")
	status, err := controlClient.WaitReady(ctx, rt.ID, 10*time.Second)
	if err != nil {
		return fmt.Errorf("waiting for runtime: %w", err)
	}
	fmt.Printf("Runtime status: %s\n", status)
	fmt.Println()

	fmt.Println("=== Deployment Complete ===")
	fmt.Println()
	fmt.Println("To invoke:")
	fmt.Printf("  agent-cli --region %s --runtime %s\n", awsRegion, *name)
	return nil
}

// pushSecrets pushes environment variables to AWS Secrets Manager and records
// the non-secret configuration keys that should travel with the runtime.
func pushSecrets(ctx context.Context, cfg aws.Config, envFile, prefix string, runtimeEnv map[string]string, dryRun, verbose bool) error {
	var envPath string
	if envFile != "" {
		envPath = envFile
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			fmt.Printf("Warning: %s not found, skipping secrets push\n", envFile)
			return nil
		}
	} else {
		var err error
		envPath, err = findEnvFile()
		if err != nil {
			fmt.Println("No .env file found, skipping secrets push")
			fmt.Println("  Searched: .env, ../.env")
			return nil
		}
	}

	fmt.Printf("Reading from: %s\n", envPath)

	groups := []secretGroup{
		{
			name:        "llm",
			description: "LLM provider API keys",
			keys:        make(map[string]string),
			patterns:    []string{"ANTHROPIC_API_KEY", "CLAUDE_API_KEY", "LLM_API_KEY"},
		},
		{
			name:        "oauth",
			description: "OAuth2 client credentials",
			keys:        make(map[string]string),
			patterns:    []string{"OAUTH_CLIENT_ID", "OAUTH_CLIENT_SECRET", "COGNITO_CLIENT_ID", "COGNITO_CLIENT_SECRET"},
		},
	}

	// Plain configuration rides on the runtime as environment variables
	// rather than in Secrets Manager.
	configKeys := []string{
		"MODEL_ID", "LOG_LEVEL",
		"PRIMARY_REGION", "PRIMARY_MEMORY_ID",
		"SECONDARY_REGION", "SECONDARY_MEMORY_ID",
	}

	if err := parseEnvFile(envPath, groups, configKeys, runtimeEnv, verbose); err != nil {
		return err
	}

	var client *secretsmanager.Client
	if !dryRun {
		client = secretsmanager.NewFromConfig(cfg)
	}

	for _, group := range groups {
		secretName := fmt.Sprintf("%s/%s", prefix, group.name)
		if err := createOrUpdateSecret(ctx, client, secretName, group, dryRun); err != nil {
			return err
		}
	}

	return nil
}

type secretGroup struct {
	name        string
	description string
	keys        map[string]string
	patterns    []string
}

func parseEnvFile(filename string, groups []secretGroup, configKeys []string, runtimeEnv map[string]string, verbose bool) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	envRegex := regexp.MustCompile(`^\s*(export\s+)?([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		matches := envRegex.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		key := matches[2]
		value := strings.Trim(matches[3], `"'`)

		if value == "" || strings.HasPrefix(value, "your-") {
			continue
		}

		for i := range groups {
			for _, pattern := range groups[i].patterns {
				if key == pattern {
					groups[i].keys[key] = value
					if verbose {
						fmt.Printf("  Found %s: %s\n", groups[i].name, key)
					}
					break
				}
			}
		}
		for _, ck := range configKeys {
			if key == ck {
				runtimeEnv[key] = value
				if verbose {
					fmt.Printf("  Found config: %s\n", key)
				}
				break
			}
		}
	}

	return scanner.Err()
}

func createOrUpdateSecret(ctx context.Context, client *secretsmanager.Client, secretName string, group secretGroup, dryRun bool) error {
	if len(group.keys) == 0 {
		fmt.Printf("  Skipping %s (no keys found)\n", secretName)
		return nil
	}

	jsonBytes, err := json.Marshal(group.keys)
	if err != nil {
		return err
	}
	secretValue := string(jsonBytes)

	var keyNames []string
	for k := range group.keys {
		keyNames = append(keyNames, k)
	}
	fmt.Printf("  %s: %s\n", secretName, strings.Join(keyNames, ", "))

	if dryRun {
		fmt.Printf("    [DRY RUN] Would create/update\n")
		return nil
	}

	_, err = client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(secretName),
		SecretString: aws.String(secretValue),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			_, err = client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
				Name:         aws.String(secretName),
				Description:  aws.String(group.description),
				SecretString: aws.String(secretValue),
			})
			if err != nil {
				return err
			}
			fmt.Printf("    Created\n")
			return nil
		}
		return err
	}
	fmt.Printf("    Updated\n")
	return nil
}

// findEnvFile searches for a .env file in the current and parent directory.
func findEnvFile() (string, error) {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no .env file found")
}
