// invoke sends a single request to a locally running agent runtime and
// prints the response, handling both plain JSON and SSE streaming bodies.
//
// Usage:
//
//	invoke --prompt "what is 3 * 15?"
//	invoke --url http://localhost:8080 --prompt "..." --stream --stream-mode values
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/plexusone/agentcore-runtime/sigv4"
)

var (
	url        = flag.String("url", "http://localhost:8080", "Runtime base URL")
	prompt     = flag.String("prompt", "", "Prompt to send (required)")
	threadID   = flag.String("thread-id", "", "Conversation thread identifier")
	actorID    = flag.String("actor-id", "", "Actor identifier")
	stream     = flag.Bool("stream", false, "Request SSE streaming")
	streamMode = flag.String("stream-mode", "updates", "Streaming mode: updates or values")
	timeout    = flag.Duration("timeout", 120*time.Second, "Request timeout")
	sign       = flag.Bool("sign", false, "Sign the request with SigV4 (for deployed runtimes)")
	signRegion = flag.String("sign-region", "us-west-2", "Region for SigV4 signing")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if *prompt == "" {
		return fmt.Errorf("--prompt is required")
	}

	body, err := json.Marshal(map[string]any{
		"prompt":      *prompt,
		"thread_id":   *threadID,
		"actor_id":    *actorID,
		"stream":      *stream,
		"stream_mode": *streamMode,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(*url, "/")+"/invocations", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if *sign {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(*signRegion))
		if err != nil {
			return fmt.Errorf("loading AWS config: %w", err)
		}
		if err := sigv4.SignRequest(ctx, req, awsCfg.Credentials, "bedrock-agentcore", *signRegion); err != nil {
			return err
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoking runtime: %w", err)
	}
	defer resp.Body.Close()

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		return printSSE(resp)
	}
	return printJSON(resp)
}

// printSSE prints each SSE data line as its own JSON document as events
// arrive.
func printSSE(resp *http.Response) error {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		raw := strings.TrimPrefix(line, "data: ")

		var event any
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			// Not JSON: wrap the raw line so output stays machine-readable.
			event = map[string]any{"type": "data", "data": raw}
		}
		pretty, err := json.MarshalIndent(event, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(pretty))
	}
	return scanner.Err()
}

func printJSON(resp *http.Response) error {
	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	pretty, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}
