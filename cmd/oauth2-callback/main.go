// oauth2-callback runs the local OAuth2 3LO callback server on port 9090.
// The browser redirect lands on /oauth2/callback, which completes the token
// exchange against the AgentCore Identity service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/plexusone/agentcore-runtime/identity"
	"github.com/plexusone/agentcore-runtime/logger"
	"github.com/plexusone/agentcore-runtime/oauthcb"
)

var (
	region = flag.String("region", "us-west-2", "AWS region of the AgentCore Identity service")
	port   = flag.Int("port", oauthcb.DefaultPort, "Port to listen on")
)

func main() {
	flag.Parse()
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.UseRequestLog(os.Stdout)

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	client, err := identity.NewClient(context.Background(), *region)
	if err != nil {
		return fmt.Errorf("creating identity client: %w", err)
	}

	srv := oauthcb.NewServer(client)
	logger.Logger.Info().Int("port", *port).Str("region", *region).Msg("starting OAuth2 callback server")
	return srv.Run(fmt.Sprintf(":%d", *port))
}
