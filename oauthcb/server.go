// Package oauthcb implements the local OAuth2 3LO callback server used with
// AgentCore Identity. External providers redirect the user's browser here
// after consent; the server completes the flow against the identity service.
package oauthcb

import (
	"context"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/plexusone/agentcore-runtime/identity"
	"github.com/plexusone/agentcore-runtime/logger"
)

const (
	// DefaultPort is where the callback server listens.
	DefaultPort = 9090

	PingEndpoint           = "/ping"
	CallbackEndpoint       = "/oauth2/callback"
	UserIdentifierEndpoint = "/userIdentifier/token"
)

const successHTML = `<!DOCTYPE html>
<html>
<head>
    <title>OAuth2 Success</title>
    <style>
        body {
            margin: 0;
            padding: 0;
            height: 100vh;
            display: flex;
            justify-content: center;
            align-items: center;
            font-family: Arial, sans-serif;
            background-color: #f5f5f5;
        }
        .container {
            text-align: center;
            padding: 2rem;
            background-color: white;
            border-radius: 8px;
            box-shadow: 0 2px 10px rgba(0, 0, 0, 0.1);
        }
        h1 {
            color: #28a745;
            margin: 0;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>Completed OAuth2 3LO flow successfully</h1>
    </div>
</body>
</html>
`

// identityAPI is what the server needs from the identity service.
type identityAPI interface {
	CompleteResourceTokenAuth(ctx context.Context, sessionURI string, user identity.UserTokenIdentifier) error
}

// Server handles OAuth2 provider redirects and completes the flow with
// AgentCore Identity. The user token identifier must be stored (via the
// userIdentifier endpoint) before a callback arrives, so the session can be
// bound to the right user.
type Server struct {
	echo     *echo.Echo
	identity identityAPI

	mu        sync.Mutex
	userToken *identity.UserTokenIdentifier
}

// NewServer builds the callback server around an identity client.
func NewServer(identityClient *identity.Client) *Server {
	return newServer(identityClient)
}

func newServer(identityClient identityAPI) *Server {
	s := &Server{identity: identityClient}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET(PingEndpoint, s.handlePing)
	e.POST(UserIdentifierEndpoint, s.handleStoreUserToken)
	e.GET(CallbackEndpoint, s.handleCallback)

	s.echo = e
	return s
}

// Echo exposes the underlying server for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	logger.Logger.Info().Str("addr", addr).Msg("starting OAuth2 callback server")
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handlePing(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleStoreUserToken(c echo.Context) error {
	token := &identity.UserTokenIdentifier{}
	if err := c.Bind(token); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user token payload")
	}

	s.mu.Lock()
	s.userToken = token
	s.mu.Unlock()

	return c.NoContent(http.StatusOK)
}

func (s *Server) handleCallback(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing session_id query parameter")
	}

	s.mu.Lock()
	token := s.userToken
	s.mu.Unlock()

	if token == nil {
		logger.Logger.Error().Msg("no configured user token identifier")
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
	}

	if err := s.identity.CompleteResourceTokenAuth(c.Request().Context(), sessionID, *token); err != nil {
		logger.Logger.Error().Err(err).Msg("completing OAuth2 3LO flow failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
	}

	return c.HTML(http.StatusOK, successHTML)
}
