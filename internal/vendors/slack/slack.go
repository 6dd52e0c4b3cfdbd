// Package slack exposes the Slack Web API as MCP tools using slack-go.
//
// Credentials: a bot or user token as x-auth-token, as bot_token or
// access_token in x-auth-data, or via SLACK_BOT_TOKEN.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	slackapi "github.com/slack-go/slack"

	"mcp-fleet/internal/credentials"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/upstream"
)

const (
	Name           = "slack"
	DefaultBaseURL = "https://slack.com/api/"
	envToken       = "SLACK_BOT_TOKEN"
)

var Factory = toolkit.Factory{
	Name:        Name,
	Title:       "Slack",
	DefaultPort: 5002,
	New:         New,
}

// Vendor is the Slack integration. A Slack client is built per call because
// every request may carry a different token.
type Vendor struct {
	api     *upstream.Client
	apiURL  string
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

func New(deps toolkit.Deps) (toolkit.Vendor, error) {
	cfg := deps.Upstream.WithBaseURL(DefaultBaseURL)
	apiURL := cfg.BaseURL
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Vendor{
		api:     upstream.New(cfg, nil, upstream.WithLogger(logger)),
		apiURL:  apiURL,
		retries: cfg.MaxRetries,
		backoff: cfg.RetryBackoff,
		logger:  logger,
	}, nil
}

func (v *Vendor) Name() string { return Name }

func (v *Vendor) Tools() []server.ServerTool { return v.tools() }

func (v *Vendor) client(ctx context.Context) (*slackapi.Client, error) {
	tok, err := credentials.FromContext(ctx).RequireToken(envToken, "bot_token", "user_token")
	if err != nil {
		return nil, err
	}
	return slackapi.New(tok,
		slackapi.OptionAPIURL(v.apiURL),
		slackapi.OptionHTTPClient(v.api.HTTPClient()),
	), nil
}

// call runs fn, retrying after the fixed backoff while Slack reports rate
// limiting and retries remain.
func (v *Vendor) call(ctx context.Context, method string, fn func(*slackapi.Client) error) error {
	c, err := v.client(ctx)
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		err = fn(c)
		var rl *slackapi.RateLimitedError
		if !errors.As(err, &rl) || attempt >= v.retries {
			return translate(method, err)
		}
		v.logger.Info("rate limited, retrying", "vendor", Name, "method", method, "attempt", attempt+1)
		t := time.NewTimer(v.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

var notFoundCodes = map[string]string{
	"channel_not_found": "channel",
	"user_not_found":    "user",
	"thread_not_found":  "thread",
	"message_not_found": "message",
}

// translate maps slack-go errors onto the shared error types.
func translate(method string, err error) error {
	if err == nil {
		return nil
	}
	var se slackapi.SlackErrorResponse
	if errors.As(err, &se) {
		if res, ok := notFoundCodes[se.Err]; ok {
			return toolkit.NotFound(res)
		}
		return fmt.Errorf("slack %s: %s", method, se.Err)
	}
	var sc slackapi.StatusCodeError
	if errors.As(err, &sc) {
		return &upstream.Error{Vendor: Name, StatusCode: sc.Code, Message: sc.Status}
	}
	var rl *slackapi.RateLimitedError
	if errors.As(err, &rl) {
		return &upstream.Error{Vendor: Name, StatusCode: 429, Message: "rate limited, retry after " + rl.RetryAfter.String()}
	}
	return fmt.Errorf("slack %s: %w", method, err)
}
