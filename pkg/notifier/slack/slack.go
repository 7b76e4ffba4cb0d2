// Package slack delivers deposit notifications to a Slack channel.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"github.com/slack-go/slack"

	"github.com/ArionMiles/paynotify/pkg/api"
)

// Default retry settings for rate-limited posts.
const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 5 * time.Second
)

// Notifier posts payloads with chat.postMessage.
type Notifier struct {
	client     *slack.Client
	attempts   uint
	retryDelay time.Duration
	logger     *slog.Logger
}

// Config holds configuration for the Slack notifier.
type Config struct {
	// Token is the bot token (xoxb-...).
	Token string
	// APIURL overrides the Slack API base URL. Used in tests.
	APIURL string
	// Attempts is the number of tries when rate limited. Defaults to DefaultAttempts.
	Attempts uint
	// RetryDelay is the wait between tries. Defaults to DefaultRetryDelay.
	RetryDelay time.Duration
}

// New creates a Slack notifier.
func New(cfg Config, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Token == "" {
		return nil, errors.New("slack token is required")
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	var opts []slack.Option
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}

	return &Notifier{
		client:     slack.New(cfg.Token, opts...),
		attempts:   cfg.Attempts,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}, nil
}

// Send posts p to p.Destination and returns the message timestamp.
func (n *Notifier) Send(ctx context.Context, p api.Payload) (string, error) {
	if p.Destination == "" {
		return "", errors.New("slack channel is required")
	}

	opts := []slack.MsgOption{
		slack.MsgOptionText(p.Headline, false),
		slack.MsgOptionBlocks(Blocks(p)...),
		slack.MsgOptionUsername(p.SenderLabel),
	}
	if p.Icon != "" {
		opts = append(opts, slack.MsgOptionIconEmoji(p.Icon))
	}

	var ts string
	err := retry.Do(
		func() error {
			var err error
			_, ts, err = n.client.PostMessageContext(ctx, p.Destination, opts...)
			return err
		},
		retry.RetryIf(func(err error) bool {
			var rateErr *slack.RateLimitedError
			if errors.As(err, &rateErr) {
				n.logger.Warn("rate limited, will retry", "retry_after", rateErr.RetryAfter)
				return true
			}
			return false
		}),
		retry.Attempts(n.attempts),
		retry.Delay(n.retryDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("posting to slack: %w", err)
	}

	n.logger.Debug("posted slack message", "channel", p.Destination, "ts", ts)
	return ts, nil
}

// Blocks renders the headline and each line as a plain-text section.
func Blocks(p api.Payload) []slack.Block {
	blocks := make([]slack.Block, 0, len(p.Lines)+1)
	for _, text := range append([]string{p.Headline}, p.Lines...) {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.PlainTextType, text, false, false),
			nil, nil,
		))
	}
	return blocks
}

var _ api.Notifier = (*Notifier)(nil)
