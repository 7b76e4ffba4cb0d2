// Package gmail delivers deposit notifications as email through the Gmail API.
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wneessen/go-mail"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/ArionMiles/paynotify/pkg/api"
)

// Notifier sends payloads as plain-text mail from the authenticated account.
type Notifier struct {
	client *gmail.Service
	from   string
	logger *slog.Logger
}

// Config holds configuration for the Gmail notifier.
type Config struct {
	// From is the sender address. Empty lets Gmail use the authenticated account.
	From string
}

// New creates a Gmail notifier.
func New(ctx context.Context, httpClient *http.Client, cfg Config, logger *slog.Logger) (*Notifier, error) {
	client, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return NewWithService(client, cfg, logger), nil
}

// NewWithService creates a Gmail notifier from an existing service.
func NewWithService(client *gmail.Service, cfg Config, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: client, from: cfg.From, logger: logger}
}

// Send mails p to p.Destination and returns the Gmail message ID.
func (n *Notifier) Send(ctx context.Context, p api.Payload) (string, error) {
	if p.Destination == "" {
		return "", errors.New("recipient address is required")
	}

	raw, err := n.compose(p)
	if err != nil {
		return "", err
	}

	msg, err := n.client.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("sending mail: %w", err)
	}

	n.logger.Debug("sent notification mail", "to", p.Destination, "message_id", msg.Id)
	return msg.Id, nil
}

// compose builds the MIME message. The sender label becomes the From display name.
func (n *Notifier) compose(p api.Payload) ([]byte, error) {
	m := mail.NewMsg(mail.WithEncoding(mail.NoEncoding))
	if n.from != "" {
		if err := m.FromFormat(p.SenderLabel, n.from); err != nil {
			return nil, fmt.Errorf("setting sender %q: %w", n.from, err)
		}
	}
	if err := m.To(p.Destination); err != nil {
		return nil, fmt.Errorf("parsing recipient %q: %w", p.Destination, err)
	}
	m.Subject(p.Headline)
	m.SetBodyString(mail.TypeTextPlain, strings.Join(p.Lines, "\r\n")+"\r\n")

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("writing message: %w", err)
	}
	return buf.Bytes(), nil
}

var _ api.Notifier = (*Notifier)(nil)
