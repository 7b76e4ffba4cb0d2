// Package httpsource implements source.Client over the service's web session.
package httpsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/avast/retry-go"

	"github.com/ArionMiles/paynotify/pkg/api"
	"github.com/ArionMiles/paynotify/pkg/source"
)

// Default endpoint paths, relative to Config.BaseURL.
const (
	DefaultLoginPath        = "/session/new"
	DefaultTransactionsPath = "/transactions/list_acts"
	DefaultAccountsPath     = "/accounts.json"
	DefaultBulkRefreshPath  = "/accounts/bulk_create"
)

// Default retry settings for server errors.
const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 2 * time.Second
)

// csrfField is the hidden form field carrying the anti-forgery token.
const csrfField = "authenticity_token"

// StatusError is returned for unexpected HTTP responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Code)
}

// Config holds configuration for the HTTP source.
type Config struct {
	// BaseURL is the service root, e.g. https://accounting.example.com.
	BaseURL  string
	LoginID  string
	Password string

	LoginPath        string
	TransactionsPath string
	AccountsPath     string
	BulkRefreshPath  string

	// Attempts is the number of tries for 5xx responses. Defaults to DefaultAttempts.
	Attempts   uint
	RetryDelay time.Duration
	// Timeout bounds each HTTP request. Zero means no per-request timeout.
	Timeout time.Duration
}

// Client is a cookie-jar session against the service.
type Client struct {
	cfg    Config
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// New creates an HTTP source. No request is made until Login.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.LoginID == "" || cfg.Password == "" {
		return nil, errors.New("login ID and password are required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	if cfg.TransactionsPath == "" {
		cfg.TransactionsPath = DefaultTransactionsPath
	}
	if cfg.AccountsPath == "" {
		cfg.AccountsPath = DefaultAccountsPath
	}
	if cfg.BulkRefreshPath == "" {
		cfg.BulkRefreshPath = DefaultBulkRefreshPath
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	return &Client{
		cfg:    cfg,
		base:   base,
		http:   &http.Client{Jar: jar, Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// Login fetches the login form, picks up its anti-forgery token and posts the credentials.
func (c *Client) Login(ctx context.Context) error {
	loginURL := c.resolve(c.cfg.LoginPath)

	page, err := c.do(ctx, http.MethodGet, loginURL, nil)
	if err != nil {
		return fmt.Errorf("loading login page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return fmt.Errorf("parsing login page: %w", err)
	}

	form := url.Values{}
	form.Set("email", c.cfg.LoginID)
	form.Set("password", c.cfg.Password)
	if token, ok := doc.Find(`input[name="` + csrfField + `"]`).First().Attr("value"); ok {
		form.Set(csrfField, token)
	}

	action := loginURL
	if a, ok := doc.Find("form").First().Attr("action"); ok && a != "" {
		action = c.resolve(a)
	}

	if _, err := c.do(ctx, http.MethodPost, action, form); err != nil {
		return fmt.Errorf("posting credentials: %w", err)
	}

	if !c.hasSession() {
		return errors.New("login did not establish a session")
	}

	c.logger.Info("logged in", "host", c.base.Host)
	return nil
}

// FetchTransactions returns the transaction rows fragment.
func (c *Client) FetchTransactions(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodGet, c.resolve(c.cfg.TransactionsPath), nil)
	if err != nil {
		return "", fmt.Errorf("fetching transactions: %w", err)
	}
	c.logger.Debug("fetched transactions", "bytes", len(body))
	return body, nil
}

// FetchAccounts returns the account list.
func (c *Client) FetchAccounts(ctx context.Context) ([]api.AccountListing, error) {
	body, err := c.do(ctx, http.MethodGet, c.resolve(c.cfg.AccountsPath), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching accounts: %w", err)
	}

	var listings []api.AccountListing
	if err := json.Unmarshal([]byte(body), &listings); err != nil {
		return nil, fmt.Errorf("decoding accounts: %w", err)
	}
	c.logger.Debug("fetched accounts", "count", len(listings))
	return listings, nil
}

// BulkRefresh triggers a refresh of every linked account.
func (c *Client) BulkRefresh(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodPost, c.resolve(c.cfg.BulkRefreshPath), url.Values{}); err != nil {
		return fmt.Errorf("requesting bulk refresh: %w", err)
	}
	c.logger.Info("bulk refresh requested")
	return nil
}

// do sends a request, retrying 5xx responses. A non-nil form is posted url-encoded.
func (c *Client) do(ctx context.Context, method, target string, form url.Values) (string, error) {
	var body string
	err := retry.Do(
		func() error {
			var reader io.Reader
			if form != nil {
				reader = strings.NewReader(form.Encode())
			}
			req, err := http.NewRequestWithContext(ctx, method, target, reader)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if form != nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			if resp.StatusCode >= 300 {
				return &StatusError{Method: method, URL: target, Code: resp.StatusCode}
			}
			body = string(data)
			return nil
		},
		retry.RetryIf(func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) && se.Code >= 500 {
				c.logger.Warn("server error, will retry", "url", target, "status", se.Code)
				return true
			}
			return false
		}),
		retry.Context(ctx),
		retry.Attempts(c.cfg.Attempts),
		retry.Delay(c.cfg.RetryDelay),
		retry.LastErrorOnly(true),
	)
	return body, err
}

func (c *Client) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return c.base.String() + path
	}
	return c.base.ResolveReference(ref).String()
}

func (c *Client) hasSession() bool {
	return len(c.http.Jar.Cookies(c.base)) > 0
}

var _ source.Client = (*Client)(nil)
