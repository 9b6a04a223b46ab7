// Package verify checks single email addresses against the MailTester Ninja API.
package verify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shpitdev/mailfinder/internal/finder"
	"github.com/shpitdev/mailfinder/pkg/httperr"
	"github.com/shpitdev/mailfinder/pkg/pipeline/redact"
)

const (
	DefaultBaseURL = "https://happy.mailtester.ninja/ninja"
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 1 << 20
)

var _ finder.Verifier = (*Client)(nil)

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets a custom endpoint (for testing and proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if strings.TrimSpace(u) != "" {
			c.baseURL = strings.TrimSpace(u)
		}
	}
}

// WithTimeout bounds each verification call. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client performs exactly one HTTP call per Verify and never retries.
type Client struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verify classifies one address.
//
// Transport failures and non-2xx answers report StatusRequestError; a 2xx body
// that is not a JSON object with a string "code" reports StatusJSONError.
// Otherwise StatusCode is the lower-cased code and Details the full payload.
func (c *Client) Verify(ctx context.Context, email string) finder.ProbeResult {
	body, err := c.fetch(ctx, email)
	if err != nil {
		msg := redact.Secrets(err.Error())
		c.logger.Debug("verification request failed", zap.String("email", email), zap.String("error", msg))
		return finder.ProbeResult{Email: email, StatusCode: finder.StatusRequestError, Error: msg}
	}

	details, code, err := decode(body)
	if err != nil {
		msg := redact.Secrets(err.Error())
		c.logger.Debug("verification response undecodable", zap.String("email", email), zap.String("error", msg))
		return finder.ProbeResult{Email: email, StatusCode: finder.StatusJSONError, Error: msg}
	}

	return finder.ProbeResult{
		Email:      email,
		IsValid:    finder.IsDeliverable(code),
		StatusCode: code,
		Details:    details,
	}
}

func (c *Client) fetch(ctx context.Context, email string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, eris.Wrap(err, "verify: parse base url")
	}
	q := u.Query()
	q.Set("email", email)
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "verify: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "verify: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, eris.Wrap(err, "verify: read response")
	}
	if resp.StatusCode/100 != 2 {
		return nil, httperr.New("verify", resp, body)
	}
	return body, nil
}

func decode(body []byte) (map[string]any, string, error) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, "", eris.Wrap(err, "verify: decode response")
	}
	if fields == nil {
		return nil, "", eris.New("verify: decode response: empty payload")
	}
	raw, ok := fields["code"]
	if !ok {
		return nil, "", eris.New("verify: decode response: missing code")
	}
	code, ok := raw.(string)
	if !ok {
		return nil, "", eris.Errorf("verify: decode response: code is %T, want string", raw)
	}
	return fields, strings.ToLower(strings.TrimSpace(code)), nil
}
