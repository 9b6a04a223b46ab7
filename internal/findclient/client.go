// Package findclient calls a deployed discovery surface (POST /find_email).
package findclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shpitdev/mailfinder/internal/finder"
	"github.com/shpitdev/mailfinder/pkg/httperr"
	"github.com/shpitdev/mailfinder/pkg/pipeline/core"
)

const (
	DefaultEndpoint = "http://localhost:8080/find_email"
	DefaultTimeout  = 60 * time.Second

	maxResponseBytes = 4 << 20
)

// Option configures the client.
type Option func(*Client)

// WithTimeout bounds each discovery call. Non-positive values keep the default.
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

// Client invokes one discovery per call.
type Client struct {
	endpoint string
	timeout  time.Duration
	http     *http.Client
	logger   *zap.Logger
}

func New(endpoint string, opts ...Option) *Client {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: endpoint,
		timeout:  DefaultTimeout,
		http:     &http.Client{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Discover posts the person to the discovery surface and decodes its result.
//
// Transport failures, non-2xx answers and undecodable bodies are returned as
// errors. Throttling and server-side failures are marked transient.
func (c *Client) Discover(ctx context.Context, p finder.Person) (finder.Result, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return finder.Result{}, eris.Wrap(err, "findclient: encode request")
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return finder.Result{}, eris.Wrap(err, "findclient: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return finder.Result{}, eris.Wrap(err, "findclient: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return finder.Result{}, eris.Wrap(err, "findclient: read response")
	}
	c.logger.Debug("discovery call",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode/100 != 2 {
		herr := httperr.New("find_email", resp, body)
		if herr.Transient() {
			return finder.Result{}, &core.TransientError{Err: herr}
		}
		return finder.Result{}, herr
	}

	var out finder.Result
	if err := json.Unmarshal(body, &out); err != nil {
		return finder.Result{}, eris.Wrap(err, "findclient: decode response")
	}
	return out, nil
}
