// Package bond is a client for the Bond bridge local HTTP API (v2) and the
// event handler that drives it from translated Lutron events.
package bond

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Default client settings.
const (
	defaultTimeout    = 10 * time.Second
	defaultRetryCount = 3
	defaultRetryDelay = 500 * time.Millisecond

	// tokenHeader carries the bridge's local API token.
	tokenHeader = "BOND-Token"

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 512
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Config holds Bond client configuration.
type Config struct {
	// Host is the bridge address, e.g. "192.168.1.50". A full base URL such
	// as "http://192.168.1.50:8080" is also accepted.
	Host string

	// Token is the local API token.
	Token string

	// Timeout bounds each HTTP request. Default: 10 seconds.
	Timeout time.Duration

	// RetryCount is the number of attempts per request. Default: 3.
	RetryCount int

	// RetryDelay is the pause between attempts. Default: 500ms.
	RetryDelay time.Duration

	// HTTPClient replaces the default client.
	HTTPClient *http.Client

	// Logger is optional.
	Logger Logger
}

// Version is the bridge's /v2/sys/version payload.
type Version struct {
	Model           string `json:"model"`
	FirmwareVersion string `json:"fw_ver"`
	BondID          string `json:"bondid,omitempty"`
}

// Action is a named device action with an optional argument.
type Action struct {
	Name     string
	Argument any
}

// String implements fmt.Stringer.
func (a Action) String() string {
	if a.Argument == nil {
		return a.Name
	}
	return fmt.Sprintf("%s(%v)", a.Name, a.Argument)
}

// Stats holds client counters.
type Stats struct {
	Requests uint64
	Retries  uint64
	Failures uint64
}

// Client talks to one Bond bridge.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	baseURL string
	cfg     Config
	http    *http.Client
	logger  Logger

	requests atomic.Uint64
	retries  atomic.Uint64
	failures atomic.Uint64
}

// NewClient creates a client for cfg.Host.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = defaultRetryCount
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	base := cfg.Host
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("bond: invalid host %q: %w", cfg.Host, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		cfg:     cfg,
		http:    httpClient,
		logger:  cfg.Logger,
	}, nil
}

// Host returns the configured bridge host.
func (c *Client) Host() string { return c.cfg.Host }

// Version fetches the bridge model and firmware version.
func (c *Client) Version(ctx context.Context) (Version, error) {
	body, err := c.do(ctx, http.MethodGet, "/v2/sys/version", nil)
	if err != nil {
		return Version{}, err
	}

	var v Version
	if err := json.Unmarshal(body, &v); err != nil {
		return Version{}, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return v, nil
}

// Do runs action on deviceID.
func (c *Client) Do(ctx context.Context, deviceID string, action Action) error {
	payload := map[string]any{}
	if action.Argument != nil {
		payload["argument"] = action.Argument
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bond: encode action %s: %w", action, err)
	}

	path := "/v2/devices/" + url.PathEscape(deviceID) + "/actions/" + url.PathEscape(action.Name)
	_, err = c.do(ctx, http.MethodPut, path, body)
	return err
}

// Stats returns current counters.
func (c *Client) Stats() Stats {
	return Stats{
		Requests: c.requests.Load(),
		Retries:  c.retries.Load(),
		Failures: c.failures.Load(),
	}
}

// do performs one request with retries on transport errors and 5xx responses.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	attempt := 0
	op := func() ([]byte, error) {
		attempt++
		if attempt > 1 {
			c.retries.Add(1)
		}
		out, err := c.roundTrip(ctx, method, path, body)
		if err == nil {
			return out, nil
		}
		var se *StatusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	notify := func(err error, next time.Duration) {
		c.logWarn("Bond request failed, retrying", "method", method, "path", path, "retry_in", next, "error", err)
	}

	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.cfg.RetryDelay)),
		backoff.WithMaxTries(uint(c.cfg.RetryCount)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		c.failures.Add(1)
		return nil, fmt.Errorf("%w: %s %s after %d attempts: %w", ErrRequestFailed, method, path, attempt, err)
	}
	return out, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set(tokenHeader, c.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.requests.Add(1)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

func (c *Client) logWarn(msg string, keysAndValues ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, keysAndValues...)
	}
}
