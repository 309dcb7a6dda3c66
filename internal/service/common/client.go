//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doyensec/safeurl"

	"github.com/oshokin/umu-scout/internal/config"
	"github.com/oshokin/umu-scout/internal/version"
)

// Doer sends HTTP requests. *http.Client and *safeurl.WrappedClient satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps an HTTP client with convenience helpers for upstream fetches.
type Client struct {
	// doer performs the requests.
	doer Doer
	// userAgent is sent with every request.
	userAgent string
	// callTimeout bounds every single call, body transfer included.
	callTimeout time.Duration
	// maxTextBytes caps the size of version tokens and manifests read into memory.
	maxTextBytes int64
}

// Option configures client behaviour.
type Option func(*Client)

const defaultMaxTextBytes = 1 << 20

var (
	// ErrBadHTTPStatus is returned for any non-200 response.
	ErrBadHTTPStatus = errors.New("unexpected http status")
	// errURLRequired is returned when an empty URL is requested.
	errURLRequired = errors.New("url must be provided")
	// errEmptyText is returned when a version endpoint answers with whitespace only.
	errEmptyText = errors.New("empty response body")
	// errTextTooLarge is returned when a text response exceeds the configured limit.
	errTextTooLarge = errors.New("response body too large")
)

// WithCallTimeout sets a timeout for every call.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithDoer replaces the underlying HTTP client.
func WithDoer(doer Doer) Option {
	return func(c *Client) {
		if doer != nil {
			c.doer = doer
		}
	}
}

// WithSafeTransport routes requests through safeurl, which refuses private
// and loopback addresses and non-standard ports.
func WithSafeTransport() Option {
	return func(c *Client) {
		c.doer = safeurl.Client(safeurl.GetConfigBuilder().Build())
	}
}

// NewClient returns a client using http.DefaultClient unless configured otherwise.
func NewClient(opts ...Option) *Client {
	client := &Client{
		doer:         http.DefaultClient,
		userAgent:    version.UserAgent(),
		callTimeout:  config.DefaultTimeout,
		maxTextBytes: defaultMaxTextBytes,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// FromConfig builds the client described by the packager settings.
func FromConfig(cfg *config.Config) *Client {
	opts := []Option{WithCallTimeout(cfg.Timeout)}
	if cfg.SafeFetch {
		opts = append(opts, WithSafeTransport())
	}

	return NewClient(opts...)
}

// Doer exposes the underlying HTTP client. The GitHub release lookup reuses its transport.
func (c *Client) Doer() Doer {
	return c.doer
}

// Bytes fetches a small document into memory.
func (c *Client) Bytes(ctx context.Context, rawURL string) ([]byte, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	body, err := c.open(callCtx, rawURL)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(body, c.maxTextBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}

	if int64(len(data)) > c.maxTextBytes {
		return nil, fmt.Errorf("%s: %w", rawURL, errTextTooLarge)
	}

	return data, nil
}

// Text fetches a plain-text token and trims surrounding whitespace.
func (c *Client) Text(ctx context.Context, rawURL string) (string, error) {
	data, err := c.Bytes(ctx, rawURL)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%s: %w", rawURL, errEmptyText)
	}

	return text, nil
}

// Download streams the response body into the file at dest and returns the number of bytes written.
func (c *Client) Download(ctx context.Context, rawURL, dest string) (int64, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	body, err := c.open(callCtx, rawURL)
	if err != nil {
		return 0, err
	}

	defer func() {
		_ = body.Close()
	}()

	out, err := os.Create(filepath.Clean(dest))
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dest, err)
	}

	written, err := io.Copy(out, body)
	if err != nil {
		_ = out.Close()

		return written, fmt.Errorf("download %s: %w", rawURL, err)
	}

	if err = out.Close(); err != nil {
		return written, fmt.Errorf("close %s: %w", dest, err)
	}

	return written, nil
}

// open sends a GET request and returns the body of a 200 response.
func (c *Client) open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if rawURL == "" {
		return nil, errURLRequired
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	response, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}

	if response.StatusCode != http.StatusOK {
		_ = response.Body.Close()

		return nil, fmt.Errorf("%s, %s: %w", rawURL, response.Status, ErrBadHTTPStatus)
	}

	return response.Body, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
