package httputils

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"

	"go.stacforge.org/infra/go/sflog"
)

const (
	DialTimeout    = time.Minute
	RequestTimeout = 5 * time.Minute

	// Retry defaults: transient failures are retried at a fixed interval.
	RetryInterval = 2 * time.Second
	MaxRetries    = 3

	maxBytesInResponseBody = 10 * 1024 // 10 KB
)

// ClientConfig represents options for the behavior of an http.Client. Each
// field, when set, modifies the default http.Client behavior.
//
// Example:
//
//	client := DefaultClientConfig().WithTokenSource(ts).Client()
type ClientConfig struct {
	// DialTimeout, if non-zero, sets the http.Transport's dialer to a
	// net.DialTimeout with the specified timeout.
	DialTimeout time.Duration

	// RequestTimeout, if non-zero, sets the http.Client.Timeout. The timeout
	// applies until the response body is fully read.
	RequestTimeout time.Duration

	// Retries, if non-nil, uses a BackOffTransport to automatically retry
	// requests that fail with a transient status code (408, 429 or any 5xx).
	Retries *BackOffConfig

	// TokenSource, if non-nil, uses a oauth2.Transport to authenticate all
	// requests with the specified TokenSource.
	TokenSource oauth2.TokenSource

	// Response2xxOnly, if true, transforms non-2xx HTTP responses to an error
	// return value.
	Response2xxOnly bool
}

// DefaultClientConfig returns a ClientConfig with reasonable defaults.
//   - Timeouts are DialTimeout and RequestTimeout.
//   - Retries are enabled with the values from DefaultBackOffConfig().
//   - Non-2xx responses are not considered errors.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DialTimeout:    DialTimeout,
		RequestTimeout: RequestTimeout,
		Retries:        DefaultBackOffConfig(),
	}
}

// With2xxOnly returns a new ClientConfig where non-2xx responses cause an
// error.
func (c ClientConfig) With2xxOnly() ClientConfig {
	c.Response2xxOnly = true
	return c
}

// WithoutRetries returns a new ClientConfig where requests are not retried.
func (c ClientConfig) WithoutRetries() ClientConfig {
	c.Retries = nil
	return c
}

// WithTokenSource returns a new ClientConfig where requests are authenticated
// with the given TokenSource.
func (c ClientConfig) WithTokenSource(t oauth2.TokenSource) ClientConfig {
	c.TokenSource = t
	return c
}

// Client returns a new http.Client as configured by the ClientConfig.
func (c ClientConfig) Client() *http.Client {
	var t http.RoundTripper = http.DefaultTransport
	if c.DialTimeout != 0 {
		t = &http.Transport{
			Dial: ConfiguredDialTimeout(c.DialTimeout),
		}
	}
	if c.Retries != nil {
		t = NewConfiguredBackOffTransport(c.Retries, t)
	}
	if c.TokenSource != nil {
		t = &oauth2.Transport{
			Source: c.TokenSource,
			Base:   t,
		}
	}
	if c.Response2xxOnly {
		t = Response2xxOnlyTransport{t}
	}
	return &http.Client{
		Transport: t,
		Timeout:   c.RequestTimeout,
	}
}

// ConfiguredDialTimeout is a dialer that sets a given timeout.
func ConfiguredDialTimeout(timeout time.Duration) func(string, string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		return net.DialTimeout(network, addr, timeout)
	}
}

// Response2xxOnlyTransport is a RoundTripper that transforms non-2xx HTTP
// responses to an error return value. Delegates all requests to the wrapped
// RoundTripper, which must be non-nil.
type Response2xxOnlyTransport struct {
	http.RoundTripper
}

// RoundTrip implements the RoundTripper interface.
func (t Response2xxOnlyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.RoundTripper.RoundTrip(req)
	if err == nil && resp != nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return nil, fmt.Errorf("Got error response status code %d from the HTTP %s request to %s\nResponse: %s", resp.StatusCode, req.Method, req.URL, ReadAndClose(resp.Body))
	}
	return resp, err
}

// BackOffConfig configures how BackOffTransport retries transient failures.
type BackOffConfig struct {
	interval   time.Duration
	maxRetries uint64
}

// DefaultBackOffConfig retries MaxRetries times at a fixed RetryInterval.
func DefaultBackOffConfig() *BackOffConfig {
	return &BackOffConfig{
		interval:   RetryInterval,
		maxRetries: MaxRetries,
	}
}

// NewBackOffConfig returns a BackOffConfig with the given fixed interval and
// retry count.
func NewBackOffConfig(interval time.Duration, maxRetries uint64) *BackOffConfig {
	return &BackOffConfig{
		interval:   interval,
		maxRetries: maxRetries,
	}
}

// BackOffTransport retries requests that come back with a transient status
// code. Only idempotent-safe failures are retried: the request body, if any,
// must be replayable via Request.GetBody.
type BackOffTransport struct {
	Transport     http.RoundTripper
	backOffConfig *BackOffConfig
}

// NewConfiguredBackOffTransport creates a BackOffTransport with the specified
// config, wrapping the given base RoundTripper.
func NewConfiguredBackOffTransport(config *BackOffConfig, base http.RoundTripper) http.RoundTripper {
	return &BackOffTransport{
		Transport:     base,
		backOffConfig: config,
	}
}

// IsTransient returns true for the status codes that warrant a retry: 408,
// 429 and all 5xx.
func IsTransient(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		statusCode >= 500
}

// RoundTrip implements the RoundTripper interface.
func (t *BackOffTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(t.backOffConfig.interval), t.backOffConfig.maxRetries),
		req.Context(),
	)
	var resp *http.Response
	roundTrip := func() error {
		if resp != nil {
			// Drain the transient response so the connection can be reused.
			ReadAndClose(resp.Body)
		}
		if req.Body != nil && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(err)
			}
			req.Body = body
		}
		var err error
		resp, err = t.Transport.RoundTrip(req)
		if err != nil {
			return backoff.Permanent(err)
		}
		if IsTransient(resp.StatusCode) {
			return fmt.Errorf("Got transient status code %d from the HTTP %s request to %s", resp.StatusCode, req.Method, req.URL)
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		sflog.Warningf("Retrying in %v: %s", wait, err)
	}
	if err := backoff.RetryNotify(roundTrip, b, notify); err != nil {
		// Retries exhausted: surface the last transient response so the
		// caller sees the real status code.
		if resp != nil {
			return resp, nil
		}
		return nil, err
	}
	return resp, nil
}

// ReadAndClose reads the given ReadCloser to a limited length and closes it.
// Returns the bytes read, for inclusion in error messages.
func ReadAndClose(r io.ReadCloser) []byte {
	if r == nil {
		return nil
	}
	defer func() {
		_ = r.Close()
	}()
	b, _ := io.ReadAll(io.LimitReader(r, maxBytesInResponseBody))
	return b
}
