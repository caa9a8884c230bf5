package feed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 10 * time.Second

	// maxBodyBytes bounds the upstream response; the real feed is a few KiB.
	maxBodyBytes = 8 << 20
)

// Options configures a Client.
type Options struct {
	// URL is the upstream data.json endpoint.
	URL string

	// Referer and UserAgent are sent on every request.
	Referer   string
	UserAgent string

	// Timeout bounds one request end to end. Defaults to 10s.
	Timeout time.Duration

	// RateLimit caps requests per second; 0 disables the limiter.
	RateLimit float64
	Burst     int

	// TLSConfig overrides the TLS settings used for fetches and CheckCert.
	TLSConfig *tls.Config
}

// Client fetches and decodes the upstream feed. It never retries; retry and
// back-off belong to the scheduler.
type Client struct {
	endpoint *url.URL
	http     *http.Client
	limiter   *rate.Limiter
	tlsConfig *tls.Config
	now       func() time.Time // injectable for deterministic tests
}

// New builds a Client for opts. The HTTP client is built once and reused
// across calls.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("feed: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("feed: unsupported url scheme %q", u.Scheme)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	base := http.DefaultTransport
	if opts.TLSConfig != nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = opts.TLSConfig.Clone()
		base = tr
	}

	return &Client{
		endpoint: u,
		http: &http.Client{
			Transport: &headerRoundTripper{
				base:      base,
				referer:   opts.Referer,
				userAgent: opts.UserAgent,
			},
			Timeout: timeout,
		},
		limiter:   limiter,
		tlsConfig: opts.TLSConfig,
		now:       time.Now,
	}, nil
}

// headerRoundTripper injects the identifying headers the upstream requires
// into every outgoing request.
type headerRoundTripper struct {
	base      http.RoundTripper
	referer   string
	userAgent string
}

func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if t.referer != "" {
		req.Header.Set("Referer", t.referer)
	}
	req.Header.Set("Accept", "application/json")
	return t.base.RoundTrip(req)
}

// Fetch performs one GET against the upstream and decodes the feed.
// Failures are returned as *NetworkError, *HTTPStatusError, *DecodeError or
// *UnknownError.
func (c *Client) Fetch(ctx context.Context) (*RawFeed, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &UnknownError{Err: fmt.Errorf("rate limit: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(), nil)
	if err != nil {
		return nil, &UnknownError{Err: fmt.Errorf("build request: %w", err)}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &HTTPStatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("read body: %w", err)}
	}

	var feed RawFeed
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &feed, nil
}

// requestURL returns the endpoint with a fresh "_=<unix-millis>" parameter
// so that intermediate caches never serve a stale copy.
func (c *Client) requestURL() string {
	u := *c.endpoint
	q := u.Query()
	q.Set("_", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}

// Host returns the upstream host name, used as the attribution line in
// rendered replies.
func (c *Client) Host() string {
	return c.endpoint.Hostname()
}
