package httpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/tgifai/skillhunt"
)

const (
	defaultTimeout = 15 * time.Second
	maxRedirects   = 1
	maxBodyBytes   = 5 << 20
)

var (
	ErrTimeout           = errors.New("request timed out")
	ErrNetwork           = errors.New("network failure")
	ErrMalformedResponse = errors.New("malformed response")
)

// FetchError reports a failed fetch. It matches its Kind and the underlying
// cause with errors.Is.
type FetchError struct {
	Kind error
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.URL)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Response is one completed round trip. A non-2xx Status is not an error.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	Truncated bool
	Latency   time.Duration
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

type Client struct {
	hc        *http.Client
	userAgent string
}

type Option func(*Client)

// WithUserAgent overrides the default product User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTransport swaps the base transport. Tests use it to point at httptest.
func WithTransport(base *http.Transport) Option {
	return func(c *Client) {
		c.hc.Transport = newDecodingTransport(base)
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		hc: &http.Client{
			Transport: newDecodingTransport(nil),
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: skillhunt.UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch performs one GET. timeout <= 0 uses the client default.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: ErrNetwork, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, classify(ctx, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, classify(ctx, url, err)
	}
	out := &Response{
		Status:  resp.StatusCode,
		Header:  resp.Header,
		Latency: time.Since(start),
	}
	if len(body) > maxBodyBytes {
		body = body[:maxBodyBytes]
		out.Truncated = true
	}
	out.Body = body
	return out, nil
}

// FetchJSON fetches url and decodes a 2xx body into out. Non-2xx responses are
// returned without decoding and without error.
func (c *Client) FetchJSON(ctx context.Context, url string, headers map[string]string, timeout time.Duration, out any) (*Response, error) {
	resp, err := c.Fetch(ctx, url, headers, timeout)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, nil
	}
	if resp.Truncated {
		return resp, &FetchError{Kind: ErrMalformedResponse, URL: url, Err: fmt.Errorf("body exceeds %d bytes", maxBodyBytes)}
	}
	if err := sonic.Unmarshal(resp.Body, out); err != nil {
		return resp, &FetchError{Kind: ErrMalformedResponse, URL: url, Err: err}
	}
	return resp, nil
}

func classify(ctx context.Context, url string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: ErrTimeout, URL: url, Err: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &FetchError{Kind: ErrTimeout, URL: url, Err: err}
	}
	return &FetchError{Kind: ErrNetwork, URL: url, Err: err}
}
