package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ibrahim-sec/thcsub/internal/metrics"
)

const (
	DefaultAPIBase   = "https://ip.thc.org/"
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
	DefaultPageSize  = 100
	DefaultTimeout   = 30 * time.Second
)

// ErrNotFound is returned for HTTP 404, which the API uses to signal
// that there are no (more) records.
var ErrNotFound = errors.New("no records found")

// HTTPError is a non-2xx response other than 404.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("ip.thc.org returned status %s", e.Status)
}

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	APIBase   string
	UserAgent string
	PageSize  int
	Timeout   time.Duration
}

// Client handles queries to the ip.thc.org subdomain API
type Client struct {
	httpClient *http.Client
	apiBase    string
	userAgent  string
	pageSize   int
}

// NewClient creates a new ip.thc.org client
func NewClient(opts Options) *Client {
	if opts.APIBase == "" {
		opts.APIBase = DefaultAPIBase
	}
	if !strings.HasSuffix(opts.APIBase, "/") {
		opts.APIBase += "/"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		apiBase:   opts.APIBase,
		userAgent: opts.UserAgent,
		pageSize:  opts.PageSize,
	}
}

// APIBase is the origin every accepted next-page link must start with.
func (c *Client) APIBase() string {
	return c.apiBase
}

// FirstPageURL builds the URL of the first result page for domain.
func (c *Client) FirstPageURL(domain string) string {
	return fmt.Sprintf("%s%s?l=%d", c.apiBase, url.PathEscape(domain), c.pageSize)
}

// FetchPage downloads one result page and returns its body.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(metrics.OutcomeNetworkError).Inc()
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		metrics.RequestsTotal.WithLabelValues(metrics.OutcomeNotFound).Inc()
		return "", ErrNotFound
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RequestsTotal.WithLabelValues(metrics.OutcomeHTTPError).Inc()
		return "", &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(metrics.OutcomeNetworkError).Inc()
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	metrics.RequestsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	return string(body), nil
}
