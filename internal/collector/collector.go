package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ibrahim-sec/thcsub/internal/discovery"
	"github.com/ibrahim-sec/thcsub/internal/metrics"
	"github.com/ibrahim-sec/thcsub/internal/pacing"
)

const (
	DefaultRetryDelay  = 10 * time.Second
	DefaultMaxAttempts = 10
)

// ErrRetriesExhausted is returned when a page kept failing MaxAttempts
// times in a row.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Fetcher is the part of the API client the collector needs.
type Fetcher interface {
	FirstPageURL(domain string) string
	APIBase() string
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// Status is a progress snapshot taken after every page.
type Status struct {
	Target    string
	Fetched   int
	Total     *int
	RateLimit *int
	Requests  int
	Resuming  bool
}

// Result summarizes the collection of one target.
type Result struct {
	Domain    string
	Pages     int
	Requests  int
	Found     int // unique subdomains returned for this target
	Added     int // subdomains that were not in the result set yet
	Total     *int
	RateLimit *int
}

// Options tunes the page loop. Zero values use the defaults.
type Options struct {
	// MaxAttempts bounds consecutive failed requests for one page.
	// Zero retries forever.
	MaxAttempts int
	RetryDelay  time.Duration
	Pacer       pacing.Pacer
	Resuming    bool

	// OnPage runs after every page with the full result set.
	OnPage func(results *Set) error
	// OnStatus receives a progress snapshot after every page.
	OnStatus func(Status)
}

// Collector pages through the API for one target at a time and merges
// everything into a single result set.
type Collector struct {
	fetcher Fetcher
	logger  *log.Logger
	results *Set
	opts    Options
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a collector that adds to results.
func New(fetcher Fetcher, logger *log.Logger, results *Set, opts Options) *Collector {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.MaxAttempts < 0 {
		opts.MaxAttempts = 0
	}
	if opts.Pacer == nil {
		opts.Pacer = &pacing.StepPacer{}
	}
	if results == nil {
		results = NewSet()
	}

	return &Collector{
		fetcher: fetcher,
		logger:  logger,
		results: results,
		opts:    opts,
		sleep:   pacing.Sleep,
	}
}

// Results returns the set shared by every target.
func (c *Collector) Results() *Set {
	return c.results
}

// Collect fetches every page for domain. It stops when a page has no
// next-page link, on 404, or when ctx is cancelled.
func (c *Collector) Collect(ctx context.Context, domain string) (Result, error) {
	res := Result{Domain: domain}
	found := NewSet()
	pageURL := c.fetcher.FirstPageURL(domain)
	failures := 0

	c.logger.Debug("starting collection", "target", domain, "url", pageURL)

	for pageURL != "" {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Requests++
		body, err := c.fetcher.FetchPage(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if errors.Is(err, discovery.ErrNotFound) {
				c.logger.Info("no records found (404)", "target", domain)
				break
			}

			failures++
			c.logger.Error("request failed", "target", domain, "attempt", failures, "error", err)
			if c.opts.MaxAttempts > 0 && failures >= c.opts.MaxAttempts {
				return res, fmt.Errorf("%s: %w after %d attempts: %v", domain, ErrRetriesExhausted, failures, err)
			}

			metrics.RetriesTotal.Inc()
			if err := c.sleep(ctx, c.opts.RetryDelay); err != nil {
				return res, err
			}
			continue
		}
		failures = 0

		page := discovery.ParseResponse(body, c.fetcher.APIBase())
		res.Pages++
		metrics.PagesTotal.WithLabelValues(domain).Inc()

		if page.Total != nil {
			res.Total = page.Total
		}
		if page.RateLimit != nil {
			res.RateLimit = page.RateLimit
			metrics.RateLimitRemaining.Set(float64(*page.RateLimit))
		}

		added := 0
		for _, sub := range page.Subdomains {
			found.Add(sub)
			if c.results.Add(sub) {
				added++
			}
		}
		res.Added += added
		res.Found = found.Len()
		metrics.SubdomainsAdded.WithLabelValues(domain).Add(float64(added))

		c.logger.Debug("page parsed", "target", domain, "page", res.Pages, "lines", len(page.Subdomains), "added", added)

		if c.opts.OnPage != nil {
			if err := c.opts.OnPage(c.results); err != nil {
				return res, err
			}
		}

		if c.opts.OnStatus != nil {
			c.opts.OnStatus(Status{
				Target:    domain,
				Fetched:   c.results.Len(),
				Total:     res.Total,
				RateLimit: res.RateLimit,
				Requests:  res.Requests,
				Resuming:  c.opts.Resuming,
			})
		}

		pageURL = page.NextPage
		if pageURL == "" {
			break
		}

		if err := c.opts.Pacer.Wait(ctx, res.RateLimit); err != nil {
			return res, err
		}
	}

	return res, nil
}

// Run collects every target in order. Cancellation aborts the remaining
// targets. A target that exhausted its retries is skipped and reported in
// the returned error once all other targets are done.
func (c *Collector) Run(ctx context.Context, targets []string) ([]Result, error) {
	var results []Result
	var failed []string

	for i, target := range targets {
		c.logger.Info("processing target", "target", target, "n", i+1, "of", len(targets))

		res, err := c.Collect(ctx, target)
		results = append(results, res)
		if err != nil {
			if errors.Is(err, ErrRetriesExhausted) {
				c.logger.Error("giving up on target", "target", target, "error", err)
				failed = append(failed, target)
				continue
			}
			return results, err
		}

		c.logger.Info("collection complete", "target", target, "found", res.Found, "added", res.Added, "pages", res.Pages)
	}

	if len(failed) > 0 {
		return results, fmt.Errorf("%w for %s", ErrRetriesExhausted, strings.Join(failed, ", "))
	}
	return results, nil
}
