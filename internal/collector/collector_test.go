package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ibrahim-sec/thcsub/internal/discovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type response struct {
	body string
	err  error
}

// fakeFetcher replays queued responses per URL. The last response for a
// URL is repeated once the queue is drained.
type fakeFetcher struct {
	responses map[string][]response
	calls     []string
}

func (f *fakeFetcher) FirstPageURL(domain string) string {
	return discovery.DefaultAPIBase + domain + "?l=100"
}

func (f *fakeFetcher) APIBase() string {
	return discovery.DefaultAPIBase
}

func (f *fakeFetcher) FetchPage(ctx context.Context, pageURL string) (string, error) {
	f.calls = append(f.calls, pageURL)
	queue, ok := f.responses[pageURL]
	if !ok || len(queue) == 0 {
		return "", discovery.ErrNotFound
	}
	r := queue[0]
	if len(queue) > 1 {
		f.responses[pageURL] = queue[1:]
	}
	return r.body, r.err
}

type recordingPacer struct {
	seen []*int
}

func (p *recordingPacer) Wait(ctx context.Context, remaining *int) error {
	p.seen = append(p.seen, remaining)
	return ctx.Err()
}

func newTestCollector(f Fetcher, results *Set, opts Options) (*Collector, *[]time.Duration) {
	if opts.Pacer == nil {
		opts.Pacer = &recordingPacer{}
	}
	c := New(f, log.New(io.Discard), results, opts)
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return c, &slept
}

func TestCollect_TwoPagesOverHTTP(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("p") == "2" {
			fmt.Fprint(w, ";;Entries: 2/3\n\x1b[0;36mb.example.com\x1b[0m\nc.example.com\n")
			return
		}
		fmt.Fprintf(w, ";;Entries: 2/3\n;;Rate Limit: You can make 40 more\n;;Next Page: %s/example.com?l=100&p=2\na.example.com\nb.example.com\n", srv.URL)
	}))
	defer srv.Close()

	client := discovery.NewClient(discovery.Options{APIBase: srv.URL})
	pacer := &recordingPacer{}
	c, _ := newTestCollector(client, nil, Options{Pacer: pacer})

	res, err := c.Collect(context.Background(), "example.com")
	require.NoError(t, err)

	assert.Equal(t, []string{"a.example.com", "b.example.com", "c.example.com"}, c.Results().Sorted())
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 2, res.Requests)
	assert.Equal(t, 3, res.Found)
	assert.Equal(t, 3, res.Added)
	require.NotNil(t, res.Total)
	assert.Equal(t, 3, *res.Total)
	require.Len(t, pacer.seen, 1)
	require.NotNil(t, pacer.seen[0])
	assert.Equal(t, 40, *pacer.seen[0])
}

func TestCollect_NotFoundEndsTarget(t *testing.T) {
	f := &fakeFetcher{responses: map[string][]response{}}
	c, slept := newTestCollector(f, nil, Options{})

	res, err := c.Collect(context.Background(), "nothing.example")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Results().Len())
	assert.Equal(t, 1, res.Requests)
	assert.Empty(t, *slept)
}

func TestCollect_RetriesThenSucceeds(t *testing.T) {
	first := discovery.DefaultAPIBase + "example.com?l=100"
	f := &fakeFetcher{responses: map[string][]response{
		first: {
			{err: errors.New("connection reset")},
			{err: &discovery.HTTPError{StatusCode: 502, Status: "502 Bad Gateway"}},
			{body: "a.example.com\n"},
		},
	}}
	c, slept := newTestCollector(f, nil, Options{RetryDelay: time.Second, MaxAttempts: 5})

	res, err := c.Collect(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Requests)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *slept)
	assert.Equal(t, []string{first, first, first}, f.calls)
	assert.True(t, c.Results().Has("a.example.com"))
}

func TestCollect_RetriesExhausted(t *testing.T) {
	first := discovery.DefaultAPIBase + "example.com?l=100"
	f := &fakeFetcher{responses: map[string][]response{
		first: {{err: errors.New("dial tcp: i/o timeout")}},
	}}
	c, slept := newTestCollector(f, nil, Options{MaxAttempts: 3})

	_, err := c.Collect(context.Background(), "example.com")
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Len(t, f.calls, 3)
	assert.Len(t, *slept, 2)
}

func TestCollect_KeepsLastKnownRateLimit(t *testing.T) {
	base := discovery.DefaultAPIBase
	f := &fakeFetcher{responses: map[string][]response{
		base + "example.com?l=100": {{body: ";;Rate Limit: You can make 30 more\n;;Next Page: " + base + "example.com?p=2\na.example.com\n"}},
		base + "example.com?p=2":   {{body: ";;Next Page: " + base + "example.com?p=3\nb.example.com\n"}},
		base + "example.com?p=3":   {{body: "c.example.com\n"}},
	}}
	pacer := &recordingPacer{}
	c, _ := newTestCollector(f, nil, Options{Pacer: pacer})

	res, err := c.Collect(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Pages)
	require.Len(t, pacer.seen, 2)
	for _, rl := range pacer.seen {
		require.NotNil(t, rl)
		assert.Equal(t, 30, *rl)
	}
}

func TestCollect_ResumedSetNeverShrinks(t *testing.T) {
	f := &fakeFetcher{responses: map[string][]response{
		discovery.DefaultAPIBase + "example.com?l=100": {{body: "b.example.com\nc.example.com\n"}},
	}}
	results := NewSet("a.example.com", "b.example.com")
	var statuses []Status
	c, _ := newTestCollector(f, results, Options{
		Resuming: true,
		OnStatus: func(s Status) { statuses = append(statuses, s) },
	})

	res, err := c.Collect(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.example.com", "b.example.com", "c.example.com"}, results.Sorted())
	assert.Equal(t, 2, res.Found)
	assert.Equal(t, 1, res.Added)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Resuming)
	assert.Equal(t, 3, statuses[0].Fetched)
}

func TestCollect_OnPageErrorStops(t *testing.T) {
	f := &fakeFetcher{responses: map[string][]response{
		discovery.DefaultAPIBase + "example.com?l=100": {{body: "a.example.com\n"}},
	}}
	c, _ := newTestCollector(f, nil, Options{
		OnPage: func(*Set) error { return errors.New("disk full") },
	})

	_, err := c.Collect(context.Background(), "example.com")
	assert.EqualError(t, err, "disk full")
}

func TestRun_CancelAbortsRemainingTargets(t *testing.T) {
	base := discovery.DefaultAPIBase
	f := &fakeFetcher{responses: map[string][]response{
		base + "one.example?l=100": {{body: ";;Next Page: " + base + "one.example?p=2\na.one.example\n"}},
		base + "one.example?p=2":   {{body: "b.one.example\n"}},
		base + "two.example?l=100": {{body: "a.two.example\n"}},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, _ := newTestCollector(f, nil, Options{
		OnPage: func(*Set) error {
			cancel()
			return nil
		},
	})

	results, err := c.Run(ctx, []string{"one.example", "two.example"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 1)
	assert.Equal(t, []string{base + "one.example?l=100"}, f.calls)
	assert.Equal(t, []string{"a.one.example"}, c.Results().Sorted())
}

func TestRun_SkipsExhaustedTarget(t *testing.T) {
	base := discovery.DefaultAPIBase
	f := &fakeFetcher{responses: map[string][]response{
		base + "bad.example?l=100":  {{err: errors.New("boom")}},
		base + "good.example?l=100": {{body: "www.good.example\n"}},
	}}
	c, _ := newTestCollector(f, nil, Options{MaxAttempts: 2})

	results, err := c.Run(context.Background(), []string{"bad.example", "good.example"})
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Contains(t, err.Error(), "bad.example")
	assert.Len(t, results, 2)
	assert.True(t, c.Results().Has("www.good.example"))
}
