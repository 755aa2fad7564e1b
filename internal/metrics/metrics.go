package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "thcsub"

// Request outcomes used as the "outcome" label of RequestsTotal.
const (
	OutcomeOK           = "ok"
	OutcomeNotFound     = "not_found"
	OutcomeHTTPError    = "http_error"
	OutcomeNetworkError = "network_error"
)

var (
	registry = prometheus.NewRegistry()
	factory  = promauto.With(registry)

	serverMu sync.Mutex
	server   *http.Server
)

var (
	// RequestsTotal counts API requests by outcome.
	RequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "API requests by outcome.",
	}, []string{"outcome"})

	// RetriesTotal counts requests that were retried after a failure.
	RetriesTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retries_total",
		Help:      "Requests retried after a transient error.",
	})

	// PagesTotal counts successfully parsed pages per target.
	PagesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pages_total",
		Help:      "Pages fetched and parsed.",
	}, []string{"target"})

	// SubdomainsAdded counts subdomains that were not in the result set yet.
	SubdomainsAdded = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subdomains_added_total",
		Help:      "Subdomains added to the result set.",
	}, []string{"target"})

	// RateLimitRemaining is the last quota advertised by the API.
	RateLimitRemaining = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rate_limit_remaining",
		Help:      "Requests left according to the last page.",
	})

	// NewSubdomains is the size of the last diff against known results.
	NewSubdomains = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "new_subdomains",
		Help:      "Subdomains absent from the previous run.",
	})
)

// Registry returns the registry every metric above is registered on.
func Registry() *prometheus.Registry {
	return registry
}

// StartServer serves /metrics on addr in the background.
func StartServer(addr string, errorLog func(error)) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	serverMu.Lock()
	server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := server
	serverMu.Unlock()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && errorLog != nil {
			errorLog(err)
		}
	}()
}

// Shutdown stops the metrics server if one is running.
func Shutdown(ctx context.Context) error {
	serverMu.Lock()
	defer serverMu.Unlock()

	if server == nil {
		return nil
	}
	err := server.Shutdown(ctx)
	server = nil
	return err
}
