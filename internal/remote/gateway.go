// Package remote performs the network calls of a crawl: one HTTP GET per
// attempt under a shared concurrency limiter, with per-attempt timeouts and
// exponential backoff between attempts. Exhausted retries degrade to a
// no-value result and never surface as errors.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matsen/papernet/internal/crossref"
	"github.com/matsen/papernet/internal/metrics"
	"github.com/matsen/papernet/internal/opencitations"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Source names, used for logging, metrics and breakers.
const (
	SourceCrossref      = "crossref"
	SourceOpenCitations = "opencitations"
)

// DefaultUserAgent identifies the crawler to remote services.
const DefaultUserAgent = "papernet/dev"

// maxBodyBytes caps a single response body.
const maxBodyBytes = 32 << 20

// Gateway fetches metadata and citation lists from remote sources.
type Gateway struct {
	httpClient       *http.Client
	limiter          *Limiter
	policy           Policy
	userAgent        string
	crossrefURL      string
	openCitationsURL string
	citationsToken   string
	breakerThreshold uint32
	breakers         map[string]*gobreaker.CircuitBreaker
	logger           *zap.Logger
	metrics          *metrics.Collector
	sleep            func(ctx context.Context, d time.Duration) error
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = hc
	}
}

// WithLimiter shares a limiter between gateways or with the caller.
func WithLimiter(l *Limiter) Option {
	return func(g *Gateway) {
		g.limiter = l
	}
}

// WithPolicy sets the timeout and retry policy.
func WithPolicy(p Policy) Option {
	return func(g *Gateway) {
		g.policy = p
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(g *Gateway) {
		g.userAgent = ua
	}
}

// WithCrossrefURL sets the metadata source base URL (for testing).
func WithCrossrefURL(url string) Option {
	return func(g *Gateway) {
		g.crossrefURL = url
	}
}

// WithOpenCitationsURL sets the citation source base URL (for testing).
func WithOpenCitationsURL(url string) Option {
	return func(g *Gateway) {
		g.openCitationsURL = url
	}
}

// WithOpenCitationsToken sets the access token sent to OpenCitations.
func WithOpenCitationsToken(token string) Option {
	return func(g *Gateway) {
		g.citationsToken = token
	}
}

// WithBreaker opens a source's circuit after threshold consecutive failed
// attempts. Zero disables the breakers.
func WithBreaker(threshold uint32) Option {
	return func(g *Gateway) {
		g.breakerThreshold = threshold
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithSleep replaces the backoff wait (for testing).
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gateway) {
		g.sleep = sleep
	}
}

// NewGateway creates a gateway with default policy and limiter.
func NewGateway(opts ...Option) *Gateway {
	g := &Gateway{
		httpClient:       &http.Client{},
		policy:           DefaultPolicy(),
		userAgent:        DefaultUserAgent,
		crossrefURL:      crossref.DefaultBaseURL,
		openCitationsURL: opencitations.DefaultBaseURL,
		logger:           zap.NewNop(),
		sleep:            sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.limiter == nil {
		g.limiter = NewLimiter(DefaultConcurrency, 0)
	}

	g.breakers = make(map[string]*gobreaker.CircuitBreaker)
	if g.breakerThreshold > 0 {
		for _, source := range []string{SourceCrossref, SourceOpenCitations} {
			g.breakers[source] = g.newBreaker(source)
		}
	}
	return g
}

func (g *Gateway) newBreaker(source string) *gobreaker.CircuitBreaker {
	threshold := g.breakerThreshold
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        source,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A missing record means the service is answering.
		IsSuccessful: func(err error) bool {
			return err == nil || IsNotFound(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("circuit breaker state changed",
				zap.String("source", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// Limiter returns the gateway's limiter.
func (g *Gateway) Limiter() *Limiter {
	return g.limiter
}

// FetchMetadata fetches the raw metadata record for a DOI. It reports false
// once every attempt has failed.
func (g *Gateway) FetchMetadata(ctx context.Context, id string) (json.RawMessage, bool) {
	url := crossref.WorkURL(g.crossrefURL, id)
	var out json.RawMessage
	ok := g.fetchWithRetry(ctx, SourceCrossref, id, url, func(body []byte) error {
		if crossref.ParseWork(body) == nil {
			return fmt.Errorf("%w: metadata is not a JSON object", ErrInvalidResponse)
		}
		out = json.RawMessage(body)
		return nil
	})
	return out, ok
}

// FetchCitingDocuments fetches up to maxCount DOIs of documents citing id.
// Exhausted retries return an empty list and false.
func (g *Gateway) FetchCitingDocuments(ctx context.Context, id string, maxCount int) ([]string, bool) {
	url := opencitations.CitationsURL(g.openCitationsURL, id)
	var out []string
	ok := g.fetchWithRetry(ctx, SourceOpenCitations, id, url, func(body []byte) error {
		citing, ok := opencitations.ParseCiting(body, maxCount)
		if !ok {
			return fmt.Errorf("%w: citations are not a JSON array", ErrInvalidResponse)
		}
		out = citing
		return nil
	})
	if !ok {
		return []string{}, false
	}
	return out, true
}

// fetchWithRetry runs attempts until one succeeds and accept takes the body,
// the retry budget runs out, the breaker opens, or ctx ends.
func (g *Gateway) fetchWithRetry(ctx context.Context, source, id, url string, accept func([]byte) error) bool {
	attempts := g.policy.Attempts()
	for attempt := 0; attempt < attempts; attempt++ {
		err := g.attempt(ctx, source, url, accept)
		if err == nil {
			return true
		}
		if IsRateLimited(err) {
			g.logger.Warn("rate limited by source",
				zap.String("source", source),
				zap.String("id", id),
				zap.Int("attempt", attempt+1))
		}
		if !IsRetryable(err) || ctx.Err() != nil {
			g.logger.Debug("giving up fetch", zap.String("source", source), zap.String("id", id), zap.Error(err))
			return false
		}
		if attempt == attempts-1 {
			g.logger.Warn("fetch failed after retries",
				zap.String("source", source),
				zap.String("id", id),
				zap.Int("attempts", attempts),
				zap.Error(err))
			g.metrics.IncExhausted(source)
			return false
		}

		delay := g.policy.NextDelay(attempt)
		g.logger.Debug("retrying fetch",
			zap.String("source", source),
			zap.String("id", id),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		g.metrics.IncRetry(source)
		if err := g.sleep(ctx, delay); err != nil {
			return false
		}
	}
	return false
}

// attempt performs one limited, timed GET through the source's breaker.
func (g *Gateway) attempt(ctx context.Context, source, url string, accept func([]byte) error) error {
	release, err := g.limiter.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	g.metrics.AddInFlight(1)
	defer g.metrics.AddInFlight(-1)

	start := time.Now()
	call := func() (any, error) {
		body, err := g.get(ctx, source, url)
		if err != nil {
			return nil, err
		}
		return nil, accept(body)
	}

	if cb, ok := g.breakers[source]; ok {
		_, err = cb.Execute(call)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			g.metrics.ObserveAttempt(source, metrics.OutcomeBreakerOpen, time.Since(start))
			return fmt.Errorf("%w: %s", ErrBreakerOpen, source)
		}
	} else {
		_, err = call()
	}

	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
	}
	g.metrics.ObserveAttempt(source, outcome, time.Since(start))
	return err
}

// get performs a single GET with the per-attempt timeout and returns the body.
func (g *Gateway) get(ctx context.Context, source, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.policy.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", g.userAgent)
	if source == SourceOpenCitations && g.citationsToken != "" {
		req.Header.Set("Authorization", g.citationsToken)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(source, url, resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetworkError, err)
	}
	return body, nil
}

// sleepContext waits for d or until ctx ends.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
