// Package service is the HTTP client for the clustering and recommendation
// service. Every failure it returns is a *FetchError.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/abelbrown/tracklens/internal/logging"
)

// DefaultBaseURL is where the service listens in a local deployment.
const DefaultBaseURL = "http://127.0.0.1:5000/api"

const maxBody = 8 << 20

// Options configures a Client. Zero values take the defaults.
type Options struct {
	BaseURL      string
	Timeout      time.Duration // per HTTP attempt
	RateInterval time.Duration // minimum spacing between calls; negative disables
	MaxRetries   int           // retries after the first attempt; negative disables
	Backoff      time.Duration // first retry delay, doubled per attempt

	BreakerFailures uint32        // consecutive transient failures that open the breaker
	BreakerTimeout  time.Duration // how long the breaker stays open

	HTTPClient *http.Client
}

// Client talks to the service. It is safe for concurrent use.
type Client struct {
	base       string
	http       *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	maxRetries int
	backoff    time.Duration
}

// New creates a client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RateInterval == 0 {
		opts.RateInterval = 250 * time.Millisecond
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	} else if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff == 0 {
		opts.Backoff = time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout == 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	if opts.RateInterval > 0 {
		limit = rate.Every(opts.RateInterval)
	}

	log := logging.WithPrefix("service")
	failures := opts.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "tracklens-service",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		// Client errors say nothing about service health.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			var fe *FetchError
			return errors.As(err, &fe) && !fe.Transient()
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		base:       strings.TrimRight(opts.BaseURL, "/"),
		http:       hc,
		limiter:    rate.NewLimiter(limit, 1),
		breaker:    breaker,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
	}
}

// FetchUserTracks returns the tracks of the user behind token.
func (c *Client) FetchUserTracks(ctx context.Context, token string) ([]Track, error) {
	const op = "fetch user tracks"
	body, err := c.call(ctx, op, http.MethodGet, "/fetch-user-tracks?token="+url.QueryEscape(token), nil)
	if err != nil {
		return nil, err
	}
	var resp tracksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &FetchError{Op: op, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return resp.Tracks, nil
}

// Cluster asks the service to partition tracks. The response is decoded
// but not validated; that happens when a snapshot is built from it.
func (c *Client) Cluster(ctx context.Context, req ClusterRequest) (*ClusterResponse, error) {
	const op = "cluster"
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &FetchError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
	}
	body, err := c.call(ctx, op, http.MethodPost, "/cluster", payload)
	if err != nil {
		return nil, err
	}
	var resp ClusterResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &FetchError{Op: op, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return &resp, nil
}

// Recommend fetches recommendations for a seed set. An empty list is a
// valid result.
func (c *Client) Recommend(ctx context.Context, req RecommendRequest) ([]Recommendation, error) {
	const op = "recommendations"
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &FetchError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
	}
	body, err := c.call(ctx, op, http.MethodPost, "/recommendations", payload)
	if err != nil {
		return nil, err
	}
	var resp recommendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &FetchError{Op: op, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if resp.Recommendations == nil {
		return []Recommendation{}, nil
	}
	return resp.Recommendations, nil
}

func (c *Client) call(ctx context.Context, op, method, path string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Op: op, Err: fmt.Errorf("rate limiter: %w", err)}
	}
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doWithRetry(ctx, op, method, path, payload)
	})
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &FetchError{Op: op, Err: err}
	}
	return body, nil
}

// doWithRetry retries transport failures, 429 and 5xx with exponential
// backoff. Retry-After on a 429 overrides the backoff, capped at 30s.
func (c *Client) doWithRetry(ctx context.Context, op, method, path string, payload []byte) ([]byte, error) {
	var lastErr *attemptError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			if lastErr.Status == http.StatusTooManyRequests && lastErr.retryAfter > 0 {
				delay = lastErr.retryAfter
			}
			select {
			case <-ctx.Done():
				return nil, &FetchError{Op: op, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		body, err := c.do(ctx, op, method, path, payload)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, &FetchError{Op: op, Err: ctx.Err()}
		}
		if !err.retryable() {
			return nil, err.FetchError
		}
		lastErr = err
	}
	return nil, lastErr.FetchError
}

type attemptError struct {
	*FetchError
	retryAfter time.Duration
	permanent  bool
}

func (e *attemptError) retryable() bool { return !e.permanent && e.Transient() }

func (c *Client) do(ctx context.Context, op, method, path string, payload []byte) ([]byte, *attemptError) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, &attemptError{FetchError: &FetchError{Op: op, Err: fmt.Errorf("create request: %w", err)}, permanent: true}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &attemptError{FetchError: &FetchError{Op: op, Err: fmt.Errorf("request failed: %w", err)}}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &attemptError{FetchError: &FetchError{Op: op, Err: fmt.Errorf("read response: %w", err)}}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	ae := &attemptError{FetchError: &FetchError{Op: op, Status: resp.StatusCode, Err: errors.New(serviceMessage(body))}}
	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			ae.retryAfter = min(time.Duration(secs)*time.Second, 30*time.Second)
		}
	}
	return nil, ae
}

// serviceMessage pulls {"error": "..."} out of an error body when present.
func serviceMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	if msg == "" {
		msg = "empty response"
	}
	return msg
}
