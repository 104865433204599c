package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

// RetryPolicy bounds how often and how patiently a provider call is repeated.
type RetryPolicy struct {
	Attempts  int // retries after the first try
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// delay returns the wait before retry n (0-based), doubling from BaseDelay.
func (p RetryPolicy) delay(n int) time.Duration {
	d := p.BaseDelay << n
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		return p.MaxDelay
	}
	return d
}

// DefaultRetry is used by every provider unless overridden.
var DefaultRetry = RetryPolicy{
	Attempts:  3,
	BaseDelay: 500 * time.Millisecond,
	MaxDelay:  5 * time.Second,
}

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
	errCircuitOpen = errors.New("circuit breaker open")
	errNoAPIKey    = errors.New("api key is not configured")
)

// apiClient issues GET requests for one upstream, guarded by its own
// circuit breaker.
type apiClient struct {
	http    *http.Client
	retry   RetryPolicy
	breaker *gobreaker.CircuitBreaker
}

func newAPIClient(name string, client *http.Client) *apiClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &apiClient{
		http:  client,
		retry: DefaultRetry,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
		}),
	}
}

// statusError classifies a non-2xx response. Only 429 and 5xx are retryable.
func statusError(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return errRateLimited
	case code >= 500:
		return errServerError
	default:
		return fmt.Errorf("%w: %d", errUnexpected, code)
	}
}

func retryable(err error) bool {
	return !errors.Is(err, errUnexpected)
}

// getJSON fetches endpoint?query and decodes the body into out.
func (c *apiClient) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	target := endpoint + "?" + query.Encode()

	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := c.breaker.Execute(func() (interface{}, error) {
			return c.once(ctx, target)
		})
		if err == nil {
			resp := res.(*http.Response)
			defer resp.Body.Close()
			return json.NewDecoder(resp.Body).Decode(out)
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if !retryable(err) || n >= c.retry.Attempts {
			return err
		}

		wait := time.NewTimer(c.retry.delay(n))
		select {
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-wait.C:
		}
	}
}

func (c *apiClient) once(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 == 2 {
		return resp, nil
	}
	resp.Body.Close()
	return nil, statusError(resp.StatusCode)
}
