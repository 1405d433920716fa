package source

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Doer is the HTTP surface source adapters fetch through. Production
// wiring uses ResilientClient; tests inject a plain *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ResilientClient wraps an HTTP client with a per-source circuit
// breaker and a per-call timeout. Retry lives in the runner; the
// breaker only keeps a persistently failing source from being hammered
// across runs.
type ResilientClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewResilientClient(name string, timeout time.Duration) *ResilientClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			fmt.Printf("⚡ source breaker '%s' changed from %s to %s\n", name, from, to)
		},
	}
	return &ResilientClient{
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Do executes the request through the breaker. 5xx responses count as
// breaker failures and surface as errors so the runner's retry policy
// treats them as transient; 4xx responses pass through for the adapter
// to interpret.
func (c *ResilientClient) Do(req *http.Request) (*http.Response, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}
