package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Doer is the HTTP surface channel adapters send through. Tests inject
// a plain *http.Client pointed at an httptest server.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// breakerClient guards channel delivery with a circuit breaker so a
// dead endpoint stops consuming retry budget across dispatches. Retry
// lives in the dispatcher; the breaker only short-circuits while the
// endpoint stays down.
type breakerClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func newBreakerClient(name string, timeout time.Duration) *breakerClient {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			fmt.Printf("⚡ channel breaker '%s' changed from %s to %s\n", name, from, to)
		},
	}
	return &breakerClient{
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (c *breakerClient) Do(req *http.Request) (*http.Response, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.Do(req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}

func postJSON(ctx context.Context, client Doer, url string, body any, decorate func(*http.Request)) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if decorate != nil {
		decorate(req)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func bearerDecorator(token string) func(*http.Request) {
	if token == "" {
		return nil
	}
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// summaryLine builds the short human-readable line used by text-only
// channels. It reads only fields the redaction policy may have left in
// the payload.
func summaryLine(payload map[string]any) string {
	severity, _ := payload["severity"].(string)
	entity, _ := payload["matched_entity"].(string)
	rule, _ := payload["rule"].(string)
	if severity == "" {
		severity = "unknown"
	}
	if entity == "" {
		entity = "(redacted)"
	}
	return fmt.Sprintf("DarkGuard alert [%s] rule %q matched %s", severity, rule, entity)
}
