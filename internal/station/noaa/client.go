package noaa

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Welkro/Tides-and-Currents-Predictions/internal/station"
)

// maxBodyBytes caps a single product response. Six-minute data over a few days
// is well under a megabyte.
const maxBodyBytes = 16 << 20

// Client implements station.Source against the CO-OPS data getter. Each product
// gets its own circuit breaker so one failing product cannot block the others.
type Client struct {
	name    string
	query   Query
	httpCfg HTTPClientConfig

	mu       sync.Mutex
	circuits map[string]*gobreaker.CircuitBreaker
}

// NewClient creates a client for a fixed station query.
func NewClient(client *http.Client, query Query, backoff BackoffConfig) *Client {
	return &Client{
		name:  "noaa-coops",
		query: query,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: backoff,
		},
		circuits: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (c *Client) circuit(product string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.circuits[product]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "noaa-" + product,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		})
		c.circuits[product] = cb
	}
	return cb
}

func (c *Client) Name() string {
	return c.name
}

// Fetch downloads the raw JSON body for one parameter.
func (c *Client) Fetch(ctx context.Context, spec station.ParameterSpec) ([]byte, error) {
	u, err := c.query.URL(spec.Product)
	if err != nil {
		return nil, err
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit(spec.Product), buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", spec.Product, err)
	}
	return body, nil
}
