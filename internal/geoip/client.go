package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnavailable is returned when the lookup service cannot be reached
// or answers with a non-2xx status after retrying.
var ErrUnavailable = errors.New("geolocation service unavailable")

// Location is the best-effort geolocation result for an IP address.
// Any of the fields may be blank (private ranges, bogons).
type Location struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// LookupProvider defines the interface for IP geolocation lookups.
type LookupProvider interface {
	Lookup(ctx context.Context, ip string) (Location, error)
}

// Client calls an ipinfo-style HTTP endpoint: GET {base}/{ip}/json.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a lookup client with a request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Lookup resolves an IP to a location. The external service is the only
// flaky dependency in the system, so this is the one call with a
// bounded retry: a single extra attempt after a short pause.
func (c *Client) Lookup(ctx context.Context, ip string) (Location, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Location{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(200 * time.Millisecond):
			}
		}

		loc, err := c.lookupOnce(ctx, ip)
		if err == nil {
			return loc, nil
		}
		lastErr = err
	}
	return Location{}, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) lookupOnce(ctx context.Context, ip string) (Location, error) {
	url := fmt.Sprintf("%s/%s/json", c.baseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Location{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var loc Location
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return Location{}, err
	}
	return loc, nil
}
