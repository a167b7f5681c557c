// Package ais implements the cost-aware client for the external AIS lookup
// provider. Every call against the provider consumes credits, so the client
// refuses to fire without an identifier and never retries on its own.
package ais

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/asli-tracking/backend/internal/config"
)

// Client queries the provider's vessel location endpoint. Configuration is
// injected once at construction; nothing is read from the environment at
// call time.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a gateway client from the AIS config section.
func NewClient(cfg config.AISConfig, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured reports whether the provider base URL and key are both present.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// FetchPosition looks up the current position of one vessel. MMSI is
// preferred over IMO as the query identifier.
//
// Returns nil on every failure path: missing configuration, missing
// identifier, transport errors, non-2xx responses, malformed bodies and
// non-finite coordinates. The cause is logged; it never becomes an error
// the caller could mistake for a batch-level failure, and the caller must
// not retry within the same batch.
func (c *Client) FetchPosition(ctx context.Context, vesselName, imo, mmsi string) *Position {
	if !c.Configured() {
		fmt.Printf("[AIS] Gateway not configured (missing base URL or API key); skipping lookup for %s\n", vesselName)
		return nil
	}

	identifier := mmsi
	if identifier == "" {
		identifier = imo
	}
	if identifier == "" {
		fmt.Printf("[AIS] No IMO/MMSI configured for %s; refusing to spend credits on a name lookup\n", vesselName)
		return nil
	}

	endpoint := fmt.Sprintf("%s/vessels_operations/get-vessel-location?imo_or_mmsi=%s",
		c.baseURL, url.QueryEscape(identifier))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		fmt.Printf("[AIS] Failed to build request for %s: %v\n", vesselName, err)
		return nil
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api_key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		fmt.Printf("[AIS] Lookup failed for %s: %v\n", vesselName, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fmt.Printf("[AIS] Provider returned %d for %s (identifier %s)\n", resp.StatusCode, vesselName, identifier)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("[AIS] Failed to read response for %s: %v\n", vesselName, err)
		return nil
	}

	pos := ParsePayload(body)
	if pos == nil {
		fmt.Printf("[AIS] Provider payload for %s had no usable coordinates\n", vesselName)
		return nil
	}

	fmt.Printf("[AIS] Position for %s: lat=%.5f lon=%.5f at=%s\n", vesselName, pos.Lat, pos.Lon, pos.PositionAt)
	return pos
}
