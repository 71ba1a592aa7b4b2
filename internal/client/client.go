// Package client implements the request/response calls to the monitoring
// backend: the initial bulk fetch and the periodic summary fetch.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pool_monitor/internal/monitor"
)

// Client talks to the monitoring backend's REST endpoints.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the given base URL (e.g. "http://host:8001/v1").
// A nil http.Client selects one with a 15s timeout.
func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

// monitoringResponse is the bulk fetch shape: {"data": [Place…]}.
type monitoringResponse struct {
	Data []monitor.Place `json:"data"`
}

// FetchMonitoring retrieves the full place collection for initial
// population. Streaming keeps it fresh afterwards.
func (c *Client) FetchMonitoring(ctx context.Context) ([]monitor.Place, error) {
	var resp monitoringResponse
	if err := c.getJSON(ctx, "/monitoring", &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// SummarySnapshot is the periodic summary fetch response.
type SummarySnapshot struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Summary   monitor.Summary `json:"summary"`
}

// FetchSummary retrieves the current aggregate snapshot.
func (c *Client) FetchSummary(ctx context.Context) (*SummarySnapshot, error) {
	var snap SummarySnapshot
	if err := c.getJSON(ctx, "/monitoring/summary", &snap); err != nil {
		return nil, err
	}
	if snap.Status != "success" {
		return nil, fmt.Errorf("summary fetch: unexpected status %q", snap.Status)
	}
	return &snap, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}
