package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TimurManjosov/splitgate/internal/gate"
	"github.com/TimurManjosov/splitgate/internal/snapshot"
)

// Client is an HTTP client for a running splitgate server
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Decide asks the server for a dry-run decision on probe
func (c *Client) Decide(ctx context.Context, probe gate.Probe) (*gate.Decision, error) {
	u, err := url.Parse(c.BaseURL + "/v1/gate/decide")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	u.RawQuery = probeQuery(probe).Encode()

	var result struct {
		Decision gate.Decision `json:"decision"`
	}
	if err := c.get(ctx, u.String(), &result); err != nil {
		return nil, err
	}
	return &result.Decision, nil
}

// Config retrieves the server's published settings snapshot
func (c *Client) Config(ctx context.Context) (*snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	if err := c.get(ctx, c.BaseURL+"/v1/gate/config", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) get(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func probeQuery(p gate.Probe) url.Values {
	q := url.Values{}
	if p.URL != "" {
		q.Set("url", p.URL)
	}
	if p.Method != "" {
		q.Set("method", p.Method)
	}
	if p.UserAgent != "" {
		q.Set("ua", p.UserAgent)
	}
	for _, c := range p.Cookies {
		q.Add("cookie", c)
	}
	if p.PageType != "" {
		q.Set("page_type", p.PageType)
	}
	if p.Authenticated {
		q.Set("authenticated", strconv.FormatBool(true))
	}
	if p.Marker != "" {
		q.Set("marker", p.Marker)
	}
	return q
}
