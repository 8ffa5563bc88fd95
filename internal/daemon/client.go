package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to a running daemon's HTTP control API over loopback.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client bound to 127.0.0.1:port.
func NewClient(port int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		http:    &http.Client{Timeout: timeout},
	}
}

// IsRunning reports whether the daemon answers GET /health at all.
func (c *Client) IsRunning() bool {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return true
}

// Status fetches GET /status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var out StatusResult
	if err := c.getJSON(ctx, "/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health fetches GET /health.
func (c *Client) Health(ctx context.Context) (*HealthResult, error) {
	var out HealthResult
	if err := c.getJSON(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search fetches GET /search?q=...&lang=...&limit=....
func (c *Client) Search(ctx context.Context, q, lang string, limit int) ([]SearchResultDTO, error) {
	params := url.Values{"q": {q}}
	if lang != "" {
		params.Set("lang", lang)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var out []SearchResultDTO
	if err := c.getJSON(ctx, "/search?"+params.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Reindex issues POST /reindex?force=<bool>. Returns once the daemon has
// accepted the request (202); the reindex itself runs in the background.
func (c *Client) Reindex(ctx context.Context, force bool) error {
	q := ""
	if force {
		q = "?force=true"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reindex"+q, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("daemon: reindex returned %d", resp.StatusCode)
	}
	return nil
}

// Stop issues POST /stop, triggering graceful daemon shutdown.
func (c *Client) Stop(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stop", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon: stop returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var body ErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error != "" {
			return fmt.Errorf("daemon: %s", body.Error)
		}
		return fmt.Errorf("daemon: %s returned %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
