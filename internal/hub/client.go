// Package hub provides a REST and websocket client for a Home Assistant hub.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raphaelgruber/hearth-go/internal/config"
)

// naValue marks a service payload field the model could not fill.
// Fields carrying it are stripped before the call reaches the hub.
const naValue = "NA"

// Client talks to the hub's REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retries    int
	logger     *slog.Logger
}

// New creates a hub client from configuration.
func New(cfg config.Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL: fmt.Sprintf("http://%s:%s", cfg.HubAddress, cfg.HubPort),
		token:   cfg.HubToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retries: cfg.HubRetries,
		logger:  logger,
	}
}

// State is an entity state as reported by the hub.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged time.Time      `json:"last_changed,omitzero"`
	LastUpdated time.Time      `json:"last_updated,omitzero"`
}

// GetState fetches the current state of a single entity.
func (c *Client) GetState(ctx context.Context, entityID string) (*State, error) {
	var state State
	if err := c.doJSON(ctx, http.MethodGet, "/api/states/"+entityID, nil, &state); err != nil {
		return nil, fmt.Errorf("get state %s: %w", entityID, err)
	}
	return &state, nil
}

// GetStates fetches the states of every entity in one call.
func (c *Client) GetStates(ctx context.Context) ([]State, error) {
	var states []State
	if err := c.doJSON(ctx, http.MethodGet, "/api/states", nil, &states); err != nil {
		return nil, fmt.Errorf("get states: %w", err)
	}
	return states, nil
}

// HistoryOptions scopes a history query.
type HistoryOptions struct {
	EntityIDs []string
	Start     time.Time
	End       time.Time
	// Minimal drops attributes from all but the first record per entity.
	Minimal bool
}

// History fetches state history. The outer slice groups records per
// entity in the order the hub returns them.
func (c *Client) History(ctx context.Context, opts HistoryOptions) ([][]State, error) {
	path := "/api/history/period"
	if !opts.Start.IsZero() {
		path += "/" + opts.Start.UTC().Format(time.RFC3339)
	}

	q := url.Values{}
	if len(opts.EntityIDs) > 0 {
		q.Set("filter_entity_id", strings.Join(opts.EntityIDs, ","))
	}
	if !opts.End.IsZero() {
		q.Set("end_time", opts.End.UTC().Format(time.RFC3339))
	}
	if opts.Minimal {
		q.Set("minimal_response", "")
	}
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var history [][]State
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &history); err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return history, nil
}

// CallService invokes domain.service with the given payload. Payload
// fields holding the NA sentinel are dropped first. Returns the states
// the hub reports as changed by the call.
func (c *Client) CallService(ctx context.Context, domain, service string, payload map[string]any) ([]State, error) {
	cleaned := stripSentinels(payload)

	var changed []State
	path := fmt.Sprintf("/api/services/%s/%s", domain, service)
	if err := c.doJSON(ctx, http.MethodPost, path, cleaned, &changed); err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", domain, service, err)
	}
	return changed, nil
}

// ErrorLog fetches the hub's plain-text error log.
func (c *Client) ErrorLog(ctx context.Context) (string, error) {
	body, err := c.doRaw(ctx, http.MethodGet, "/api/error_log", nil)
	if err != nil {
		return "", fmt.Errorf("get error log: %w", err)
	}
	return string(body), nil
}

// ReloadAutomations asks the hub to re-read its automation config.
func (c *Client) ReloadAutomations(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodPost, "/api/services/automation/reload", map[string]any{}, nil); err != nil {
		return fmt.Errorf("reload automations: %w", err)
	}
	return nil
}

// RenderTemplate evaluates a hub template expression and returns the
// rendered text.
func (c *Client) RenderTemplate(ctx context.Context, template string) (string, error) {
	body, err := c.doRaw(ctx, http.MethodPost, "/api/template", map[string]any{"template": template})
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return string(body), nil
}

// stripSentinels returns a copy of payload without NA-valued fields.
// Nested maps are cleaned recursively; list elements are kept as-is.
func stripSentinels(payload map[string]any) map[string]any {
	cleaned := make(map[string]any, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case string:
			if val == naValue {
				continue
			}
			cleaned[k] = val
		case map[string]any:
			sub := stripSentinels(val)
			if len(sub) > 0 {
				cleaned[k] = sub
			}
		default:
			cleaned[k] = v
		}
	}
	return cleaned
}

// doJSON performs a request and decodes a JSON response into result.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, result any) error {
	body, err := c.doRaw(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// doRaw performs a request with bounded retries. Network failures and
// 5xx responses are retried; 4xx responses fail immediately.
func (c *Client) doRaw(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying hub request", "method", method, "path", path, "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(reqBody))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("hub error: %s - %s", resp.Status, string(body))
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("hub rejected request: %s - %s", resp.Status, string(body))
		}

		return body, nil
	}

	return nil, fmt.Errorf("hub request failed after %d attempts: %w", c.retries+1, lastErr)
}
