// Package search answers questions that fall outside the home, backed
// by the DuckDuckGo instant answer API.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/raphaelgruber/hearth-go/internal/config"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg config.Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    cfg.SearchURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

type instantAnswer struct {
	Answer        string `json:"Answer"`
	AbstractText  string `json:"AbstractText"`
	Definition    string `json:"Definition"`
	RelatedTopics []struct {
		Text string `json:"Text"`
	} `json:"RelatedTopics"`
}

// Search runs one instant-answer lookup and returns the best textual
// answer available.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search %q: unexpected status %d", query, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read search response: %w", err)
	}

	var answer instantAnswer
	if err := json.Unmarshal(body, &answer); err != nil {
		return "", fmt.Errorf("parse search response: %w", err)
	}

	switch {
	case answer.Answer != "":
		return answer.Answer, nil
	case answer.AbstractText != "":
		return answer.AbstractText, nil
	case answer.Definition != "":
		return answer.Definition, nil
	case len(answer.RelatedTopics) > 0 && answer.RelatedTopics[0].Text != "":
		return answer.RelatedTopics[0].Text, nil
	}

	c.logger.Debug("search found nothing", "query", query)
	return "I couldn't find anything useful on that.", nil
}
