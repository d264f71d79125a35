package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"BlogDigest/internal/domain"
	"BlogDigest/internal/ports"
)

// Client talks to an external summarization service.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Summarizer = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// Summarize requests one summary per post, in order. The first failure aborts the batch.
func (c *Client) Summarize(ctx context.Context, posts []domain.Post) ([]domain.Summary, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("summarization service endpoint is empty")
	}

	summaries := make([]domain.Summary, 0, len(posts))
	for _, p := range posts {
		payload := map[string]any{
			"title":  p.Title,
			"link":   p.Link,
			"source": p.SourceName,
		}
		if p.SummaryRaw != nil {
			payload["content"] = *p.SummaryRaw
		}

		var resp struct {
			Summary string `json:"summary"`
		}
		if err := c.post(ctx, "/summarize", payload, &resp); err != nil {
			return nil, fmt.Errorf("summarize %s: %w", p.Link, err)
		}
		if strings.TrimSpace(resp.Summary) == "" {
			return nil, fmt.Errorf("summarize %s: empty summary", p.Link)
		}

		summaries = append(summaries, domain.Summary{
			Title:      p.Title,
			Link:       p.Link,
			SourceName: p.SourceName,
			Text:       strings.TrimSpace(resp.Summary),
		})
	}
	return summaries, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if v == nil {
		if err := resp.Body.Close(); err != nil {
			return fmt.Errorf("close response body: %w", err)
		}
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}
