package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"BlogDigest/internal/config"
	"BlogDigest/internal/domain"
	"BlogDigest/internal/infrastructure/render"
	"BlogDigest/internal/ports"
)

const (
	defaultEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultModel    = "gpt-4o-mini"
	maxInputRunes   = 2000
)

// ChatGPTSummarizer implements ports.Summarizer backed by OpenAI-compatible APIs.
type ChatGPTSummarizer struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	sanitizer    *render.Sanitizer
	httpClient   *http.Client
}

var _ ports.Summarizer = (*ChatGPTSummarizer)(nil)

// NewChatGPTSummarizer builds a summarizer from configuration.
func NewChatGPTSummarizer(cfg config.ChatGPTConfig) *ChatGPTSummarizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &ChatGPTSummarizer{
		endpoint:     endpoint,
		model:        model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		sanitizer:    render.NewSanitizer(),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type promptPost struct {
	Link   string `json:"link"`
	Title  string `json:"title"`
	Source string `json:"source"`
	Text   string `json:"text,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type summaryList struct {
	Summaries []struct {
		Link    string `json:"link"`
		Summary string `json:"summary"`
	} `json:"summaries"`
}

// Summarize sends every post in one chat completion and maps the answers back by link.
func (c *ChatGPTSummarizer) Summarize(ctx context.Context, posts []domain.Post) ([]domain.Summary, error) {
	if c == nil {
		return nil, fmt.Errorf("chatgpt summarizer is nil")
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("chatgpt summarizer misconfigured: api key is empty")
	}
	if len(posts) == 0 {
		return nil, nil
	}

	input := make([]promptPost, 0, len(posts))
	for _, p := range posts {
		pp := promptPost{Link: p.Link, Title: p.Title, Source: p.SourceName}
		if p.SummaryRaw != nil {
			pp.Text = c.sanitizer.Excerpt(*p.SummaryRaw, maxInputRunes)
		}
		input = append(input, pp)
	}
	userContent, err := json.Marshal(map[string]any{"posts": input})
	if err != nil {
		return nil, fmt.Errorf("marshal posts: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"model":           c.model,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(c.systemPrompt)},
			{"role": "user", "content": string(userContent)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send posts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("chatgpt response has no choices")
	}

	var list summaryList
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &list); err != nil {
		return nil, fmt.Errorf("decode summaries: %w", err)
	}

	byLink := make(map[string]string, len(list.Summaries))
	for _, s := range list.Summaries {
		byLink[s.Link] = s.Summary
	}

	summaries := make([]domain.Summary, 0, len(posts))
	for _, p := range posts {
		text, ok := byLink[p.Link]
		if !ok || strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("no summary returned for %s", p.Link)
		}
		summaries = append(summaries, domain.Summary{
			Title:      p.Title,
			Link:       p.Link,
			SourceName: p.SourceName,
			Text:       strings.TrimSpace(text),
		})
	}
	return summaries, nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You summarize engineering blog posts for a daily email digest. " +
			"For every post in the input write two or three plain sentences. " +
			`Answer with a JSON object {"summaries":[{"link":"...","summary":"..."}]} ` +
			"using the exact links from the input."
	}
	return prompt
}
