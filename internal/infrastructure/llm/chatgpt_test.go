package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BlogDigest/internal/config"
	"BlogDigest/internal/domain"
)

func strPtr(s string) *string { return &s }

func testPosts() []domain.Post {
	return []domain.Post{
		{SourceName: "Acme", Title: "Queue rewrite", Link: "https://acme.dev/queue", SummaryRaw: strPtr("<p>We rebuilt the queue.</p>")},
		{SourceName: "Globex", Title: "Notes", Link: "https://globex.io/notes"},
	}
}

func chatServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "https://acme.dev/queue")
		assert.NotContains(t, req.Messages[1].Content, "<p>")

		if status != http.StatusOK {
			http.Error(w, "quota exceeded", status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		})
	}))
}

func TestChatGPTSummarizerMapsByLink(t *testing.T) {
	t.Parallel()

	content := `{"summaries":[{"link":"https://globex.io/notes","summary":"Notes summary."},{"link":"https://acme.dev/queue","summary":" Queue summary. "}]}`
	srv := chatServer(t, content, http.StatusOK)
	defer srv.Close()

	s := NewChatGPTSummarizer(config.ChatGPTConfig{Endpoint: srv.URL, APIKey: "test-key", Model: "test"})
	got, err := s.Summarize(context.Background(), testPosts())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "https://acme.dev/queue", got[0].Link)
	assert.Equal(t, "Queue summary.", got[0].Text)
	assert.Equal(t, "Acme", got[0].SourceName)
	assert.Equal(t, "Notes summary.", got[1].Text)
}

func TestChatGPTSummarizerMissingSummary(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, `{"summaries":[{"link":"https://acme.dev/queue","summary":"Queue."}]}`, http.StatusOK)
	defer srv.Close()

	s := NewChatGPTSummarizer(config.ChatGPTConfig{Endpoint: srv.URL, APIKey: "test-key"})
	_, err := s.Summarize(context.Background(), testPosts())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "https://globex.io/notes")
}

func TestChatGPTSummarizerHTTPError(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, "", http.StatusTooManyRequests)
	defer srv.Close()

	s := NewChatGPTSummarizer(config.ChatGPTConfig{Endpoint: srv.URL, APIKey: "test-key"})
	_, err := s.Summarize(context.Background(), testPosts())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "429"), err.Error())
}

func TestChatGPTSummarizerRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewChatGPTSummarizer(config.ChatGPTConfig{}).Summarize(context.Background(), testPosts())
	require.Error(t, err)
}

func TestExcerptSummarizer(t *testing.T) {
	t.Parallel()

	got, err := NewExcerptSummarizer(0).Summarize(context.Background(), testPosts())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "We rebuilt the queue.", got[0].Text)
	assert.Equal(t, "No description provided.", got[1].Text)
	assert.Equal(t, "https://globex.io/notes", got[1].Link)
}
