package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BlogDigest/internal/domain"
)

func TestClientSummarize(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/summarize", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]string{"summary": "about " + body["title"]})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", 0)
	got, err := c.Summarize(context.Background(), []domain.Post{
		{SourceName: "Acme", Title: "One", Link: "https://acme.dev/1"},
		{SourceName: "Acme", Title: "Two", Link: "https://acme.dev/2"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "about One", got[0].Text)
	assert.Equal(t, "https://acme.dev/2", got[1].Link)
}

func TestClientSummarizeStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", 0).Summarize(context.Background(), []domain.Post{{Title: "One", Link: "https://acme.dev/1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
