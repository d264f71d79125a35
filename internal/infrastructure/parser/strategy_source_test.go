package parser

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BlogDigest/internal/domain"
)

type fakeResolver struct {
	candidates map[string][]domain.CandidateFeedURL
	delay      time.Duration
}

func (f *fakeResolver) Resolve(ctx context.Context, source domain.Source) []domain.CandidateFeedURL {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil
		}
	}
	return f.candidates[source.URL]
}

type fakeFetcher struct {
	mu       sync.Mutex
	posts    map[string][]domain.Post
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, source domain.Source, candidates []domain.CandidateFeedURL) ([]domain.Post, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	posts, ok := f.posts[candidates[0].URL]
	if !ok {
		return nil, errors.New("boom")
	}
	return posts, nil
}

func TestStrategySourceCollect(t *testing.T) {
	t.Parallel()

	sources := []domain.Source{
		{Name: "a", URL: "https://a.example"},
		{Name: "b", URL: "https://b.example"},
		{Name: "c", URL: "https://c.example"},
		{Name: "d", URL: "https://d.example"},
	}
	resolver := &fakeResolver{candidates: map[string][]domain.CandidateFeedURL{
		"https://a.example": {{URL: "https://a.example/feed"}},
		"https://b.example": {{URL: "https://b.example/rss"}},
		"https://d.example": {{URL: "https://d.example/feed"}},
	}}
	fetcher := &fakeFetcher{posts: map[string][]domain.Post{
		"https://a.example/feed": {{Link: "https://a.example/1", Title: "a1"}},
		"https://d.example/feed": {{Link: "https://d.example/1", Title: "d1", SourceName: "d"}},
	}}

	results := NewStrategySource(resolver, fetcher, 2, quietLogger()).Collect(context.Background(), sources)
	require.Len(t, results, 4)

	for i, r := range results {
		assert.Equal(t, sources[i], r.Source, "results keep declaration order")
	}

	assert.Equal(t, domain.SourceOK, results[0].Status)
	assert.Equal(t, "a", results[0].Fetched[0].SourceName)

	assert.Equal(t, domain.SourceSkipped, results[1].Status)
	assert.Equal(t, domain.ErrSourceExhausted.Error(), results[1].Reason)

	assert.Equal(t, domain.SourceSkipped, results[2].Status)
	assert.Equal(t, domain.ErrDiscovery.Error(), results[2].Reason)

	assert.Equal(t, domain.SourceOK, results[3].Status)
	assert.LessOrEqual(t, fetcher.maxSeen.Load(), int32(2))
}

func TestStrategySourceDeadlineSkipsSources(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{
		delay:      200 * time.Millisecond,
		candidates: map[string][]domain.CandidateFeedURL{"https://slow.example": {{URL: "https://slow.example/feed"}}},
	}
	fetcher := &fakeFetcher{posts: map[string][]domain.Post{}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	results := NewStrategySource(resolver, fetcher, 1, quietLogger()).Collect(ctx, []domain.Source{
		{Name: "slow", URL: "https://slow.example"},
		{Name: "queued", URL: "https://queued.example"},
	})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, domain.SourceSkipped, r.Status)
		assert.Equal(t, "deadline exceeded", r.Reason)
	}
}
