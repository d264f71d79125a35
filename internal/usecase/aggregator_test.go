package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BlogDigest/internal/domain"
)

var testNow = time.Date(2025, time.November, 8, 6, 0, 0, 0, time.UTC)

func hoursAgo(h int) *time.Time {
	t := testNow.Add(-time.Duration(h) * time.Hour)
	return &t
}

func post(source, link string, published *time.Time) domain.Post {
	return domain.Post{SourceName: source, Title: link, Link: link, PublishedAt: published}
}

func links(posts []domain.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Link)
	}
	return out
}

func TestFilterNovel(t *testing.T) {
	t.Parallel()

	window := domain.RunWindow{Since: *hoursAgo(48)}
	posts := []domain.Post{
		post("A", "old", hoursAgo(72)),
		post("A", "boundary", hoursAgo(48)),
		post("A", "undated", nil),
		post("A", "fresh", hoursAgo(1)),
	}

	got := FilterNovel(posts, window)
	assert.Equal(t, []string{"boundary", "undated", "fresh"}, links(got))
	assert.Len(t, posts, 4, "input untouched")
}

func TestAggregateOrdersNovelPosts(t *testing.T) {
	t.Parallel()

	results := []domain.SourceResult{
		{Source: domain.Source{Name: "A"}, Status: domain.SourceOK, Novel: []domain.Post{
			post("A", "a-undated", nil),
			post("A", "a-tie", hoursAgo(5)),
			post("A", "a-new", hoursAgo(1)),
		}},
		{Source: domain.Source{Name: "B"}, Status: domain.SourceOK, Novel: []domain.Post{
			post("B", "b-tie", hoursAgo(5)),
			post("B", "b-undated", nil),
			post("B", "a-new", hoursAgo(1)),
		}},
	}

	digest := Aggregate(results, nil, FallbackPolicy{}, testNow)

	assert.False(t, digest.IsFallback)
	assert.Equal(t, testNow, digest.GeneratedAt)
	assert.Equal(t, []string{"a-new", "a-tie", "b-tie", "a-undated", "b-undated"}, links(digest.Posts))
	assert.Equal(t, "A", digest.Posts[0].SourceName, "first occurrence wins on duplicate links")

	again := Aggregate(results, nil, FallbackPolicy{}, testNow)
	assert.Equal(t, digest, again)
}

func TestAggregateFallbackFromFetched(t *testing.T) {
	t.Parallel()

	var fetched []domain.Post
	for i := 1; i <= 8; i++ {
		fetched = append(fetched, post("A", string(rune('a'+i)), hoursAgo(100+i)))
	}
	results := []domain.SourceResult{
		{Source: domain.Source{Name: "A"}, Status: domain.SourceOK, Fetched: fetched},
	}

	digest := Aggregate(results, []domain.Post{post("C", "cached", hoursAgo(1))}, FallbackPolicy{Count: 3}, testNow)

	assert.True(t, digest.IsFallback)
	assert.Equal(t, []string{"b", "c", "d"}, links(digest.Posts))
	assert.Empty(t, digest.EmptyReason)
}

func TestAggregateFallbackLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		available int
		count     int
		want      int
	}{
		{name: "fewer than N", available: 2, count: 5, want: 2},
		{name: "exactly N", available: 5, count: 5, want: 5},
		{name: "more than N", available: 9, count: 5, want: 5},
		{name: "default N", available: 9, count: 0, want: defaultFallbackCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fetched []domain.Post
			for i := 0; i < tt.available; i++ {
				fetched = append(fetched, post("A", string(rune('a'+i)), hoursAgo(100+i)))
			}
			results := []domain.SourceResult{{Status: domain.SourceOK, Fetched: fetched}}

			digest := Aggregate(results, nil, FallbackPolicy{Count: tt.count}, testNow)
			assert.True(t, digest.IsFallback)
			assert.Len(t, digest.Posts, tt.want)
		})
	}
}

func TestAggregateFallbackFromCache(t *testing.T) {
	t.Parallel()

	results := []domain.SourceResult{
		{Source: domain.Source{Name: "A"}, Status: domain.SourceSkipped},
		{Source: domain.Source{Name: "B"}, Status: domain.SourceSkipped},
	}
	cached := []domain.Post{
		post("A", "older", hoursAgo(90)),
		post("B", "newer", hoursAgo(80)),
	}

	digest := Aggregate(results, cached, FallbackPolicy{Count: 5}, testNow)

	assert.True(t, digest.IsFallback)
	assert.Equal(t, []string{"newer", "older"}, links(digest.Posts))
	assert.Equal(t, "older", cached[0].Link, "cache slice not reordered")
}

func TestAggregateFallbackMaxAge(t *testing.T) {
	t.Parallel()

	results := []domain.SourceResult{{Status: domain.SourceOK, Fetched: []domain.Post{
		post("A", "recent", hoursAgo(60)),
		post("A", "ancient", hoursAgo(24*40)),
		post("A", "undated", nil),
	}}}

	digest := Aggregate(results, nil, FallbackPolicy{Count: 5, MaxAge: 30 * 24 * time.Hour}, testNow)
	assert.Equal(t, []string{"recent"}, links(digest.Posts))

	stale := []domain.SourceResult{{Status: domain.SourceOK, Fetched: []domain.Post{post("A", "ancient", hoursAgo(24*40))}}}
	empty := Aggregate(stale, nil, FallbackPolicy{Count: 5, MaxAge: 24 * time.Hour}, testNow)
	assert.True(t, empty.Empty())
	assert.Contains(t, empty.EmptyReason, "fallback age")
}

func TestAggregateEmptyWithReason(t *testing.T) {
	t.Parallel()

	results := []domain.SourceResult{
		{Source: domain.Source{Name: "A"}, Status: domain.SourceSkipped},
		{Source: domain.Source{Name: "B"}, Status: domain.SourceSkipped},
	}

	digest := Aggregate(results, nil, FallbackPolicy{}, testNow)

	require.True(t, digest.Empty())
	assert.True(t, digest.IsFallback)
	assert.Contains(t, digest.EmptyReason, "all 2 sources failed")

	quiet := Aggregate([]domain.SourceResult{{Status: domain.SourceOK}}, nil, FallbackPolicy{}, testNow)
	assert.Contains(t, quiet.EmptyReason, "no cached posts")
}
