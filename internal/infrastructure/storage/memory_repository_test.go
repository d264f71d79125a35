package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BlogDigest/internal/domain"
)

func TestMemoryRepositoryLastSuccessfulRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMemoryRepository()

	_, ok, err := repo.LastSuccessfulRun(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	base := time.Date(2025, time.November, 1, 6, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordRun(ctx, domain.RunReport{StartedAt: base, Outcome: domain.OutcomeDelivered}))
	require.NoError(t, repo.RecordRun(ctx, domain.RunReport{StartedAt: base.Add(24 * time.Hour), Outcome: domain.OutcomePartial}))
	require.NoError(t, repo.RecordRun(ctx, domain.RunReport{StartedAt: base.Add(48 * time.Hour), Outcome: domain.OutcomeFailed}))
	require.NoError(t, repo.RecordRun(ctx, domain.RunReport{StartedAt: base.Add(72 * time.Hour), Outcome: domain.OutcomeDelivered, DryRun: true}))

	got, ok, err := repo.LastSuccessfulRun(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, base.Add(24*time.Hour), got)
}

func TestMemoryRepositoryRecentPosts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMemoryRepository()

	older := time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	require.NoError(t, repo.RememberPosts(ctx, []domain.Post{
		{Link: "https://a/undated", Title: "undated"},
		{Link: "https://a/older", Title: "older", PublishedAt: &older},
		{Link: "https://a/newer", Title: "newer", PublishedAt: &newer},
	}))

	posts, err := repo.RecentPosts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "https://a/newer", posts[0].Link)
	assert.Equal(t, "https://a/older", posts[1].Link)

	all, err := repo.RecentPosts(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "https://a/undated", all[2].Link)
}
