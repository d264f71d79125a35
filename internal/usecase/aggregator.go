package usecase

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"BlogDigest/internal/domain"
)

// FallbackPolicy selects recent posts when a run has nothing novel.
type FallbackPolicy struct {
	// Count is N, the maximum number of fallback posts.
	Count int
	// MaxAge bounds fallback posts by publish time; zero means count-bounded only.
	// Posts without a publish time are excluded when MaxAge is set.
	MaxAge time.Duration
}

const defaultFallbackCount = 5

// Aggregate merges per-source novel posts into one digest ordered by publish time
// (newest first, unknown last, source order then feed order on ties) with duplicate
// links collapsed. When nothing is novel it switches to the fallback policy: the most
// recent fetched posts, or the cached posts when no source returned anything.
func Aggregate(results []domain.SourceResult, cached []domain.Post, policy FallbackPolicy, now time.Time) domain.Digest {
	digest := domain.Digest{GeneratedAt: now}

	novel := orderPosts(lo.FlatMap(results, func(r domain.SourceResult, _ int) []domain.Post {
		return r.Novel
	}))
	if len(novel) > 0 {
		digest.Posts = novel
		return digest
	}

	digest.IsFallback = true
	if policy.Count <= 0 {
		policy.Count = defaultFallbackCount
	}

	pool := lo.FlatMap(results, func(r domain.SourceResult, _ int) []domain.Post {
		return r.Fetched
	})
	fromCache := len(pool) == 0
	if fromCache {
		pool = cached
	}

	selected := orderPosts(pool)
	if policy.MaxAge > 0 {
		cutoff := now.Add(-policy.MaxAge)
		selected = lo.Filter(selected, func(p domain.Post, _ int) bool {
			return p.PublishedAt != nil && !p.PublishedAt.Before(cutoff)
		})
	}
	if len(selected) > policy.Count {
		selected = selected[:policy.Count]
	}

	digest.Posts = selected
	if len(selected) == 0 {
		digest.EmptyReason = emptyReason(results, fromCache, policy)
	}
	return digest
}

// orderPosts returns a sorted, link-deduplicated copy; the input is not modified.
func orderPosts(posts []domain.Post) []domain.Post {
	ordered := make([]domain.Post, len(posts))
	copy(ordered, posts)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].PublishedAt, ordered[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	return lo.UniqBy(ordered, func(p domain.Post) string {
		return p.Link
	})
}

func emptyReason(results []domain.SourceResult, fromCache bool, policy FallbackPolicy) string {
	failed := lo.CountBy(results, func(r domain.SourceResult) bool {
		return r.Status != domain.SourceOK
	})
	switch {
	case fromCache && failed == len(results):
		return fmt.Sprintf("all %d sources failed and no cached posts exist", len(results))
	case fromCache:
		return "no source returned posts and no cached posts exist"
	default:
		return fmt.Sprintf("no fetched post is within the fallback age of %s", policy.MaxAge)
	}
}
