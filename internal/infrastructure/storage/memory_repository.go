package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"BlogDigest/internal/domain"
	"BlogDigest/internal/ports"
)

// MemoryRepository keeps state for the lifetime of the process only.
type MemoryRepository struct {
	mu    sync.Mutex
	runs  []domain.RunReport
	posts map[string]cachedPost
	now   func() time.Time
}

type cachedPost struct {
	post   domain.Post
	seenAt time.Time
}

var _ ports.StateStore = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{posts: make(map[string]cachedPost), now: time.Now}
}

func (r *MemoryRepository) LastSuccessfulRun(_ context.Context) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		last  time.Time
		found bool
	)
	for _, run := range r.runs {
		if run.Outcome.Succeeded() && !run.DryRun && (!found || run.StartedAt.After(last)) {
			last, found = run.StartedAt, true
		}
	}
	return last, found, nil
}

func (r *MemoryRepository) RecordRun(_ context.Context, report domain.RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs = append(r.runs, report)
	return nil
}

func (r *MemoryRepository) RememberPosts(_ context.Context, posts []domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seenAt := r.now()
	for _, p := range posts {
		r.posts[p.Link] = cachedPost{post: p, seenAt: seenAt}
	}
	return nil
}

func (r *MemoryRepository) RecentPosts(_ context.Context, limit int) ([]domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cached := make([]cachedPost, 0, len(r.posts))
	for _, c := range r.posts {
		cached = append(cached, c)
	}
	sort.SliceStable(cached, func(i, j int) bool {
		a, b := cached[i].post.PublishedAt, cached[j].post.PublishedAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		case !cached[i].seenAt.Equal(cached[j].seenAt):
			return cached[i].seenAt.After(cached[j].seenAt)
		}
		return cached[i].post.Link < cached[j].post.Link
	})

	if limit > 0 && len(cached) > limit {
		cached = cached[:limit]
	}
	out := make([]domain.Post, 0, len(cached))
	for _, c := range cached {
		out = append(out, c.post)
	}
	return out, nil
}
