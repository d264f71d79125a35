package usecase

import "BlogDigest/internal/domain"

// FilterNovel keeps posts inside the run window, preserving input order.
// A post without a publish time is kept.
func FilterNovel(posts []domain.Post, window domain.RunWindow) []domain.Post {
	novel := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		if window.Contains(p) {
			novel = append(novel, p)
		}
	}
	return novel
}
