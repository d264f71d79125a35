package llm

import (
	"context"

	"BlogDigest/internal/domain"
	"BlogDigest/internal/infrastructure/render"
	"BlogDigest/internal/ports"
)

// ExcerptSummarizer summarizes locally by trimming the feed description.
type ExcerptSummarizer struct {
	sanitizer *render.Sanitizer
	limit     int
}

var _ ports.Summarizer = (*ExcerptSummarizer)(nil)

func NewExcerptSummarizer(limit int) *ExcerptSummarizer {
	if limit <= 0 {
		limit = 300
	}
	return &ExcerptSummarizer{sanitizer: render.NewSanitizer(), limit: limit}
}

func (s *ExcerptSummarizer) Summarize(ctx context.Context, posts []domain.Post) ([]domain.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summaries := make([]domain.Summary, 0, len(posts))
	for _, p := range posts {
		text := "No description provided."
		if p.SummaryRaw != nil {
			if excerpt := s.sanitizer.Excerpt(*p.SummaryRaw, s.limit); excerpt != "" {
				text = excerpt
			}
		}
		summaries = append(summaries, domain.Summary{
			Title:      p.Title,
			Link:       p.Link,
			SourceName: p.SourceName,
			Text:       text,
		})
	}
	return summaries, nil
}
