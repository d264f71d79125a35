package parser

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"BlogDigest/internal/domain"
	"BlogDigest/internal/ports"
)

// StrategySource implements PostSource by resolving and fetching every source
// concurrently with a bounded number of workers.
type StrategySource struct {
	resolver    ports.FeedResolver
	fetcher     ports.FeedFetcher
	concurrency int
	logger      *slog.Logger
}

var _ ports.PostSource = (*StrategySource)(nil)

// NewStrategySource wires discovery and fetching; concurrency <= 0 means sequential.
func NewStrategySource(resolver ports.FeedResolver, fetcher ports.FeedFetcher, concurrency int, log *slog.Logger) *StrategySource {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &StrategySource{
		resolver:    resolver,
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      log,
	}
}

// Collect returns one result per source in declaration order. A source whose work
// is cut short by ctx is reported as skipped, never as an error.
func (s *StrategySource) Collect(ctx context.Context, sources []domain.Source) []domain.SourceResult {
	s.debug("collect sources", "sources", len(sources), "concurrency", s.concurrency)

	results := make([]domain.SourceResult, len(sources))
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	for i, src := range sources {
		g.Go(func() error {
			results[i] = s.collectOne(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	s.debug("collect done", "sources", len(sources))
	return results
}

func (s *StrategySource) collectOne(ctx context.Context, src domain.Source) domain.SourceResult {
	result := domain.SourceResult{Source: src, Status: domain.SourceSkipped}

	if err := ctx.Err(); err != nil {
		result.Reason = abandonReason(err)
		return result
	}

	result.Candidates = s.resolver.Resolve(ctx, src)
	if len(result.Candidates) == 0 {
		result.Reason = domain.ErrDiscovery.Error()
		if err := ctx.Err(); err != nil {
			result.Reason = abandonReason(err)
		}
		s.warn("source skipped", "source", src.Name, "reason", result.Reason)
		return result
	}

	posts, err := s.fetcher.Fetch(ctx, src, result.Candidates)
	if err != nil {
		result.Reason = domain.ErrSourceExhausted.Error()
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.Reason = abandonReason(ctxErr)
		}
		s.warn("source skipped", "source", src.Name, "reason", result.Reason, "error", err)
		return result
	}

	for i := range posts {
		if posts[i].SourceName == "" {
			posts[i].SourceName = src.Name
		}
	}
	result.Fetched = posts
	result.Status = domain.SourceOK
	s.debug("source produced posts", "source", src.Name, "count", len(posts))
	return result
}

func abandonReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "deadline exceeded"
	}
	return "cancelled"
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
