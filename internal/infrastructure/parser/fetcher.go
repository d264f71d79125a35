package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"BlogDigest/internal/domain"
	"BlogDigest/internal/feed"
	"BlogDigest/internal/infrastructure/web"
	"BlogDigest/internal/ports"
)

// Fetcher downloads candidate feeds and normalizes their entries.
type Fetcher struct {
	client   *web.Client
	registry *feed.Registry
	timeout  time.Duration
	maxPosts int
	logger   *slog.Logger
}

var _ ports.FeedFetcher = (*Fetcher)(nil)

// NewFetcher wires the registry of format parsers; maxPosts <= 0 keeps every entry.
func NewFetcher(client *web.Client, registry *feed.Registry, timeout time.Duration, maxPosts int, logger *slog.Logger) *Fetcher {
	if registry == nil {
		registry = feed.NewRegistry(NewRSSParser(), NewAtomParser())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:   client,
		registry: registry,
		timeout:  timeout,
		maxPosts: maxPosts,
		logger:   logger,
	}
}

// Fetch tries candidates in order; the first one that yields entries wins.
func (f *Fetcher) Fetch(ctx context.Context, source domain.Source, candidates []domain.CandidateFeedURL) ([]domain.Post, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("source %s: %w", source.Name, domain.ErrDiscovery)
	}

	var errs []error
	for _, candidate := range candidates {
		posts, err := f.fetchCandidate(ctx, source, candidate)
		if err == nil {
			f.logger.Debug("feed parsed",
				"source", source.Name,
				"feed", candidate.URL,
				"strategy", candidate.Strategy,
				"posts", len(posts))
			return posts, nil
		}

		f.logger.Warn("feed candidate failed",
			"source", source.Name,
			"feed", candidate.URL,
			"strategy", candidate.Strategy,
			"error", err)
		errs = append(errs, err)

		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("source %s: %w: %w", source.Name, domain.ErrSourceExhausted, errors.Join(errs...))
}

func (f *Fetcher) fetchCandidate(ctx context.Context, source domain.Source, candidate domain.CandidateFeedURL) ([]domain.Post, error) {
	resp, err := f.client.Get(ctx, candidate.URL, f.timeout)
	if err != nil {
		return nil, &domain.FetchError{URL: candidate.URL, Err: err}
	}
	if !resp.OK() {
		return nil, &domain.FetchError{URL: candidate.URL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	posts, err := f.registry.Parse(feed.Request{
		SourceName: source.Name,
		FeedURL:    resp.FinalURL,
		Body:       resp.Body,
	})
	if err != nil {
		return nil, &domain.FetchError{URL: candidate.URL, Err: err}
	}
	if len(posts) == 0 {
		return nil, &domain.FetchError{URL: candidate.URL, Err: errors.New("feed has no linkable entries")}
	}

	if f.maxPosts > 0 && len(posts) > f.maxPosts {
		posts = posts[:f.maxPosts]
	}
	return posts, nil
}
