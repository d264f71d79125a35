package ports

import (
	"context"
	"time"

	"BlogDigest/internal/domain"
)

// FeedResolver locates feed endpoints for a configured blog.
type FeedResolver interface {
	Resolve(ctx context.Context, source domain.Source) []domain.CandidateFeedURL
}

// FeedFetcher turns ranked candidates into normalized posts; first success wins.
type FeedFetcher interface {
	Fetch(ctx context.Context, source domain.Source, candidates []domain.CandidateFeedURL) ([]domain.Post, error)
}

// PostSource resolves and fetches every source; results keep declaration order.
type PostSource interface {
	Collect(ctx context.Context, sources []domain.Source) []domain.SourceResult
}

// Summarizer produces one summary per post, preserving order and identity.
type Summarizer interface {
	Summarize(ctx context.Context, posts []domain.Post) ([]domain.Summary, error)
}

// Mailer hands a rendered digest to the email delivery capability.
type Mailer interface {
	Deliver(ctx context.Context, payload domain.DeliveryPayload) (domain.DeliveryReport, error)
}

// ArtifactWriter persists the rendered digest for operator inspection.
type ArtifactWriter interface {
	Write(ctx context.Context, markdown string, generatedAt time.Time) (string, error)
}

// StateStore keeps run history and the last-known-good post cache.
type StateStore interface {
	LastSuccessfulRun(ctx context.Context) (time.Time, bool, error)
	RecordRun(ctx context.Context, report domain.RunReport) error
	RememberPosts(ctx context.Context, posts []domain.Post) error
	RecentPosts(ctx context.Context, limit int) ([]domain.Post, error)
}

// Alerter notifies an operator about failures that need a human.
type Alerter interface {
	Alert(ctx context.Context, message string) error
}

// MetricsRecorder publishes run-level telemetry.
type MetricsRecorder interface {
	ObserveRun(ctx context.Context, report domain.RunReport) error
}

// Renderer turns an edition into the artifact and email bodies.
type Renderer interface {
	Markdown(edition domain.Edition) (string, error)
	HTML(edition domain.Edition) (string, error)
	Text(edition domain.Edition) (string, error)
}
