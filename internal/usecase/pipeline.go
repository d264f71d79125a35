package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"BlogDigest/internal/domain"
	"BlogDigest/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.PostSource
	Summarizer ports.Summarizer
	Mailer     ports.Mailer
	Renderer   ports.Renderer
	Artifacts  ports.ArtifactWriter
	Store      ports.StateStore
	Alerter    ports.Alerter
	Metrics    ports.MetricsRecorder
	Logger     *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// PipelineConfig carries run-level settings.
type PipelineConfig struct {
	CollectTimeout time.Duration
	Fallback       FallbackPolicy
	// Topics restricts novel, fallback and cached posts to matching ones.
	Topics     []string
	Subject    string
	Recipients []domain.Recipient
	// DryRun renders and persists the digest but skips delivery.
	DryRun bool
}

// Pipeline sequences collection, analysis, summarization and delivery as a
// finite state machine. Every run ends in DONE or FAILED with a report.
type Pipeline struct {
	deps PipelineDeps
	cfg  PipelineConfig
	log  *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps, cfg PipelineConfig) *Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{deps: deps, cfg: cfg, log: log}
}

// run is the mutable state of one execution; it never outlives Run.
type run struct {
	sources []domain.Source
	window  domain.RunWindow
	results []domain.SourceResult
	digest  domain.Digest
	edition domain.Edition
	report  domain.RunReport
	log     *slog.Logger
}

func (r *run) fail(state domain.RunState, reason string, err error) domain.RunState {
	r.report.FailedIn = state
	r.report.Reason = reason
	r.report.Err = err
	return domain.StateFailed
}

// Run executes one pipeline pass for the given sources and novelty window.
func (p *Pipeline) Run(ctx context.Context, sources []domain.Source, window domain.RunWindow) domain.RunReport {
	r := &run{
		sources: sources,
		window:  window,
		report: domain.RunReport{
			RunID:            uuid.NewString(),
			StartedAt:        p.deps.Now(),
			Window:           window,
			SourcesAttempted: len(sources),
			DryRun:           p.cfg.DryRun,
		},
	}
	r.log = p.log.With("run_id", r.report.RunID)
	r.log.Info("run started", "sources", len(sources), "since", window.Since.Format(time.RFC3339))

	state := domain.StateCollecting
	for !state.Terminal() {
		r.report.State = state
		r.log.Debug("entering state", "state", state)
		state = p.step(ctx, state, r)
	}
	r.report.State = state

	p.finish(ctx, r)
	return r.report
}

func (p *Pipeline) step(ctx context.Context, state domain.RunState, r *run) domain.RunState {
	switch state {
	case domain.StateCollecting:
		return p.collect(ctx, r)
	case domain.StateAnalyzing:
		return p.analyze(ctx, r)
	case domain.StateSummarizing:
		return p.summarize(ctx, r)
	case domain.StateDelivering:
		return p.deliver(ctx, r)
	default:
		return r.fail(state, fmt.Sprintf("unknown state %q", state), nil)
	}
}

func (p *Pipeline) collect(ctx context.Context, r *run) domain.RunState {
	if p.deps.Source == nil {
		return r.fail(domain.StateCollecting, "no post source configured", nil)
	}

	collectCtx := ctx
	if p.cfg.CollectTimeout > 0 {
		var cancel context.CancelFunc
		collectCtx, cancel = context.WithTimeout(ctx, p.cfg.CollectTimeout)
		defer cancel()
	}

	r.results = p.deps.Source.Collect(collectCtx, r.sources)

	var fetched []domain.Post
	for i := range r.results {
		res := &r.results[i]
		res.Novel = FilterNovel(res.Fetched, r.window)
		fetched = append(fetched, res.Fetched...)

		if res.Status == domain.SourceOK {
			r.report.SourcesSucceeded++
			r.log.Info("source collected", "source", res.Source.Name, "fetched", len(res.Fetched), "novel", len(res.Novel))
			continue
		}
		r.report.SkippedSources = append(r.report.SkippedSources, res.Source.Name)
		r.log.Warn("source skipped", "source", res.Source.Name, "reason", res.Reason)
	}

	if p.deps.Store != nil && len(fetched) > 0 {
		if err := p.deps.Store.RememberPosts(ctx, fetched); err != nil {
			r.log.Warn("cannot refresh post cache", "error", err)
		}
	}

	return domain.StateAnalyzing
}

func (p *Pipeline) analyze(ctx context.Context, r *run) domain.RunState {
	if len(p.cfg.Topics) > 0 {
		for i := range r.results {
			res := &r.results[i]
			res.Fetched = FilterTopics(res.Fetched, p.cfg.Topics)
			res.Novel = FilterTopics(res.Novel, p.cfg.Topics)
		}
	}

	var cached []domain.Post
	if !anyFetched(r.results) && p.deps.Store != nil {
		limit := p.cfg.Fallback.Count
		if limit <= 0 {
			limit = defaultFallbackCount
		}
		var err error
		cached, err = p.deps.Store.RecentPosts(ctx, limit)
		if err != nil {
			r.log.Warn("cannot load cached posts", "error", err)
		}
		cached = FilterTopics(cached, p.cfg.Topics)
	}

	r.digest = Aggregate(r.results, cached, p.cfg.Fallback, p.deps.Now())
	r.report.IsFallback = r.digest.IsFallback
	r.report.PostsIncluded = len(r.digest.Posts)
	r.edition = domain.Edition{
		RunID:          r.report.RunID,
		Digest:         r.digest,
		SkippedSources: r.report.SkippedSources,
	}

	if r.digest.Empty() {
		reason := r.digest.EmptyReason
		if len(p.cfg.Topics) > 0 {
			reason = fmt.Sprintf("no post matches topics %s: %s", strings.Join(p.cfg.Topics, ", "), reason)
		}
		return r.fail(domain.StateAnalyzing, reason, domain.ErrNoPosts)
	}

	r.log.Info("digest assembled", "posts", len(r.digest.Posts), "fallback", r.digest.IsFallback)
	return domain.StateSummarizing
}

func (p *Pipeline) summarize(ctx context.Context, r *run) domain.RunState {
	if p.deps.Summarizer == nil {
		return r.fail(domain.StateSummarizing, "no summarizer configured", domain.ErrSummarization)
	}

	summaries, err := p.deps.Summarizer.Summarize(ctx, r.digest.Posts)
	if err == nil {
		summaries, err = attribute(r.digest.Posts, summaries)
	}
	if err != nil {
		posts := make([]domain.Post, len(r.digest.Posts))
		copy(posts, r.digest.Posts)
		serr := &domain.SummarizationError{Posts: posts, Err: err}

		// Keep the collected posts on disk so the run can be retried by hand.
		r.report.ArtifactPath = p.persist(ctx, r)
		return r.fail(domain.StateSummarizing, "summarization failed: "+err.Error(), serr)
	}

	r.edition.Summaries = summaries
	return domain.StateDelivering
}

func (p *Pipeline) deliver(ctx context.Context, r *run) domain.RunState {
	r.report.ArtifactPath = p.persist(ctx, r)

	if p.cfg.DryRun {
		r.log.Info("dry run, delivery skipped")
		return domain.StateDone
	}
	if p.deps.Mailer == nil {
		return r.fail(domain.StateDelivering, "no mailer configured", nil)
	}
	if len(p.cfg.Recipients) == 0 {
		return r.fail(domain.StateDelivering, "a recipient list is required for delivery", nil)
	}
	if p.deps.Renderer == nil {
		return r.fail(domain.StateDelivering, "no renderer configured", nil)
	}

	html, err := p.deps.Renderer.HTML(r.edition)
	if err != nil {
		return r.fail(domain.StateDelivering, "render email", err)
	}
	text, err := p.deps.Renderer.Text(r.edition)
	if err != nil {
		return r.fail(domain.StateDelivering, "render email", err)
	}

	payload := domain.DeliveryPayload{
		Subject:    p.subject(r),
		Body:       html,
		TextBody:   text,
		Recipients: append([]domain.Recipient(nil), p.cfg.Recipients...),
	}

	report, err := p.deps.Mailer.Deliver(ctx, payload)
	r.report.RecipientsDelivered = report.Delivered()
	r.report.RecipientsFailed = report.Failed()
	for _, res := range report.Results {
		if res.Err != nil {
			r.log.Warn("recipient delivery failed", "recipient", res.Recipient.Email, "error", res.Err)
		}
	}

	if err != nil {
		if errors.Is(err, domain.ErrDeliveryAuth) {
			p.alert(ctx, r, fmt.Sprintf("digest delivery rejected credentials or sender (run %s): %v", r.report.RunID, err))
			return r.fail(domain.StateDelivering, "delivery auth failure: "+err.Error(), err)
		}
		return r.fail(domain.StateDelivering, "delivery failed: "+err.Error(), err)
	}

	if report.Delivered() == 0 {
		errs := make([]error, 0, len(report.Results))
		for _, res := range report.Results {
			errs = append(errs, res.Err)
		}
		err := errors.Join(errs...)
		if err == nil {
			err = domain.ErrDeliveryRejected
		}
		return r.fail(domain.StateDelivering, "delivery failed for every recipient", err)
	}

	return domain.StateDone
}

// persist writes the Markdown artifact; failures are logged and do not stop the run.
// A path returned with an error still names a written artifact.
func (p *Pipeline) persist(ctx context.Context, r *run) string {
	if p.deps.Renderer == nil || p.deps.Artifacts == nil {
		return ""
	}
	markdown, err := p.deps.Renderer.Markdown(r.edition)
	if err != nil {
		r.log.Error("cannot render digest artifact", "error", err)
		return ""
	}
	path, err := p.deps.Artifacts.Write(ctx, markdown, r.digest.GeneratedAt)
	switch {
	case err != nil && path == "":
		r.log.Error("cannot persist digest artifact", "error", err)
		return ""
	case err != nil:
		r.log.Warn("digest artifact written with errors", "path", path, "error", err)
	default:
		r.log.Info("digest artifact written", "path", path)
	}
	return path
}

func (p *Pipeline) subject(r *run) string {
	if s := strings.TrimSpace(p.cfg.Subject); s != "" {
		return s
	}
	subject := "Your Daily Blog Summaries - " + r.digest.GeneratedAt.Format("January 2, 2006")
	if r.digest.IsFallback {
		subject += " (recent highlights)"
	}
	return subject
}

func (p *Pipeline) alert(ctx context.Context, r *run, message string) {
	if p.deps.Alerter == nil {
		r.log.Error("operator attention required", "message", message)
		return
	}
	if err := p.deps.Alerter.Alert(ctx, message); err != nil {
		r.log.Error("cannot alert operator", "error", err, "message", message)
	}
}

func (p *Pipeline) finish(ctx context.Context, r *run) {
	rep := &r.report
	rep.FinishedAt = p.deps.Now()

	switch {
	case rep.State == domain.StateFailed:
		rep.Outcome = domain.OutcomeFailed
	case len(rep.SkippedSources) > 0 || rep.RecipientsFailed > 0:
		rep.Outcome = domain.OutcomePartial
		rep.Reason = partialReason(rep)
	default:
		rep.Outcome = domain.OutcomeDelivered
		rep.Reason = fmt.Sprintf("digest with %d posts delivered to %d recipients", rep.PostsIncluded, rep.RecipientsDelivered)
		if p.cfg.DryRun {
			rep.Reason = fmt.Sprintf("dry run: digest with %d posts rendered, delivery skipped", rep.PostsIncluded)
		}
	}

	if p.deps.Store != nil {
		if err := p.deps.Store.RecordRun(ctx, *rep); err != nil {
			r.log.Warn("cannot record run", "error", err)
		}
	}
	if p.deps.Metrics != nil {
		if err := p.deps.Metrics.ObserveRun(ctx, *rep); err != nil {
			r.log.Warn("cannot publish run metrics", "error", err)
		}
	}

	attrs := []any{
		"outcome", rep.Outcome,
		"reason", rep.Reason,
		"sources_attempted", rep.SourcesAttempted,
		"sources_succeeded", rep.SourcesSucceeded,
		"posts", rep.PostsIncluded,
		"fallback", rep.IsFallback,
		"artifact", rep.ArtifactPath,
		"duration", rep.Duration(),
	}
	if rep.Outcome == domain.OutcomeFailed {
		r.log.Error("run failed", append(attrs, "failed_in", rep.FailedIn, "error", rep.Err)...)
		return
	}
	r.log.Info("run finished", attrs...)
}

func partialReason(rep *domain.RunReport) string {
	var parts []string
	if len(rep.SkippedSources) > 0 {
		parts = append(parts, "skipped sources: "+strings.Join(rep.SkippedSources, ", "))
	}
	if rep.RecipientsFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d of %d recipients failed", rep.RecipientsFailed, rep.RecipientsFailed+rep.RecipientsDelivered))
	}
	return strings.Join(parts, "; ")
}

// attribute checks that summaries line up with posts and restores the attribution triple.
func attribute(posts []domain.Post, summaries []domain.Summary) ([]domain.Summary, error) {
	if len(summaries) != len(posts) {
		return nil, fmt.Errorf("expected %d summaries, got %d", len(posts), len(summaries))
	}
	out := make([]domain.Summary, len(summaries))
	for i, s := range summaries {
		if s.Link != posts[i].Link {
			return nil, fmt.Errorf("summary %d is for %q, expected %q", i, s.Link, posts[i].Link)
		}
		out[i] = domain.Summary{
			Title:      posts[i].Title,
			Link:       posts[i].Link,
			SourceName: posts[i].SourceName,
			Text:       strings.TrimSpace(s.Text),
		}
	}
	return out, nil
}

func anyFetched(results []domain.SourceResult) bool {
	for _, r := range results {
		if len(r.Fetched) > 0 {
			return true
		}
	}
	return false
}
