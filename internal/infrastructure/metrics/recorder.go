package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"BlogDigest/internal/domain"
	"BlogDigest/internal/ports"
)

const namespace = "blogdigest"

// Recorder keeps run metrics in its own registry and optionally pushes them to a
// Pushgateway.
type Recorder struct {
	registry *prometheus.Registry
	pushURL  string
	job      string

	runs          *prometheus.CounterVec
	lastRun       prometheus.Gauge
	lastSuccess   prometheus.Gauge
	duration      prometheus.Gauge
	sources       *prometheus.GaugeVec
	postsIncluded prometheus.Gauge
	fallback      prometheus.Gauge
	recipients    *prometheus.GaugeVec
}

var _ ports.MetricsRecorder = (*Recorder)(nil)

// NewRecorder registers the run metrics. An empty pushURL disables pushing.
func NewRecorder(pushURL, job string) *Recorder {
	if job == "" {
		job = namespace
	}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		pushURL:  pushURL,
		job:      job,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Finish time of the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Finish time of the last delivered or partial run.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last run.",
		}),
		sources: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sources",
			Help:      "Sources of the last run by state.",
		}, []string{"state"}),
		postsIncluded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "posts_included",
			Help:      "Posts in the last digest.",
		}),
		fallback: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fallback",
			Help:      "1 when the last digest used the fallback selection.",
		}),
		recipients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recipients",
			Help:      "Recipients of the last run by delivery result.",
		}, []string{"result"}),
	}

	r.registry.MustRegister(
		r.runs, r.lastRun, r.lastSuccess, r.duration,
		r.sources, r.postsIncluded, r.fallback, r.recipients,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRun records the report and pushes it when a gateway is configured.
func (r *Recorder) ObserveRun(ctx context.Context, report domain.RunReport) error {
	r.runs.WithLabelValues(string(report.Outcome)).Inc()
	r.lastRun.Set(float64(report.FinishedAt.Unix()))
	if report.Outcome.Succeeded() {
		r.lastSuccess.Set(float64(report.FinishedAt.Unix()))
	}
	r.duration.Set(report.Duration().Seconds())

	r.sources.WithLabelValues("attempted").Set(float64(report.SourcesAttempted))
	r.sources.WithLabelValues("succeeded").Set(float64(report.SourcesSucceeded))
	r.sources.WithLabelValues("skipped").Set(float64(len(report.SkippedSources)))
	r.postsIncluded.Set(float64(report.PostsIncluded))
	if report.IsFallback {
		r.fallback.Set(1)
	} else {
		r.fallback.Set(0)
	}
	r.recipients.WithLabelValues("delivered").Set(float64(report.RecipientsDelivered))
	r.recipients.WithLabelValues("failed").Set(float64(report.RecipientsFailed))

	if r.pushURL == "" {
		return nil
	}
	if err := push.New(r.pushURL, r.job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
