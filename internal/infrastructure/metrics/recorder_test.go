package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BlogDigest/internal/domain"
)

func sampleReport() domain.RunReport {
	started := time.Date(2025, time.November, 8, 6, 0, 0, 0, time.UTC)
	return domain.RunReport{
		StartedAt:           started,
		FinishedAt:          started.Add(90 * time.Second),
		Outcome:             domain.OutcomePartial,
		SourcesAttempted:    3,
		SourcesSucceeded:    2,
		SkippedSources:      []string{"Initech"},
		PostsIncluded:       5,
		IsFallback:          true,
		RecipientsDelivered: 2,
	}
}

func TestObserveRun(t *testing.T) {
	t.Parallel()

	r := NewRecorder("", "")
	require.NoError(t, r.ObserveRun(context.Background(), sampleReport()))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("partial")))
	assert.Equal(t, 90.0, testutil.ToFloat64(r.duration))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sources.WithLabelValues("skipped")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.postsIncluded))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fallback))
	assert.Equal(t, float64(sampleReport().FinishedAt.Unix()), testutil.ToFloat64(r.lastSuccess))

	failed := sampleReport()
	failed.Outcome = domain.OutcomeFailed
	failed.FinishedAt = failed.FinishedAt.Add(time.Hour)
	require.NoError(t, r.ObserveRun(context.Background(), failed))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("failed")))
	assert.Equal(t, float64(sampleReport().FinishedAt.Unix()), testutil.ToFloat64(r.lastSuccess), "failed runs keep the last success")
}

func TestObserveRunPushes(t *testing.T) {
	t.Parallel()

	bodies := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/metrics/job/digest", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		bodies <- string(raw)
	}))
	defer srv.Close()

	r := NewRecorder(srv.URL, "digest")
	require.NoError(t, r.ObserveRun(context.Background(), sampleReport()))

	body := <-bodies
	assert.NotEmpty(t, body)
}

func TestObserveRunPushError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewRecorder(srv.URL, "digest").ObserveRun(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push metrics")
}
