package domain

import "time"

// RunState enumerates pipeline milestones.
type RunState string

const (
	StateCollecting  RunState = "collecting"
	StateAnalyzing   RunState = "analyzing"
	StateSummarizing RunState = "summarizing"
	StateDelivering  RunState = "delivering"
	StateDone        RunState = "done"
	StateFailed      RunState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Outcome is the run-level result reported to operators.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomePartial   Outcome = "partial"
	OutcomeFailed    Outcome = "failed"
)

// Succeeded reports whether the run produced a delivered digest.
func (o Outcome) Succeeded() bool {
	return o == OutcomeDelivered || o == OutcomePartial
}

// RunReport is the final status of one pipeline execution.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Window     RunWindow

	Outcome Outcome
	State   RunState
	// FailedIn is the state the run was in when it failed.
	FailedIn RunState
	Reason   string
	Err      error

	SourcesAttempted    int
	SourcesSucceeded    int
	SkippedSources      []string
	PostsIncluded       int
	IsFallback          bool
	RecipientsDelivered int
	RecipientsFailed    int
	ArtifactPath        string
	// DryRun marks runs that skipped delivery; they do not advance the window.
	DryRun bool
}

// Duration is the wall time of the run.
func (r RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
