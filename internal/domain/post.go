package domain

import "time"

// Source is a configured blog identified by name and base URL.
type Source struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	URL  string `json:"url" yaml:"url" validate:"required,url"`
}

// DiscoveryStrategy names the resolver step that produced a candidate feed.
type DiscoveryStrategy string

const (
	StrategyDirect    DiscoveryStrategy = "direct"
	StrategyWellKnown DiscoveryStrategy = "well-known"
	StrategyHTMLLink  DiscoveryStrategy = "html-link"
)

// CandidateFeedURL is a URL believed to serve a feed, ranked by confidence.
type CandidateFeedURL struct {
	URL        string
	Strategy   DiscoveryStrategy
	Confidence int
}

// Post is a normalized feed entry. Link is the deduplication key.
type Post struct {
	SourceName  string
	Title       string
	Link        string
	PublishedAt *time.Time
	SummaryRaw  *string
}

// RunWindow is the novelty cutoff of a single run.
type RunWindow struct {
	Since time.Time
}

// Contains reports whether a post is novel for the window.
// Posts without a publish time are treated as novel.
func (w RunWindow) Contains(p Post) bool {
	if p.PublishedAt == nil {
		return true
	}
	return !p.PublishedAt.Before(w.Since)
}

// SourceStatus tells whether a source contributed data this run.
type SourceStatus string

const (
	SourceOK      SourceStatus = "ok"
	SourceSkipped SourceStatus = "skipped"
)

// SourceResult is everything one source produced during collection.
type SourceResult struct {
	Source     Source
	Candidates []CandidateFeedURL
	// Fetched holds every normalized post, Novel the subset inside the run window.
	Fetched []Post
	Novel   []Post
	Status  SourceStatus
	Reason  string
}
