package domain

import "time"

// Digest is the ordered set of posts produced for a single run.
type Digest struct {
	Posts       []Post
	IsFallback  bool
	GeneratedAt time.Time
	// EmptyReason is set only when no post at all could be selected.
	EmptyReason string
}

// Empty reports whether the digest carries no posts.
func (d Digest) Empty() bool {
	return len(d.Posts) == 0
}

// Summary is a short text for one post plus its attribution.
type Summary struct {
	Title      string `json:"title"`
	Link       string `json:"link"`
	SourceName string `json:"source_name"`
	Text       string `json:"summary"`
}

// Recipient is a single delivery target.
type Recipient struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email" validate:"required,email"`
}

// DeliveryPayload is handed to the delivery capability and not retained.
type DeliveryPayload struct {
	Subject    string
	Body       string
	TextBody   string
	Recipients []Recipient
}

// RecipientResult records the delivery attempt for one recipient.
type RecipientResult struct {
	Recipient Recipient
	Err       error
}

// DeliveryReport aggregates per-recipient results.
type DeliveryReport struct {
	Results []RecipientResult
}

// Delivered counts recipients that accepted the message.
func (r DeliveryReport) Delivered() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts recipients whose delivery failed.
func (r DeliveryReport) Failed() int {
	return len(r.Results) - r.Delivered()
}

// Edition is a digest ready for rendering. Summaries is nil when summarization
// did not complete, in which case renderers fall back to the raw post text.
type Edition struct {
	RunID          string
	Digest         Digest
	Summaries      []Summary
	SkippedSources []string
}
