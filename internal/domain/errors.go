package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDiscovery means a source yielded no candidate feed.
	ErrDiscovery = errors.New("no feed discovered")
	// ErrFetch wraps a network or parse failure on one candidate.
	ErrFetch = errors.New("feed fetch failed")
	// ErrSourceExhausted means every candidate of a source failed.
	ErrSourceExhausted = errors.New("all feed candidates failed")

	ErrSummarization = errors.New("summarization failed")

	// ErrDeliveryAuth matches both authentication and authorization failures.
	ErrDeliveryAuth           = errors.New("delivery auth failure")
	ErrDeliveryAuthentication = errors.New("delivery credential rejected")
	ErrDeliveryAuthorization  = errors.New("delivery sender not authorized")
	ErrDeliveryTransient      = errors.New("delivery transient failure")
	ErrDeliveryRejected       = errors.New("delivery rejected")

	// ErrNoPosts means neither novel nor fallback posts exist.
	ErrNoPosts = errors.New("no posts available")
)

// FetchError ties a fetch failure to the candidate URL that caused it.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetch, e.Err}
}

// SummarizationError keeps the digest posts so the run can be retried.
type SummarizationError struct {
	Posts []Post
	Err   error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarize %d posts: %v", len(e.Posts), e.Err)
}

func (e *SummarizationError) Unwrap() []error {
	return []error{ErrSummarization, e.Err}
}

// DeliveryKind classifies delivery failures.
type DeliveryKind string

const (
	DeliveryAuthentication DeliveryKind = "authentication"
	DeliveryAuthorization  DeliveryKind = "authorization"
	DeliveryTransient      DeliveryKind = "transient"
	DeliveryRejected       DeliveryKind = "rejected"
)

// DeliveryError is returned by the delivery capability.
type DeliveryError struct {
	Kind       DeliveryKind
	Recipient  string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("delivery %s failure", e.Kind)
	if e.Recipient != "" {
		msg += " for " + e.Recipient
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Is maps the kind onto the delivery sentinels.
func (e *DeliveryError) Is(target error) bool {
	switch target {
	case ErrDeliveryAuth:
		return e.Kind == DeliveryAuthentication || e.Kind == DeliveryAuthorization
	case ErrDeliveryAuthentication:
		return e.Kind == DeliveryAuthentication
	case ErrDeliveryAuthorization:
		return e.Kind == DeliveryAuthorization
	case ErrDeliveryTransient:
		return e.Kind == DeliveryTransient
	case ErrDeliveryRejected:
		return e.Kind == DeliveryRejected
	}
	return false
}
