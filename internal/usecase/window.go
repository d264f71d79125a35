package usecase

import (
	"context"
	"fmt"
	"time"

	"BlogDigest/internal/domain"
	"BlogDigest/internal/ports"
)

const defaultLookback = 48 * time.Hour

// WindowPolicy decides where the novelty window of a run starts.
type WindowPolicy struct {
	Lookback time.Duration
	// SinceLastRun starts the window at the last delivered or partial run,
	// falling back to Lookback when there is none.
	SinceLastRun bool
}

// ResolveWindow computes the run window. A non-nil override wins over the policy.
func ResolveWindow(ctx context.Context, store ports.StateStore, policy WindowPolicy, override *time.Time, now time.Time) (domain.RunWindow, error) {
	if override != nil {
		return domain.RunWindow{Since: *override}, nil
	}

	lookback := policy.Lookback
	if lookback <= 0 {
		lookback = defaultLookback
	}
	window := domain.RunWindow{Since: now.Add(-lookback)}

	if !policy.SinceLastRun || store == nil {
		return window, nil
	}

	last, ok, err := store.LastSuccessfulRun(ctx)
	if err != nil {
		return domain.RunWindow{}, fmt.Errorf("last successful run: %w", err)
	}
	if ok {
		window.Since = last
	}
	return window, nil
}
