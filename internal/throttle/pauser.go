package throttle

import (
	"context"
	"time"
)

// Pauser carries out the pause a Decision asks for.
type Pauser interface {
	Pause(ctx context.Context, d time.Duration) error
}

// Sleeper blocks for the full pause or until ctx is done.
type Sleeper struct{}

func (Sleeper) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DryRun never blocks.
type DryRun struct{}

func (DryRun) Pause(context.Context, time.Duration) error { return nil }

// NewPauser returns DryRun when dryRun is set and Sleeper otherwise.
func NewPauser(dryRun bool) Pauser {
	if dryRun {
		return DryRun{}
	}
	return Sleeper{}
}
