// Package poll implements the fixed-interval wait loops used while a page
// settles.
package poll

import (
	"context"
	"time"
)

// Check reports whether the awaited condition holds
type Check func(ctx context.Context) (bool, error)

// Until runs check immediately and then again every interval while it returns
// false, or after backoff when it returns an error. onErr, if set, sees every
// check error. Until returns nil once the check holds and ctx.Err() when the
// context ends first.
func Until(ctx context.Context, interval, backoff time.Duration, check Check, onErr func(error)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, err := check(ctx)
		wait := interval
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if onErr != nil {
				onErr(err)
			}
			wait = backoff
		case ok:
			return nil
		}

		if err := Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Sleep pauses for d or until ctx ends, whichever comes first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
