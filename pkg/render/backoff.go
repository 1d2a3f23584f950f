package render

import (
	"context"
	"errors"
	"time"
)

// deliverStatus is the classified outcome of one deliver attempt after the
// retry policy has run its course.
type deliverStatus int

const (
	deliverOK deliverStatus = iota
	deliverSkipped
	deliverAborted
)

// backoffController wraps a single deliver-or-edit operation and absorbs
// transient transport failures. It never fails a whole stream: rate limits
// and timeouts are retried in place, an identical-content edit counts as
// success, and any other transport error skips just this render attempt.
// The accumulator it grows feeds back into the cadence cutoff so a flaky
// transport is rendered to less often.
type backoffController struct {
	step         int
	timeoutDelay time.Duration
	accum        int
}

func newBackoffController(step int, timeoutDelay time.Duration) *backoffController {
	return &backoffController{step: step, timeoutDelay: timeoutDelay}
}

// deliver runs attempt under the retry policy. The same render is retried
// after rate-limit and timeout sleeps; the stream position never advances
// while waiting. lastErr carries the classified error for skipped attempts.
func (b *backoffController) deliver(ctx context.Context, attempt func(ctx context.Context) error) (deliverStatus, error) {
	for {
		err := attempt(ctx)
		if err == nil || errors.Is(err, ErrUnmodified) {
			return deliverOK, nil
		}

		var rl *RateLimitedError
		switch {
		case errors.As(err, &rl):
			b.accum += b.step
			if serr := sleepCtx(ctx, rl.RetryAfter); serr != nil {
				return deliverAborted, serr
			}
		case errors.Is(err, ErrTimeout):
			b.accum += b.step
			if serr := sleepCtx(ctx, b.timeoutDelay); serr != nil {
				return deliverAborted, serr
			}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return deliverAborted, err
		default:
			b.accum += b.step
			return deliverSkipped, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
