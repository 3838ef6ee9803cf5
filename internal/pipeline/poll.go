package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// PollConfig bounds a poll loop.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
	Concurrency int
	// OnRound, when set, is called after every round with the round number
	// and the size of the remaining working set.
	OnRound func(round, remaining int)
}

// Probe checks one working-set member. It returns true once the member has
// settled (succeeded or failed) and should leave the working set.
type Probe[T any] func(ctx context.Context, item T) bool

var errPending = errors.New("working set not drained")

// Poll probes every member of working, round after round, until each member
// settles or MaxAttempts rounds have run, sleeping Interval between rounds.
// Members still unsettled afterwards are passed to onExhausted with the
// reason: nil when the attempts ran out, or the context error when ctx was
// canceled between rounds. The first round runs even when ctx is already
// done, and a round in progress always completes. Poll returns the number of
// rounds run.
func Poll[T any](ctx context.Context, cfg PollConfig, working []T, probe Probe[T], onExhausted func(item T, cause error)) int {
	if len(working) == 0 {
		return 0
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Millisecond
	}

	remaining := append([]T(nil), working...)
	roundCtx := context.WithoutCancel(ctx)
	loopCtx, stopLoop := context.WithCancel(roundCtx)
	defer stopLoop()
	var detach func() bool
	rounds := 0
	backoff := retry.WithMaxRetries(uint64(cfg.MaxAttempts-1), retry.NewConstant(cfg.Interval))

	err := retry.Do(loopCtx, backoff, func(context.Context) error {
		rounds++
		if rounds == 1 {
			// from here on ctx ends the sleep between rounds
			detach = context.AfterFunc(ctx, stopLoop)
		}
		settled := make([]bool, len(remaining))
		Dispatch(roundCtx, cfg.Concurrency, remaining, func(ctx context.Context, i int, item T) error {
			settled[i] = probe(ctx, item)
			return nil
		}, nil)

		next := remaining[:0]
		for i, item := range remaining {
			if !settled[i] {
				next = append(next, item)
			}
		}
		remaining = next
		if cfg.OnRound != nil {
			cfg.OnRound(rounds, len(remaining))
		}
		if len(remaining) == 0 {
			return nil
		}
		return retry.RetryableError(errPending)
	})
	if detach != nil {
		detach()
	}
	if err == nil || onExhausted == nil {
		return rounds
	}

	var cause error
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, errPending) {
		cause = ctxErr
	}
	for _, item := range remaining {
		onExhausted(item, cause)
	}
	return rounds
}
