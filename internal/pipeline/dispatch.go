package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of in-flight remote calls per stage.
const DefaultConcurrency = 5

// Unit is the work performed for one element of a dispatch.
type Unit[T any] func(ctx context.Context, index int, item T) error

// Dispatch runs unit once for every element of items with at most limit
// running at a time. A unit's error or panic is returned at its index and
// never cancels siblings. onDone, when non-nil, is called after each unit
// finishes with the number of finished units so far; calls are serialized.
func Dispatch[T any](ctx context.Context, limit int, items []T, unit Unit[T], onDone func(done, total int)) []error {
	errs := make([]error, len(items))
	if len(items) == 0 {
		return errs
	}
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var (
		group errgroup.Group
		mu    sync.Mutex
		done  int
	)
	group.SetLimit(limit)
	for i := range items {
		group.Go(func() error {
			errs[i] = runUnit(ctx, i, items[i], unit)
			if onDone != nil {
				mu.Lock()
				done++
				onDone(done, len(items))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()
	return errs
}

func runUnit[T any](ctx context.Context, index int, item T, unit Unit[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit %d panicked: %v\n%s", index, r, debug.Stack())
		}
	}()
	return unit(ctx, index, item)
}
