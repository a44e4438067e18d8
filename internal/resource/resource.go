// Package resource implements the cache-aware data loading used by every
// domain service: read the local store, decide whether a network refetch is
// needed, persist what the server returned, and fall back to cached data when
// the fetch fails. Callers receive an ordered tri-state signal of
// Loading -> Success | Error.
package resource

import (
	"context"
	"errors"
)

type Status int

const (
	StatusLoading Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	default:
		return "error"
	}
}

// Result is one emission of a load operation.
//
// Stale marks a Success that served cached data after a failed refetch.
// Fetched reports whether the network was actually hit, which callers use for
// sync metrics.
type Result[T any] struct {
	Status  Status
	Data    T
	Stale   bool
	Fetched bool
	Err     error
}

// Outcome summarizes a terminal Result for logging and metrics.
func (r Result[T]) Outcome() string {
	switch {
	case r.Status == StatusError:
		return "error"
	case r.Stale:
		return "fallback"
	case r.Fetched:
		return "fetched"
	default:
		return "fresh"
	}
}

// Options wires the three collaborators of a load plus the staleness policy.
//
// Query, Fetch and Save are required. ShouldFetch nil means the network is
// always consulted. IsEmpty nil disables the cached-data fallback: a failed
// fetch then always surfaces as an error rather than a fabricated success.
type Options[T any] struct {
	Query       func(ctx context.Context) (T, error)
	Fetch       func(ctx context.Context) (T, error)
	Save        func(ctx context.Context, data T) error
	ShouldFetch func(local T) bool
	IsEmpty     func(local T) bool
}

var errMisconfigured = errors.New("resource: Query, Fetch and Save are required")

// Run executes a single-shot load and emits results on the returned channel.
// The channel is closed after the terminal emission. Cancelling ctx stops the
// operation; no further emissions happen after that.
func Run[T any](ctx context.Context, opts Options[T]) <-chan Result[T] {
	out := make(chan Result[T], 3)
	go func() {
		defer close(out)
		run(ctx, opts, func(r Result[T]) bool {
			select {
			case out <- r:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return out
}

// Get runs the load to completion and returns the terminal result. It is the
// blocking variant used by services that do not stream state to a caller.
func Get[T any](ctx context.Context, opts Options[T]) Result[T] {
	var last Result[T]
	run(ctx, opts, func(r Result[T]) bool {
		last = r
		return ctx.Err() == nil
	})
	if ctx.Err() != nil && last.Status == StatusLoading {
		last = Result[T]{Status: StatusError, Err: ctx.Err()}
	}
	return last
}

func run[T any](ctx context.Context, opts Options[T], emit func(Result[T]) bool) {
	if opts.Query == nil || opts.Fetch == nil || opts.Save == nil {
		emit(Result[T]{Status: StatusError, Err: errMisconfigured})
		return
	}

	if !emit(Result[T]{Status: StatusLoading}) {
		return
	}

	local, err := opts.Query(ctx)
	if err != nil {
		emit(Result[T]{Status: StatusError, Err: err})
		return
	}

	if opts.ShouldFetch != nil && !opts.ShouldFetch(local) {
		emit(Result[T]{Status: StatusSuccess, Data: local})
		return
	}

	fetched, err := opts.Fetch(ctx)
	if err == nil {
		err = opts.Save(ctx, fetched)
	}
	if err != nil {
		// Availability over freshness: serve what we have, error only when
		// the cache has nothing to offer.
		if opts.IsEmpty != nil && !opts.IsEmpty(local) {
			emit(Result[T]{Status: StatusSuccess, Data: local, Stale: true, Fetched: true, Err: err})
			return
		}
		emit(Result[T]{Status: StatusError, Fetched: true, Err: err})
		return
	}

	// Re-read through the local store so the emitted value reflects exactly
	// what was persisted.
	refreshed, err := opts.Query(ctx)
	if err != nil {
		emit(Result[T]{Status: StatusError, Fetched: true, Err: err})
		return
	}
	emit(Result[T]{Status: StatusSuccess, Data: refreshed, Fetched: true})
}

// Watch is the reactive variant: it performs the same load as Run, then keeps
// forwarding values from the local store's change stream until ctx is done.
func Watch[T any](ctx context.Context, opts Options[T], subscribe func(ctx context.Context) (<-chan T, error)) <-chan Result[T] {
	out := make(chan Result[T], 3)
	go func() {
		defer close(out)
		emit := func(r Result[T]) bool {
			select {
			case out <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}

		run(ctx, opts, emit)
		if ctx.Err() != nil {
			return
		}

		changes, err := subscribe(ctx)
		if err != nil {
			emit(Result[T]{Status: StatusError, Err: err})
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case data, ok := <-changes:
				if !ok {
					return
				}
				if !emit(Result[T]{Status: StatusSuccess, Data: data}) {
					return
				}
			}
		}
	}()
	return out
}
