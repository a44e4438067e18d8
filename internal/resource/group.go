package resource

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Group collapses concurrent loads for the same key into a single execution,
// so at most one fetch per key is in flight at a time. Loads for distinct
// keys run independently.
type Group[T any] struct {
	sf singleflight.Group
}

// Get runs the load for key, sharing the in-flight execution and its terminal
// result with every concurrent caller of the same key. The load itself runs
// detached from the initiating caller's context, so cancelling one caller
// fails only that caller, never the others waiting on the same key.
func (g *Group[T]) Get(ctx context.Context, key string, opts Options[T]) Result[T] {
	ch := g.sf.DoChan(key, func() (any, error) {
		return Get(context.WithoutCancel(ctx), opts), nil
	})
	select {
	case res := <-ch:
		return res.Val.(Result[T])
	case <-ctx.Done():
		return Result[T]{Status: StatusError, Err: ctx.Err()}
	}
}

// Forget drops the in-flight entry for key so the next Get runs fresh.
func (g *Group[T]) Forget(key string) {
	g.sf.Forget(key)
}
