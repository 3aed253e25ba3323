package storage

import (
	"context"
	"log/slog"
)

// FallbackHook is told about every call the local store answered after a
// remote failure. store names the collection, op the operation.
type FallbackHook func(store, op string, err error)

// ShouldFallback reports whether err from the remote store lets the call be
// retried against the local store. The decision follows the caller's context:
// once ctx is cancelled or past its deadline the error is returned as-is, but
// a remote client timing out on its own still falls back.
func ShouldFallback(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() == nil
}

// WithFallback runs primary, and on a fallback-eligible error runs secondary.
// There is no retry and no memory of earlier failures; each call tries primary first.
// PRE: primary and secondary implement the same operation
// POST: secondary's result is returned unchanged when it runs
func WithFallback[T any](ctx context.Context, store, op string, hook FallbackHook,
	primary, secondary func(context.Context) (T, error)) (T, error) {
	v, err := primary(ctx)
	if !ShouldFallback(ctx, err) {
		return v, err
	}
	slog.Warn("remote_fallback", "store", store, "op", op, "error", err)
	if hook != nil {
		hook(store, op, err)
	}
	return secondary(ctx)
}
