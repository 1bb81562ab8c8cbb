package rtdb

import (
	"context"
	"time"
)

// Poll emulates a value listener. It reads ref once, calls fn with the decoded value, then checks
// for changes every interval with a conditional GET and calls fn again whenever the ETag moves.
// It returns nil when ctx ends and the first error from the database or fn otherwise.
func Poll[T any](ctx context.Context, ref Ref, interval time.Duration, fn func(T) error) error {
	etag, err := readWithETag(ctx, ref, fn)
	if err != nil {
		return stopped(ctx, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		// The server omits the ETag on some responses; fall back to a full read.
		if etag == "" {
			if etag, err = readWithETag(ctx, ref, fn); err != nil {
				return stopped(ctx, err)
			}
			continue
		}

		var value T
		changed, next, err := ref.GetIfChanged(ctx, etag, &value)
		if err != nil {
			return stopped(ctx, WrapError("rtdb.poll", err))
		}
		if !changed {
			continue
		}
		etag = next
		if err := fn(value); err != nil {
			return err
		}
	}
}

func readWithETag[T any](ctx context.Context, ref Ref, fn func(T) error) (string, error) {
	var value T
	etag, err := ref.GetWithETag(ctx, &value)
	if err != nil {
		return "", WrapError("rtdb.poll", err)
	}
	return etag, fn(value)
}

func stopped(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}
