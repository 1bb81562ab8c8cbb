package idempotency

import (
	"context"
	"time"
)

// RunJanitor purges expired keys every interval until ctx ends. Each pass deletes at most batch
// keys.
func RunJanitor(ctx context.Context, store Store, interval time.Duration, batch int, logger Logger) {
	if store == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := store.Purge(ctx, now, batch)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Printf("idempotency: purge failed: %v", err)
				}
				continue
			}
			if removed > 0 && logger != nil {
				logger.Printf("idempotency: purged %d expired keys", removed)
			}
		}
	}
}
