package revocation

import (
	"context"
	"time"

	"github.com/pathwayfr/pathway/internal/logging"
)

// RunJanitor prunes p every interval until ctx is cancelled.
func RunJanitor(ctx context.Context, p Pruner, interval time.Duration, l logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Prune(ctx)
			if err != nil {
				l.Error(ctx, "prune revoked tokens failed", "error", err)
				continue
			}
			if n > 0 {
				l.Debug(ctx, "pruned revoked tokens", "count", n)
			}
		}
	}
}
