package engine

import (
	"context"
	"strings"
	"time"
)

// sleep waits for d or ctx cancellation, whichever comes first. Retry
// backoff sleeps are a suspension point, so cancellation must interrupt
// them promptly.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// splitList turns a comma-separated extract-result string into a Loop{over}
// iteration list. Extract results that need richer structure flow through
// the scope as pre-joined strings; this is the loop's minimal list
// contract.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
