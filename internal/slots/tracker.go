package slots

import "sync/atomic"

// RequestTracker hands out request tokens so that only the latest resolution
// is applied. Results are accepted by token, not by arrival order.
type RequestTracker struct {
	latest atomic.Uint64
}

// Begin starts a new request and supersedes every earlier one.
func (t *RequestTracker) Begin() uint64 {
	return t.latest.Add(1)
}

// Invalidate supersedes in-flight requests without starting a new one.
func (t *RequestTracker) Invalidate() {
	t.latest.Add(1)
}

// IsCurrent reports whether token belongs to the latest request.
func (t *RequestTracker) IsCurrent(token uint64) bool {
	return token != 0 && t.latest.Load() == token
}
