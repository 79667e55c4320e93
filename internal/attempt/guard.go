package attempt

import "sync/atomic"

// SubmissionGuard is a one-way latch: the first Close wins, every later call is refused.
// The latch is closed before the result sink is called, never after it returns.
type SubmissionGuard struct {
	closed atomic.Bool
}

// TryClose closes the latch and reports whether this caller closed it.
func (g *SubmissionGuard) TryClose() bool {
	return g.closed.CompareAndSwap(false, true)
}

func (g *SubmissionGuard) Closed() bool {
	return g.closed.Load()
}
