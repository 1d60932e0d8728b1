package reconcile

import "sync/atomic"

// flags guard the two at-most-once side effects inside a single
// reconciliation run. Cross-run dedup for the same checkout session is the
// Redis guard's job; these only stop re-entrancy within one invocation when
// multiple resolution branches could trigger the same effect.
type flags struct {
	cartCleared   atomic.Bool
	noticeEmitted atomic.Bool
}

// acquireCartClear returns true exactly once per run.
func (f *flags) acquireCartClear() bool {
	return f.cartCleared.CompareAndSwap(false, true)
}

// acquireNotice returns true exactly once per run.
func (f *flags) acquireNotice() bool {
	return f.noticeEmitted.CompareAndSwap(false, true)
}
