package testutil

// ManualFlush is a flush scheduler driven explicitly by the test.
// It satisfies the engine's FlushScheduler interface without timers,
// so tests control exactly when a trailing flush fires.
type ManualFlush struct {
	fn func()
}

// Schedule arms the flush, replacing any previously armed one.
func (m *ManualFlush) Schedule(fn func()) { m.fn = fn }

// Cancel disarms the pending flush.
func (m *ManualFlush) Cancel() { m.fn = nil }

// Pending reports whether a flush is armed.
func (m *ManualFlush) Pending() bool { return m.fn != nil }

// Fire runs the pending flush, if armed.
func (m *ManualFlush) Fire() {
	if m.fn != nil {
		fn := m.fn
		m.fn = nil
		fn()
	}
}
