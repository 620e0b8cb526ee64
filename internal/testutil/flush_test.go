package testutil

import "testing"

func TestManualFlushFiresOnce(t *testing.T) {
	m := &ManualFlush{}
	fired := 0
	m.Schedule(func() { fired++ })
	if !m.Pending() {
		t.Fatal("expected a pending flush after Schedule")
	}

	m.Fire()
	m.Fire()
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
	if m.Pending() {
		t.Error("flush still pending after firing")
	}
}

func TestManualFlushCancel(t *testing.T) {
	m := &ManualFlush{}
	fired := 0
	m.Schedule(func() { fired++ })
	m.Cancel()
	m.Fire()
	if fired != 0 {
		t.Errorf("fired = %d, want 0 after cancel", fired)
	}
}

func TestManualFlushRescheduleReplaces(t *testing.T) {
	m := &ManualFlush{}
	got := ""
	m.Schedule(func() { got = "first" })
	m.Schedule(func() { got = "second" })
	m.Fire()
	if got != "second" {
		t.Errorf("got %q, want the latest scheduled flush", got)
	}
}
