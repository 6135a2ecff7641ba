package scanner

import (
	"context"
	"testing"
	"time"
)

func TestThrottlerNilAndDisabled(t *testing.T) {
	var nilT *Throttler
	if err := nilT.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	nilT.RecordResourceError()
	nilT.RecordSuccess()

	off := NewThrottler(0, false, nil)
	off.RecordResourceError()
	if off.Delay() != 0 {
		t.Errorf("disabled throttler delay = %s", off.Delay())
	}
}

func TestThrottlerBackoffAndRecovery(t *testing.T) {
	th := NewThrottler(0, true, nil)

	th.RecordResourceError()
	if th.Delay() != minBackoff {
		t.Fatalf("delay = %s, want %s", th.Delay(), minBackoff)
	}
	th.RecordResourceError()
	if th.Delay() != 2*minBackoff {
		t.Fatalf("delay = %s, want %s", th.Delay(), 2*minBackoff)
	}
	for i := 0; i < 20; i++ {
		th.RecordResourceError()
	}
	if th.Delay() != maxBackoff {
		t.Fatalf("delay = %s, want cap %s", th.Delay(), maxBackoff)
	}

	th.RecordSuccess()
	if th.Delay() != maxBackoff/2 {
		t.Fatalf("delay = %s after recovery, want %s", th.Delay(), maxBackoff/2)
	}
	// A second success without new errors does not recover further.
	th.RecordSuccess()
	if th.Delay() != maxBackoff/2 {
		t.Fatalf("delay = %s, want unchanged", th.Delay())
	}
}

func TestThrottlerRateCap(t *testing.T) {
	th := NewThrottler(50, false, nil)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 6; i++ {
		if err := th.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	// Burst of one: five intervals of 20ms after the first token.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("6 waits at 50/s took %s, want >= ~100ms", elapsed)
	}
}

func TestThrottlerWaitCancelled(t *testing.T) {
	th := NewThrottler(0, true, nil)
	for i := 0; i < 10; i++ {
		th.RecordResourceError()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := th.Wait(ctx); err == nil {
		t.Error("expected cancellation error")
	}
}
