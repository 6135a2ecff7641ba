package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const (
	minBackoff = 100 * time.Millisecond
	maxBackoff = 5 * time.Second
)

// Throttler paces units of work. A fixed rate cap (units per second) is
// enforced by a token bucket. When adaptive back-off is enabled, local
// resource exhaustion (EMFILE, ephemeral port starvation) doubles a
// per-unit delay, and healthy units halve it back toward zero.
type Throttler struct {
	limiter *rate.Limiter // nil = unlimited

	mu          sync.Mutex
	delay       time.Duration
	consecutive int
	adaptive    bool
	logger      *log.Logger
}

// NewThrottler returns a throttler. maxRate <= 0 disables the rate cap.
func NewThrottler(maxRate int, adaptive bool, logger *log.Logger) *Throttler {
	t := &Throttler{adaptive: adaptive, logger: logger}
	if maxRate > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(maxRate), 1)
	}
	return t
}

// Wait blocks until the next unit may start. A nil Throttler never waits.
func (t *Throttler) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	d := t.Delay()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delay returns the current back-off delay.
func (t *Throttler) Delay() time.Duration {
	if t == nil || !t.adaptive {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delay
}

// RecordResourceError doubles the back-off delay.
func (t *Throttler) RecordResourceError() {
	if t == nil || !t.adaptive {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutive++
	d := t.delay * 2
	if d < minBackoff {
		d = minBackoff
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	if d != t.delay {
		t.delay = d
		if t.logger != nil {
			t.logger.Warn("local resources exhausted, backing off", "delay", d)
		}
	}
}

// RecordSuccess halves the back-off after a run of resource errors.
func (t *Throttler) RecordSuccess() {
	if t == nil || !t.adaptive {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.consecutive == 0 {
		return
	}
	t.consecutive = 0
	d := t.delay / 2
	if d < minBackoff {
		d = 0
	}
	if d != t.delay {
		t.delay = d
		if t.logger != nil && d > 0 {
			t.logger.Info("recovering", "delay", d)
		}
	}
}
