package scanner

import (
	"context"
	"sync"
	"time"
)

// Pauser provides a cooperative pause/resume gate for worker goroutines.
// When paused, calls to Wait block until resumed or cancelled.
type Pauser struct {
	mu          sync.Mutex
	resume      chan struct{} // closed while running
	paused      bool
	pausedSince time.Time
	totalPaused time.Duration
}

// NewPauser creates a Pauser in the running (unpaused) state.
func NewPauser() *Pauser {
	ch := make(chan struct{})
	close(ch)
	return &Pauser{resume: ch}
}

// Wait blocks the calling goroutine while the scan is paused. A nil
// Pauser never blocks.
func (p *Pauser) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	ch := p.resume
	p.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Toggle flips between paused and running states.
// Returns the new paused state (true = now paused).
func (p *Pauser) Toggle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		p.totalPaused += time.Since(p.pausedSince)
		p.paused = false
		close(p.resume)
	} else {
		p.paused = true
		p.pausedSince = time.Now()
		p.resume = make(chan struct{})
	}
	return p.paused
}

// IsPaused returns whether the scan is currently paused.
func (p *Pauser) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// PausedDuration returns the total accumulated time spent paused,
// including any ongoing pause.
func (p *Pauser) PausedDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.totalPaused
	if p.paused {
		d += time.Since(p.pausedSince)
	}
	return d
}

// CurrentPauseDuration returns how long the current pause has lasted.
func (p *Pauser) CurrentPauseDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return 0
	}
	return time.Since(p.pausedSince)
}
