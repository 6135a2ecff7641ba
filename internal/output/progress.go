package output

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maxvaer/grpcscan/internal/scanner"
)

// Progress tracks and displays per-cycle scan progress.
type Progress struct {
	w         io.Writer
	total     int
	cycle     atomic.Int64
	completed atomic.Int64
	found     atomic.Int64
	failed    atomic.Int64
	mu        sync.Mutex
	start     time.Time
	done      chan struct{}
	stopped   chan struct{}
	quiet     bool
}

// NewProgress creates a progress tracker for cycles of total endpoints.
// Call Start() to begin display updates.
func NewProgress(w io.Writer, total int, quiet bool) *Progress {
	return &Progress{
		w:       w,
		total:   total,
		start:   time.Now(),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		quiet:   quiet,
	}
}

// Start begins periodically printing progress.
func (p *Progress) Start() {
	if p.quiet {
		close(p.stopped)
		return
	}
	go func() {
		defer close(p.stopped)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.print()
			case <-p.done:
				p.print()
				fmt.Fprint(p.w, "\n")
				return
			}
		}
	}()
}

// BeginCycle resets the counters for a new cycle.
func (p *Progress) BeginCycle(n int) {
	p.mu.Lock()
	p.start = time.Now()
	p.mu.Unlock()
	p.cycle.Store(int64(n))
	p.completed.Store(0)
	p.found.Store(0)
	p.failed.Store(0)
}

// Record counts one completed endpoint.
func (p *Progress) Record(r scanner.Result) {
	p.completed.Add(1)
	switch {
	case r.Hit():
		p.found.Add(1)
	case r.Kind == scanner.ReflectionFailed:
		p.failed.Add(1)
	}
}

// Clear erases the progress line so a status line can be printed cleanly.
func (p *Progress) Clear() {
	if !p.quiet {
		fmt.Fprint(p.w, "\r\033[K")
	}
}

// Stop ends the progress display and waits for the final line.
func (p *Progress) Stop() {
	close(p.done)
	<-p.stopped
}

func (p *Progress) print() {
	p.mu.Lock()
	start := p.start
	p.mu.Unlock()

	completed := p.completed.Load()
	elapsed := time.Since(start).Seconds()
	rate := float64(0)
	if elapsed > 0 {
		rate = float64(completed) / elapsed
	}

	pct := float64(0)
	if p.total > 0 {
		pct = float64(completed) / float64(p.total) * 100
	}

	eta := ""
	if rate > 0 && completed < int64(p.total) {
		remaining := float64(int64(p.total)-completed) / rate
		eta = fmt.Sprintf("ETA: %s", time.Duration(remaining*float64(time.Second)).Round(time.Second))
	}

	fmt.Fprintf(p.w, "\r\033[K[cycle %d] [%3.0f%%] %d/%d | %.0f ep/s | Found: %d | Failed: %d | %s",
		p.cycle.Load(), pct, completed, p.total, rate,
		p.found.Load(), p.failed.Load(), eta)
}
