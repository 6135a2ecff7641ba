package filter

import (
	"strings"
	"sync"
)

// DuplicateTracker remembers which (endpoint, service set) pairs have
// already been reported. In continuous mode the same server is found every
// cycle; the tracker lets side effects such as --on-found run once per
// distinct discovery instead of once per cycle. A server whose advertised
// set changes counts as a new discovery.
type DuplicateTracker struct {
	mu   sync.Mutex
	seen map[string]string
}

// NewDuplicateTracker returns an empty tracker.
func NewDuplicateTracker() *DuplicateTracker {
	return &DuplicateTracker{seen: make(map[string]string)}
}

func (d *DuplicateTracker) Name() string { return "duplicate" }

// First records the discovery and reports whether it is new.
func (d *DuplicateTracker) First(endpoint string, services []string) bool {
	fp := strings.Join(services, "\x00")

	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.seen[endpoint]; ok && prev == fp {
		return false
	}
	d.seen[endpoint] = fp
	return true
}

// Count returns the number of distinct endpoints seen.
func (d *DuplicateTracker) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
