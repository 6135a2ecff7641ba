package scanner

import (
	"slices"
	"time"
	"unicode/utf8"

	"github.com/maxvaer/grpcscan/internal/target"
)

// Kind tags a probe outcome.
type Kind int

const (
	Unreachable Kind = iota
	ReflectionUnsupported
	ReflectionFailed
	ServicesFound
	Skipped
)

var kindNames = [...]string{
	Unreachable:           "unreachable",
	ReflectionUnsupported: "reflection-unsupported",
	ReflectionFailed:      "reflection-failed",
	ServicesFound:         "services-found",
	Skipped:               "skipped",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// MarshalText renders the kind by name in JSON reports.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// maxReasonLen bounds the diagnostic carried by ReflectionFailed.
const maxReasonLen = 120

// Outcome is the result of scanning one endpoint once. Services is only
// set for ServicesFound (sorted, possibly empty). Reason is only set for
// ReflectionFailed.
type Outcome struct {
	Kind     Kind          `json:"outcome"`
	Services []string      `json:"services,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Found returns a ServicesFound outcome with a sorted copy of services.
func Found(services []string) Outcome {
	s := make([]string, len(services))
	copy(s, services)
	slices.Sort(s)
	return Outcome{Kind: ServicesFound, Services: s}
}

// Failed returns a ReflectionFailed outcome with a bounded reason.
func Failed(reason string) Outcome {
	return Outcome{Kind: ReflectionFailed, Reason: truncate(reason, maxReasonLen)}
}

// Hit reports whether the outcome found at least one service.
func (o Outcome) Hit() bool {
	return o.Kind == ServicesFound && len(o.Services) > 0
}

// Reachable reports whether something accepted a connection.
func (o Outcome) Reachable() bool {
	switch o.Kind {
	case ReflectionUnsupported, ReflectionFailed, ServicesFound:
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// Result pairs an endpoint with its outcome. Index is the endpoint's
// position in generation order.
type Result struct {
	Index    int             `json:"index"`
	Endpoint target.Endpoint `json:"endpoint"`
	Outcome
}

// CycleResult holds every outcome of one pass over the endpoints.
// Results is in completion order.
type CycleResult struct {
	Number      int       `json:"cycle"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Total       int       `json:"total"`
	Results     []Result  `json:"results"`
	Stopped     bool      `json:"stopped_on_first"`
	Interrupted bool      `json:"interrupted"`
}

// Elapsed is the wall-clock duration of the cycle.
func (c *CycleResult) Elapsed() time.Duration { return c.End.Sub(c.Start) }

// Sorted returns the results in generation order. The cycle is not modified.
func (c *CycleResult) Sorted() []Result {
	out := slices.Clone(c.Results)
	slices.SortFunc(out, func(a, b Result) int { return a.Index - b.Index })
	return out
}

// Hits returns the results that found services, in generation order.
func (c *CycleResult) Hits() []Result {
	var hits []Result
	for _, r := range c.Sorted() {
		if r.Hit() {
			hits = append(hits, r)
		}
	}
	return hits
}
