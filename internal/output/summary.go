package output

import (
	"slices"
	"time"

	"github.com/maxvaer/grpcscan/internal/scanner"
	"github.com/maxvaer/grpcscan/internal/target"
)

// CycleSummary aggregates one cycle's outcomes.
type CycleSummary struct {
	Cycle       int              `json:"cycle"`
	Scanned     int              `json:"scanned"`
	Reachable   int              `json:"reachable"`
	Reflection  int              `json:"reflection"`
	Found       int              `json:"found"`
	Failed      int              `json:"failed"`
	Unreachable int              `json:"unreachable"`
	Skipped     int              `json:"skipped"`
	Elapsed     time.Duration    `json:"elapsed_ns"`
	Hits        []scanner.Result `json:"-"`
	Warnings    []HostWarning    `json:"warnings,omitempty"`
	Stopped     bool             `json:"stopped_on_first"`
	Interrupted bool             `json:"interrupted"`
}

// HostWarning flags a host whose every probed endpoint failed unexpectedly,
// usually because the name does not resolve.
type HostWarning struct {
	Host   string `json:"host"`
	Failed int    `json:"failed"`
	Reason string `json:"reason"`
}

// Discovery is an endpoint that advertised services in some cycle.
type Discovery struct {
	Endpoint   target.Endpoint `json:"endpoint"`
	Services   []string        `json:"services"`
	FirstCycle int             `json:"first_cycle"`
	LastCycle  int             `json:"last_cycle"`

	index int
}

// Summary aggregates a whole session.
type Summary struct {
	Cycles      int                `json:"cycles"`
	Discovered  []Discovery        `json:"discovered"`
	StopReason  scanner.StopReason `json:"stop_reason"`
	Elapsed     time.Duration      `json:"elapsed_ns"`
	Interrupted bool               `json:"interrupted"`
}

// Summarize counts a cycle's outcomes. It does not modify c.
func Summarize(c *scanner.CycleResult) CycleSummary {
	sum := CycleSummary{
		Cycle:       c.Number,
		Elapsed:     c.Elapsed(),
		Stopped:     c.Stopped,
		Interrupted: c.Interrupted,
	}

	type hostState struct {
		failed, probed int
		reason         string
	}
	var hostOrder []string
	hosts := make(map[string]*hostState)

	for _, r := range c.Sorted() {
		sum.Scanned++
		switch r.Kind {
		case scanner.Unreachable:
			sum.Unreachable++
		case scanner.ReflectionFailed:
			sum.Failed++
		case scanner.ServicesFound:
			sum.Reflection++
			if r.Hit() {
				sum.Found++
				sum.Hits = append(sum.Hits, r)
			}
		case scanner.Skipped:
			sum.Skipped++
		}
		if r.Reachable() {
			sum.Reachable++
		}

		h, ok := hosts[r.Endpoint.Host]
		if !ok {
			h = &hostState{}
			hosts[r.Endpoint.Host] = h
			hostOrder = append(hostOrder, r.Endpoint.Host)
		}
		if r.Kind == scanner.Skipped {
			continue
		}
		h.probed++
		if r.Kind == scanner.ReflectionFailed {
			h.failed++
			if h.reason == "" {
				h.reason = r.Reason
			}
		}
	}
	// ReflectionFailed after a successful precheck means something answered,
	// so only hosts with no other outcome at all get a warning.
	for _, host := range hostOrder {
		h := hosts[host]
		if h.probed > 0 && h.failed == h.probed {
			sum.Warnings = append(sum.Warnings, HostWarning{Host: host, Failed: h.failed, Reason: h.reason})
		}
	}
	return sum
}

// SummarizeSession lists every distinct endpoint that advertised services
// in any cycle, in generation order, with the service set from the last
// cycle it was seen in.
func SummarizeSession(s *scanner.Session) Summary {
	sum := Summary{
		Cycles:      len(s.Cycles),
		Discovered:  []Discovery{},
		StopReason:  s.StopReason,
		Interrupted: s.Interrupted(),
	}
	if !s.Ended.IsZero() {
		sum.Elapsed = s.Ended.Sub(s.Started)
	}

	byEndpoint := make(map[target.Endpoint]int)
	for _, c := range s.Cycles {
		for _, r := range c.Hits() {
			if i, ok := byEndpoint[r.Endpoint]; ok {
				sum.Discovered[i].Services = r.Services
				sum.Discovered[i].LastCycle = c.Number
				continue
			}
			byEndpoint[r.Endpoint] = len(sum.Discovered)
			sum.Discovered = append(sum.Discovered, Discovery{
				Endpoint:   r.Endpoint,
				Services:   r.Services,
				FirstCycle: c.Number,
				LastCycle:  c.Number,
				index:      r.Index,
			})
		}
	}
	slices.SortStableFunc(sum.Discovered, func(a, b Discovery) int { return a.index - b.index })
	return sum
}
