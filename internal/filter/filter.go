package filter

// Filter decides whether a service name should be dropped from a result.
type Filter interface {
	Name() string
	ShouldFilter(service string) bool
}

// Chain applies multiple filters in order, short-circuiting on the first match.
type Chain struct {
	filters []Filter
}

// NewChain returns an empty filter chain.
func NewChain() *Chain {
	return &Chain{}
}

// Add appends a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Len reports how many filters are installed.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.filters)
}

// Apply runs every filter against the service name. Returns true and the
// filter name if the service should be dropped.
func (c *Chain) Apply(service string) (bool, string) {
	if c == nil {
		return false, ""
	}
	for _, f := range c.filters {
		if f.ShouldFilter(service) {
			return true, f.Name()
		}
	}
	return false, ""
}

// Keep returns the services that pass every filter, preserving order.
// The input slice is not modified.
func (c *Chain) Keep(services []string) []string {
	kept := make([]string, 0, len(services))
	for _, s := range services {
		if drop, _ := c.Apply(s); !drop {
			kept = append(kept, s)
		}
	}
	return kept
}
