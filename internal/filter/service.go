package filter

import (
	"fmt"
	"path"
)

// ServiceFilter includes or excludes services by glob pattern
// (path.Match syntax, e.g. "grpc.health.*" or "*.Greeter").
type ServiceFilter struct {
	include []string
	exclude []string
}

// NewServiceFilter creates a service-name filter. If include is non-empty,
// only matching services pass through. Services matching any exclude
// pattern are always dropped.
func NewServiceFilter(include, exclude []string) (*ServiceFilter, error) {
	for _, p := range append(append([]string(nil), include...), exclude...) {
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("bad service pattern %q: %w", p, err)
		}
	}
	return &ServiceFilter{include: include, exclude: exclude}, nil
}

func (f *ServiceFilter) Name() string { return "service" }

func (f *ServiceFilter) ShouldFilter(service string) bool {
	if len(f.include) > 0 && !matchAny(f.include, service) {
		return true
	}
	return matchAny(f.exclude, service)
}

func matchAny(patterns []string, s string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, s); ok {
			return true
		}
	}
	return false
}
