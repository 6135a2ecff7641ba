package target

import (
	"iter"
	"net"
	"strconv"

	"github.com/maxvaer/grpcscan/internal/config"
)

// Endpoint is a single (host, port) candidate.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Address returns host:port, bracketing IPv6 literals.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string { return e.Address() }

// Generator produces the cross product of a host list and an inclusive
// port range. Iteration order is hosts in input order, then ports ascending.
type Generator struct {
	hosts []string
	start int
	end   int
}

// NewGenerator validates its inputs and returns a restartable generator.
// Duplicate hosts are dropped, keeping the first occurrence.
func NewGenerator(hosts []string, start, end int) (*Generator, error) {
	if err := config.ValidatePortRange(start, end); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(hosts))
	unique := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		unique = append(unique, h)
	}
	if len(unique) == 0 {
		return nil, &config.Error{Field: "hosts", Reason: "host list is empty"}
	}
	return &Generator{hosts: unique, start: start, end: end}, nil
}

// Hosts returns the de-duplicated host list in generation order.
func (g *Generator) Hosts() []string {
	out := make([]string, len(g.hosts))
	copy(out, g.hosts)
	return out
}

// Ports returns the number of ports per host.
func (g *Generator) Ports() int { return g.end - g.start + 1 }

// Range returns the inclusive port range.
func (g *Generator) Range() (start, end int) { return g.start, g.end }

// Count returns the total number of endpoints one pass yields.
func (g *Generator) Count() int { return len(g.hosts) * g.Ports() }

// At returns the endpoint at generation index i.
func (g *Generator) At(i int) Endpoint {
	n := g.Ports()
	return Endpoint{Host: g.hosts[i/n], Port: g.start + i%n}
}

// All lazily yields every endpoint with its generation index. Each call
// starts a fresh pass.
func (g *Generator) All() iter.Seq2[int, Endpoint] {
	return func(yield func(int, Endpoint) bool) {
		i := 0
		for _, host := range g.hosts {
			for port := g.start; port <= g.end; port++ {
				if !yield(i, Endpoint{Host: host, Port: port}) {
					return
				}
				i++
			}
		}
	}
}
