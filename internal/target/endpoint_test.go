package target

import (
	"errors"
	"testing"

	"github.com/maxvaer/grpcscan/internal/config"
)

func TestGeneratorCrossProduct(t *testing.T) {
	tests := []struct {
		name       string
		hosts      []string
		start, end int
		want       int
	}{
		{name: "single host single port", hosts: []string{"localhost"}, start: 50051, end: 50051, want: 1},
		{name: "default range", hosts: []string{"localhost"}, start: 50000, end: 50100, want: 101},
		{name: "two hosts", hosts: []string{"a", "b"}, start: 1, end: 10, want: 20},
		{name: "duplicate hosts collapse", hosts: []string{"a", "b", "a"}, start: 1, end: 3, want: 6},
		{name: "full range", hosts: []string{"a"}, start: 1, end: 65535, want: 65535},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGenerator(tt.hosts, tt.start, tt.end)
			if err != nil {
				t.Fatal(err)
			}
			if g.Count() != tt.want {
				t.Errorf("Count() = %d, want %d", g.Count(), tt.want)
			}
			seen := make(map[Endpoint]bool)
			n := 0
			for i, ep := range g.All() {
				if i != n {
					t.Fatalf("index %d out of sequence, want %d", i, n)
				}
				if seen[ep] {
					t.Fatalf("duplicate endpoint %s", ep)
				}
				if g.At(i) != ep {
					t.Fatalf("At(%d) = %s, want %s", i, g.At(i), ep)
				}
				seen[ep] = true
				n++
			}
			if n != tt.want {
				t.Errorf("yielded %d endpoints, want %d", n, tt.want)
			}
		})
	}
}

func TestGeneratorOrderAndRestart(t *testing.T) {
	g, err := NewGenerator([]string{"b", "a"}, 7, 8)
	if err != nil {
		t.Fatal(err)
	}
	want := []Endpoint{{"b", 7}, {"b", 8}, {"a", 7}, {"a", 8}}

	for pass := 0; pass < 2; pass++ {
		var got []Endpoint
		for _, ep := range g.All() {
			got = append(got, ep)
		}
		if len(got) != len(want) {
			t.Fatalf("pass %d: got %v", pass, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("pass %d [%d] = %v, want %v", pass, i, got[i], want[i])
			}
		}
	}
}

func TestGeneratorEarlyBreak(t *testing.T) {
	g, _ := NewGenerator([]string{"a"}, 1, 100)
	n := 0
	for range g.All() {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("n = %d", n)
	}
}

func TestGeneratorConfigErrors(t *testing.T) {
	tests := []struct {
		name       string
		hosts      []string
		start, end int
	}{
		{name: "start after end", hosts: []string{"a"}, start: 10, end: 9},
		{name: "no hosts", hosts: nil, start: 1, end: 2},
		{name: "only blank hosts", hosts: []string{"", ""}, start: 1, end: 2},
		{name: "port zero", hosts: []string{"a"}, start: 0, end: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator(tt.hosts, tt.start, tt.end)
			var cfgErr *config.Error
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *config.Error, got %v", err)
			}
		})
	}
}

func TestEndpointAddress(t *testing.T) {
	if got := (Endpoint{Host: "::1", Port: 50051}).Address(); got != "[::1]:50051" {
		t.Errorf("Address() = %q", got)
	}
	if got := (Endpoint{Host: "localhost", Port: 1}).Address(); got != "localhost:1" {
		t.Errorf("Address() = %q", got)
	}
}
