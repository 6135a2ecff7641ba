package config

import (
	"fmt"
	"time"
)

// Defaults mirrored by the CLI flags.
const (
	DefaultStartPort       = 50000
	DefaultEndPort         = 50100
	DefaultConcurrency     = 50
	DefaultTimeout         = 2 * time.Second
	DefaultPrecheckTimeout = 500 * time.Millisecond
	DefaultRate            = time.Second
)

// Options holds all configuration for a grpcscan session.
type Options struct {
	// Target
	Hosts     []string
	HostsFile string
	StartPort int
	EndPort   int

	// Performance
	Concurrency      int
	Timeout          time.Duration // reflection probe
	PrecheckTimeout  time.Duration // TCP connect precheck
	NoPrecheck       bool
	Ping             bool
	TLS              bool
	MaxRate          int // units per second, 0 = unlimited
	AdaptiveThrottle bool

	// Mode
	Continuous  bool
	Rate        time.Duration // delay between cycles
	StopOnFirst bool
	MaxCycles   int

	// Service filters
	IncludeServices []string
	ExcludeServices []string

	// Output
	OutputFile   string
	OutputFormat string // "text", "json", "csv"
	Verbose      bool
	Quiet        bool
	NoColor      bool
	Tree         bool
	OnFoundCmd   string

	// Configuration
	ConfigFile string
	EnvFile    string
	Debug      bool
}

// Default returns Options populated with the documented defaults.
func Default() Options {
	return Options{
		Hosts:           []string{"localhost"},
		StartPort:       DefaultStartPort,
		EndPort:         DefaultEndPort,
		Concurrency:     DefaultConcurrency,
		Timeout:         DefaultTimeout,
		PrecheckTimeout: DefaultPrecheckTimeout,
		Rate:            DefaultRate,
		OutputFormat:    "text",
	}
}

// Error reports an invalid configuration value. A session is never started
// when validation fails.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the option invariants. Host list emptiness is checked
// after hosts files and CIDR entries are expanded, by the endpoint generator.
func (o *Options) Validate() error {
	if err := ValidatePortRange(o.StartPort, o.EndPort); err != nil {
		return err
	}
	if o.Concurrency < 1 {
		return &Error{Field: "concurrency", Reason: fmt.Sprintf("must be at least 1, got %d", o.Concurrency)}
	}
	if o.Timeout <= 0 {
		return &Error{Field: "timeout", Reason: "must be positive"}
	}
	if !o.NoPrecheck && o.PrecheckTimeout <= 0 {
		return &Error{Field: "precheck-timeout", Reason: "must be positive"}
	}
	if o.MaxRate < 0 {
		return &Error{Field: "max-rate", Reason: "must not be negative"}
	}
	if o.Rate < 0 {
		return &Error{Field: "rate", Reason: "must not be negative"}
	}
	if o.MaxCycles < 0 {
		return &Error{Field: "max-cycles", Reason: "must not be negative"}
	}
	switch o.OutputFormat {
	case "text", "json", "csv":
	default:
		return &Error{Field: "format", Reason: fmt.Sprintf("must be one of text, json, csv, got %q", o.OutputFormat)}
	}
	if o.Quiet && o.Debug {
		return &Error{Field: "quiet", Reason: "--quiet and --debug are mutually exclusive"}
	}
	return nil
}

// ValidatePortRange checks that start <= end and both lie in 1..65535.
func ValidatePortRange(start, end int) error {
	if start < 1 || start > 65535 {
		return &Error{Field: "start", Reason: fmt.Sprintf("port %d outside 1..65535", start)}
	}
	if end < 1 || end > 65535 {
		return &Error{Field: "end", Reason: fmt.Sprintf("port %d outside 1..65535", end)}
	}
	if start > end {
		return &Error{Field: "port range", Reason: fmt.Sprintf("start %d greater than end %d", start, end)}
	}
	return nil
}
