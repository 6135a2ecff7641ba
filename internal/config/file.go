package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// File is the overlay read from a YAML config file or GRPCSCAN_* variables.
// Nil fields are unset. Keys match the long flag names.
type File struct {
	Hosts           []string  `yaml:"hosts"`
	HostsFile       *string   `yaml:"hosts-file"`
	StartPort       *int      `yaml:"start"`
	EndPort         *int      `yaml:"end"`
	Concurrency     *int      `yaml:"concurrency"`
	Timeout         *Duration `yaml:"timeout"`
	PrecheckTimeout *Duration `yaml:"precheck-timeout"`
	NoPrecheck      *bool     `yaml:"no-precheck"`
	Ping            *bool     `yaml:"ping"`
	TLS             *bool     `yaml:"tls"`
	MaxRate         *int      `yaml:"max-rate"`
	Continuous      *bool     `yaml:"continuous"`
	Rate            *Duration `yaml:"rate"`
	StopOnFirst     *bool     `yaml:"stop-on-first"`
	MaxCycles       *int      `yaml:"max-cycles"`
	IncludeServices []string  `yaml:"include-service"`
	ExcludeServices []string  `yaml:"exclude-service"`
	OutputFile      *string   `yaml:"output"`
	OutputFormat    *string   `yaml:"format"`
	Verbose         *bool     `yaml:"verbose"`
	Tree            *bool     `yaml:"tree"`
	OnFoundCmd      *string   `yaml:"on-found"`
}

// Duration decodes YAML scalars such as "750ms" or "2s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadFile reads a YAML config file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &f, nil
}

// LoadEnvFile loads a dotenv file into the process environment without
// overriding variables that are already set. An empty path tries ".env"
// and ignores its absence.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// FromEnv builds an overlay from GRPCSCAN_* variables.
func FromEnv(lookup func(string) (string, bool)) (*File, error) {
	var f File
	if v, ok := lookup("GRPCSCAN_HOSTS"); ok && v != "" {
		f.Hosts = splitList(v)
	}
	ints := []struct {
		key string
		dst **int
	}{
		{"GRPCSCAN_START", &f.StartPort},
		{"GRPCSCAN_END", &f.EndPort},
		{"GRPCSCAN_CONCURRENCY", &f.Concurrency},
	}
	for _, e := range ints {
		v, ok := lookup(e.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, &Error{Field: e.key, Reason: fmt.Sprintf("not a number: %q", v)}
		}
		*e.dst = &n
	}
	durations := []struct {
		key string
		dst **Duration
	}{
		{"GRPCSCAN_TIMEOUT", &f.Timeout},
		{"GRPCSCAN_RATE", &f.Rate},
	}
	for _, e := range durations {
		v, ok := lookup(e.key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return nil, &Error{Field: e.key, Reason: fmt.Sprintf("not a duration: %q", v)}
		}
		dd := Duration(d)
		*e.dst = &dd
	}
	bools := []struct {
		key string
		dst **bool
	}{
		{"GRPCSCAN_CONTINUOUS", &f.Continuous},
		{"GRPCSCAN_STOP_ON_FIRST", &f.StopOnFirst},
		{"GRPCSCAN_TLS", &f.TLS},
	}
	for _, e := range bools {
		v, ok := lookup(e.key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, &Error{Field: e.key, Reason: fmt.Sprintf("not a boolean: %q", v)}
		}
		*e.dst = &b
	}
	return &f, nil
}

// Overlay returns a copy of f with every field set in top taking precedence.
func (f *File) Overlay(top *File) *File {
	out := *f
	if top == nil {
		return &out
	}
	if top.Hosts != nil {
		out.Hosts = top.Hosts
	}
	if top.IncludeServices != nil {
		out.IncludeServices = top.IncludeServices
	}
	if top.ExcludeServices != nil {
		out.ExcludeServices = top.ExcludeServices
	}
	pick(&out.HostsFile, top.HostsFile)
	pick(&out.StartPort, top.StartPort)
	pick(&out.EndPort, top.EndPort)
	pick(&out.Concurrency, top.Concurrency)
	pick(&out.Timeout, top.Timeout)
	pick(&out.PrecheckTimeout, top.PrecheckTimeout)
	pick(&out.NoPrecheck, top.NoPrecheck)
	pick(&out.Ping, top.Ping)
	pick(&out.TLS, top.TLS)
	pick(&out.MaxRate, top.MaxRate)
	pick(&out.Continuous, top.Continuous)
	pick(&out.Rate, top.Rate)
	pick(&out.StopOnFirst, top.StopOnFirst)
	pick(&out.MaxCycles, top.MaxCycles)
	pick(&out.OutputFile, top.OutputFile)
	pick(&out.OutputFormat, top.OutputFormat)
	pick(&out.Verbose, top.Verbose)
	pick(&out.Tree, top.Tree)
	pick(&out.OnFoundCmd, top.OnFoundCmd)
	return &out
}

func pick[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

// Apply copies every set field of f into o, except for fields whose flag
// was given explicitly on the command line.
func (f *File) Apply(o *Options, changed func(flag string) bool) {
	set := func(flag string, apply func()) {
		if !changed(flag) {
			apply()
		}
	}
	if f.Hosts != nil {
		set("hosts", func() { o.Hosts = f.Hosts })
	}
	if f.IncludeServices != nil {
		set("include-service", func() { o.IncludeServices = f.IncludeServices })
	}
	if f.ExcludeServices != nil {
		set("exclude-service", func() { o.ExcludeServices = f.ExcludeServices })
	}
	if f.HostsFile != nil {
		set("hosts-file", func() { o.HostsFile = *f.HostsFile })
	}
	if f.StartPort != nil {
		set("start", func() { o.StartPort = *f.StartPort })
	}
	if f.EndPort != nil {
		set("end", func() { o.EndPort = *f.EndPort })
	}
	if f.Concurrency != nil {
		set("concurrency", func() { o.Concurrency = *f.Concurrency })
	}
	if f.Timeout != nil {
		set("timeout", func() { o.Timeout = time.Duration(*f.Timeout) })
	}
	if f.PrecheckTimeout != nil {
		set("precheck-timeout", func() { o.PrecheckTimeout = time.Duration(*f.PrecheckTimeout) })
	}
	if f.NoPrecheck != nil {
		set("no-precheck", func() { o.NoPrecheck = *f.NoPrecheck })
	}
	if f.Ping != nil {
		set("ping", func() { o.Ping = *f.Ping })
	}
	if f.TLS != nil {
		set("tls", func() { o.TLS = *f.TLS })
	}
	if f.MaxRate != nil {
		set("max-rate", func() { o.MaxRate = *f.MaxRate })
	}
	if f.Continuous != nil {
		set("continuous", func() { o.Continuous = *f.Continuous })
	}
	if f.Rate != nil {
		set("rate", func() { o.Rate = time.Duration(*f.Rate) })
	}
	if f.StopOnFirst != nil {
		set("stop-on-first", func() { o.StopOnFirst = *f.StopOnFirst })
	}
	if f.MaxCycles != nil {
		set("max-cycles", func() { o.MaxCycles = *f.MaxCycles })
	}
	if f.OutputFile != nil {
		set("output", func() { o.OutputFile = *f.OutputFile })
	}
	if f.OutputFormat != nil {
		set("format", func() { o.OutputFormat = *f.OutputFormat })
	}
	if f.Verbose != nil {
		set("verbose", func() { o.Verbose = *f.Verbose })
	}
	if f.Tree != nil {
		set("tree", func() { o.Tree = *f.Tree })
	}
	if f.OnFoundCmd != nil {
		set("on-found", func() { o.OnFoundCmd = *f.OnFoundCmd })
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
