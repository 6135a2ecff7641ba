package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/maxvaer/grpcscan/internal/scanner"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

// TextOptions controls the human-readable report.
type TextOptions struct {
	Verbose bool // list every outcome, not only hits
	Color   bool
	Tree    bool // host -> port -> services tree in the footer
}

// TextWriter renders the human-readable report.
type TextWriter struct {
	w      io.Writer
	closer io.Closer
	opts   TextOptions
}

// NewTextWriter creates a text writer on w. closer may be nil.
func NewTextWriter(w io.Writer, closer io.Closer, opts TextOptions) *TextWriter {
	return &TextWriter{w: w, closer: closer, opts: opts}
}

func (t *TextWriter) WriteHeader(s *scanner.Session) error {
	cfg := s.Config
	mode := "one-shot"
	if cfg.Continuous {
		mode = fmt.Sprintf("continuous (interval %s", cfg.Interval)
		if cfg.MaxCycles > 0 {
			mode += fmt.Sprintf(", max %d cycles", cfg.MaxCycles)
		}
		mode += ")"
	}
	if cfg.StopOnFirst {
		mode += ", stop on first"
	}
	endpoints := len(cfg.Hosts) * (cfg.EndPort - cfg.StartPort + 1)

	_, err := fmt.Fprintf(t.w, "%sgrpcscan session %s%s\n  Hosts:  %s\n  Ports:  %d-%d (%d endpoints, concurrency %d)\n  Mode:   %s\n",
		t.c(colorBold), s.ID, t.c(colorReset),
		strings.Join(cfg.Hosts, ", "),
		cfg.StartPort, cfg.EndPort, endpoints, cfg.Concurrency,
		mode,
	)
	return err
}

func (t *TextWriter) WriteCycle(c *scanner.CycleResult) error {
	sum := Summarize(c)
	var b strings.Builder

	status := ""
	switch {
	case sum.Interrupted:
		status = t.c(colorYellow) + " interrupted" + t.c(colorReset)
	case sum.Stopped:
		status = " stopped on first hit"
	}
	fmt.Fprintf(&b, "\nCycle %d%s (%s, elapsed %s)\n", sum.Cycle, status,
		c.Start.Format(time.DateTime), sum.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "  Scanned: %d | Reachable: %d | Reflection: %d | Found: %d | Failed: %d | Skipped: %d\n",
		sum.Scanned, sum.Reachable, sum.Reflection, sum.Found, sum.Failed, sum.Skipped)

	for _, r := range sum.Hits {
		fmt.Fprintf(&b, "  %s[+]%s %s\n", t.c(colorGreen), t.c(colorReset), r.Endpoint.Address())
		for _, svc := range r.Services {
			fmt.Fprintf(&b, "        %s\n", svc)
		}
	}
	for _, w := range sum.Warnings {
		fmt.Fprintf(&b, "  %s[!]%s all %d probed endpoints on %s failed: %s\n",
			t.c(colorRed), t.c(colorReset), w.Failed, w.Host, w.Reason)
	}

	if t.opts.Verbose {
		b.WriteString("\n")
		for _, r := range c.Sorted() {
			fmt.Fprintf(&b, "  %-28s %s%-22s%s %s\n",
				r.Endpoint.Address(), t.kindColor(r.Kind), r.Kind, t.c(colorReset), detail(r.Outcome))
		}
	}

	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *TextWriter) WriteFooter(s *scanner.Session) error {
	sum := SummarizeSession(s)
	var b strings.Builder

	fmt.Fprintf(&b, "\nFound %d gRPC server(s) with reflection in %d cycle(s)", len(sum.Discovered), sum.Cycles)
	if sum.StopReason != "" {
		fmt.Fprintf(&b, " [%s]", sum.StopReason)
	}
	b.WriteString("\n")

	if t.opts.Tree {
		PrintTree(&b, sum.Discovered)
	}
	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *TextWriter) Close() error {
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

func (t *TextWriter) c(code string) string {
	if !t.opts.Color {
		return ""
	}
	return code
}

func (t *TextWriter) kindColor(k scanner.Kind) string {
	switch k {
	case scanner.ServicesFound:
		return t.c(colorGreen)
	case scanner.ReflectionUnsupported:
		return t.c(colorCyan)
	case scanner.ReflectionFailed:
		return t.c(colorRed)
	case scanner.Skipped:
		return t.c(colorYellow)
	}
	return t.c(colorDim)
}

func detail(o scanner.Outcome) string {
	switch o.Kind {
	case scanner.ServicesFound:
		if len(o.Services) == 0 {
			return "(no services advertised)"
		}
		return strings.Join(o.Services, ", ")
	case scanner.ReflectionFailed:
		return o.Reason
	}
	return ""
}
