package output

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/maxvaer/grpcscan/internal/scanner"
)

// Writer is implemented by each output format. WriteHeader is called once
// before the first cycle, WriteCycle once per completed cycle and
// WriteFooter once after the session ends.
type Writer interface {
	WriteHeader(s *scanner.Session) error
	WriteCycle(c *scanner.CycleResult) error
	WriteFooter(s *scanner.Session) error
	Close() error
}

// Options controls report rendering.
type Options struct {
	Format     string // "text", "json", "csv"
	OutputFile string // empty = stdout
	Verbose    bool
	NoColor    bool
	Tree       bool
}

// Open creates the writer for opts.Format. Color is only used when the
// report goes to a terminal.
func Open(opts Options) (Writer, error) {
	w, closer, err := openOutput(opts.OutputFile)
	if err != nil {
		return nil, err
	}
	switch opts.Format {
	case "json":
		return NewJSONWriter(w, closer), nil
	case "csv":
		return NewCSVWriter(w, closer), nil
	case "text", "":
		color := !opts.NoColor && opts.OutputFile == "" && isTerminal(os.Stdout)
		return NewTextWriter(w, closer, TextOptions{Verbose: opts.Verbose, Color: color, Tree: opts.Tree}), nil
	}
	if closer != nil {
		closer.Close()
	}
	return nil, fmt.Errorf("unknown output format %q", opts.Format)
}

// Render writes a complete session through w. Rendering the same session
// twice produces identical output.
func Render(w Writer, s *scanner.Session) error {
	if err := w.WriteHeader(s); err != nil {
		return err
	}
	for _, c := range s.Cycles {
		if err := w.WriteCycle(c); err != nil {
			return err
		}
	}
	return w.WriteFooter(s)
}

func openOutput(outputFile string) (io.Writer, io.Closer, error) {
	if outputFile == "" {
		return os.Stdout, nil, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f, nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ColorEnabled reports whether ANSI color should be used on f.
func ColorEnabled(f *os.File, noColor bool) bool {
	return !noColor && isTerminal(f)
}
