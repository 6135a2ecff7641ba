package output

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/maxvaer/grpcscan/internal/scanner"
)

// CSVWriter writes one row per outcome.
type CSVWriter struct {
	w      *csv.Writer
	closer io.Closer
}

// NewCSVWriter creates a CSV writer on w. closer may be nil.
func NewCSVWriter(w io.Writer, closer io.Closer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w), closer: closer}
}

func (c *CSVWriter) WriteHeader(*scanner.Session) error {
	return c.w.Write([]string{"cycle", "host", "port", "outcome", "services", "reason", "duration_ms"})
}

func (c *CSVWriter) WriteCycle(cycle *scanner.CycleResult) error {
	n := strconv.Itoa(cycle.Number)
	for _, r := range cycle.Sorted() {
		err := c.w.Write([]string{
			n,
			r.Endpoint.Host,
			strconv.Itoa(r.Endpoint.Port),
			r.Kind.String(),
			strings.Join(r.Services, ";"),
			r.Reason,
			strconv.FormatInt(r.Duration.Milliseconds(), 10),
		})
		if err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) WriteFooter(*scanner.Session) error {
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
