package output

import (
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/maxvaer/grpcscan/internal/scanner"
)

type jsonCycle struct {
	CycleSummary
	Start   time.Time        `json:"start"`
	End     time.Time        `json:"end"`
	Results []scanner.Result `json:"results"`
}

type jsonReport struct {
	ID      uuid.UUID             `json:"id"`
	Config  scanner.SessionConfig `json:"config"`
	State   scanner.State         `json:"state"`
	Started time.Time             `json:"started"`
	Ended   time.Time             `json:"ended"`
	Summary Summary               `json:"summary"`
	Cycles  []jsonCycle           `json:"cycles"`
}

// JSONWriter writes the whole session as one JSON document once the
// session has ended.
type JSONWriter struct {
	w      io.Writer
	closer io.Closer
}

// NewJSONWriter creates a JSON writer on w. closer may be nil.
func NewJSONWriter(w io.Writer, closer io.Closer) *JSONWriter {
	return &JSONWriter{w: w, closer: closer}
}

func (j *JSONWriter) WriteHeader(*scanner.Session) error { return nil }

func (j *JSONWriter) WriteCycle(*scanner.CycleResult) error { return nil }

func (j *JSONWriter) WriteFooter(s *scanner.Session) error {
	report := jsonReport{
		ID:      s.ID,
		Config:  s.Config,
		State:   s.State,
		Started: s.Started,
		Ended:   s.Ended,
		Summary: SummarizeSession(s),
		Cycles:  make([]jsonCycle, 0, len(s.Cycles)),
	}
	for _, c := range s.Cycles {
		report.Cycles = append(report.Cycles, jsonCycle{
			CycleSummary: Summarize(c),
			Start:        c.Start,
			End:          c.End,
			Results:      c.Sorted(),
		})
	}
	data, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	_, err = j.w.Write(append(data, '\n'))
	return err
}

func (j *JSONWriter) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
