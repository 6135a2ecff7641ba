package scanner

import (
	"time"

	"github.com/google/uuid"
)

// State is the orchestrator lifecycle state of a session.
type State int

const (
	Idle State = iota
	Running
	Sleeping
	Done
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Sleeping:
		return "sleeping"
	case Done:
		return "done"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// StopReason records why a session ended.
type StopReason string

const (
	StopCompleted StopReason = "completed"
	StopFirstHit  StopReason = "first-hit"
	StopCancelled StopReason = "cancelled"
	StopMaxCycles StopReason = "max-cycles"
)

// SessionConfig is the scan configuration a session runs with.
type SessionConfig struct {
	Hosts       []string      `json:"hosts"`
	StartPort   int           `json:"start"`
	EndPort     int           `json:"end"`
	Concurrency int           `json:"concurrency"`
	Continuous  bool          `json:"continuous"`
	Interval    time.Duration `json:"interval_ns"`
	StopOnFirst bool          `json:"stop_on_first"`
	MaxCycles   int           `json:"max_cycles,omitempty"`
}

// Session is the state of one invocation: its configuration and every
// cycle run so far. It is created Idle and owned by the orchestrator
// while Run is active.
type Session struct {
	ID         uuid.UUID      `json:"id"`
	Config     SessionConfig  `json:"config"`
	Cycles     []*CycleResult `json:"cycles"`
	State      State          `json:"state"`
	StopReason StopReason     `json:"stop_reason,omitempty"`
	Started    time.Time      `json:"started"`
	Ended      time.Time      `json:"ended"`
}

// NewSession returns an Idle session for cfg.
func NewSession(cfg SessionConfig) *Session {
	return &Session{ID: uuid.New(), Config: cfg, State: Idle}
}

// Interrupted reports whether the session was cut short by cancellation.
func (s *Session) Interrupted() bool { return s.StopReason == StopCancelled }
