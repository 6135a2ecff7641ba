package scanner

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/maxvaer/grpcscan/internal/netutil"
	"github.com/maxvaer/grpcscan/internal/target"
)

// Unit scans one endpoint and returns its outcome. Implementations must
// honour ctx and must not panic.
type Unit interface {
	Scan(ctx context.Context, ep target.Endpoint) Outcome
}

// UnitFunc adapts a function to Unit.
type UnitFunc func(ctx context.Context, ep target.Endpoint) Outcome

func (f UnitFunc) Scan(ctx context.Context, ep target.Endpoint) Outcome { return f(ctx, ep) }

// Scanner is the production unit of work: optional ICMP gate, optional
// TCP precheck, then the reflection probe.
type Scanner struct {
	Liveness  *netutil.LivenessChecker // nil = no ping gate
	Precheck  *Prechecker              // nil = probe every endpoint
	Prober    *Prober
	Throttler *Throttler
	Logger    *log.Logger
}

func (s *Scanner) Scan(ctx context.Context, ep target.Endpoint) Outcome {
	start := time.Now()
	out := s.scan(ctx, ep)
	out.Duration = time.Since(start)
	return out
}

func (s *Scanner) scan(ctx context.Context, ep target.Endpoint) Outcome {
	if s.Liveness != nil && !s.Liveness.Alive(ctx, ep.Host) {
		return Outcome{Kind: Unreachable}
	}

	if s.Precheck != nil {
		open, err := s.Precheck.Check(ctx, ep)
		if err != nil {
			if IsResourceExhausted(err) {
				s.Throttler.RecordResourceError()
			}
			s.debug("precheck failed", ep, err)
			return Failed(err.Error())
		}
		s.Throttler.RecordSuccess()
		if !open {
			return Outcome{Kind: Unreachable}
		}
	}

	out := s.Prober.Probe(ctx, ep)
	if out.Kind == ReflectionFailed {
		s.debug("reflection failed", ep, out.Reason)
	}
	return out
}

func (s *Scanner) debug(msg string, ep target.Endpoint, err any) {
	if s.Logger != nil {
		s.Logger.Debug(msg, "endpoint", ep.Address(), "err", err)
	}
}
