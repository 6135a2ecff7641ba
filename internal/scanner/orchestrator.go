package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/maxvaer/grpcscan/internal/config"
	"github.com/maxvaer/grpcscan/internal/target"
)

// Orchestrator drives a session through its cycles. Callbacks run on the
// orchestrator goroutine, which is also the only writer of cycle results.
type Orchestrator struct {
	Unit      Unit
	Throttler *Throttler
	Pauser    *Pauser
	Logger    *log.Logger

	OnState  func(State)
	OnResult func(cycle int, r Result)
	OnCycle  func(*CycleResult)
}

// Run executes s until it completes, stops on a hit, reaches its cycle
// cap or ctx is cancelled. It returns a *config.Error if the session
// cannot start, ctx.Err() if it was cancelled, and nil otherwise. On
// cancellation the interrupted cycle is still appended to s.Cycles.
func (o *Orchestrator) Run(ctx context.Context, s *Session) error {
	gen, err := target.NewGenerator(s.Config.Hosts, s.Config.StartPort, s.Config.EndPort)
	if err != nil {
		return err
	}
	if s.Config.Concurrency < 1 {
		return &config.Error{Field: "concurrency", Reason: fmt.Sprintf("must be at least 1, got %d", s.Config.Concurrency)}
	}

	s.Started = time.Now()
	for n := 1; ; n++ {
		o.setState(s, Running)
		o.info("cycle started", "cycle", n, "endpoints", gen.Count())

		cycle := o.runCycle(ctx, s, gen, n)
		s.Cycles = append(s.Cycles, cycle)
		if o.OnCycle != nil {
			o.OnCycle(cycle)
		}
		o.info("cycle finished", "cycle", n, "hits", len(cycle.Hits()), "elapsed", cycle.Elapsed().Round(time.Millisecond))

		switch {
		case cycle.Stopped:
			o.finish(s, Terminated, StopFirstHit)
			return nil
		case cycle.Interrupted:
			o.finish(s, Terminated, StopCancelled)
			return ctx.Err()
		case !s.Config.Continuous:
			o.finish(s, Done, StopCompleted)
			return nil
		case s.Config.MaxCycles > 0 && n >= s.Config.MaxCycles:
			o.finish(s, Done, StopMaxCycles)
			return nil
		}

		o.setState(s, Sleeping)
		if err := sleep(ctx, s.Config.Interval); err != nil {
			o.finish(s, Terminated, StopCancelled)
			return err
		}
	}
}

func (o *Orchestrator) runCycle(ctx context.Context, s *Session, gen *target.Generator, n int) *CycleResult {
	cycle := &CycleResult{
		Number:  n,
		Start:   time.Now(),
		Total:   gen.Count(),
		Results: make([]Result, 0, gen.Count()),
	}
	done := make([]bool, cycle.Total)

	results := RunWorkerPool(ctx, o.Unit, gen.All(), WorkerConfig{
		Concurrency: s.Config.Concurrency,
		Throttler:   o.Throttler,
		Pauser:      o.Pauser,
		StopOnHit:   s.Config.StopOnFirst,
	})
	for r := range results {
		done[r.Index] = true
		o.record(cycle, r)
		if s.Config.StopOnFirst && r.Hit() && !cycle.Stopped {
			cycle.Stopped = true
			o.info("first hit, stopping dispatch", "endpoint", r.Endpoint.Address())
		}
	}

	for i, ok := range done {
		if !ok {
			o.record(cycle, Result{Index: i, Endpoint: gen.At(i), Outcome: Outcome{Kind: Skipped}})
		}
	}
	cycle.Interrupted = ctx.Err() != nil
	cycle.End = time.Now()
	return cycle
}

func (o *Orchestrator) record(cycle *CycleResult, r Result) {
	cycle.Results = append(cycle.Results, r)
	if o.OnResult != nil {
		o.OnResult(cycle.Number, r)
	}
}

func (o *Orchestrator) setState(s *Session, st State) {
	s.State = st
	if o.OnState != nil {
		o.OnState(st)
	}
}

func (o *Orchestrator) finish(s *Session, st State, reason StopReason) {
	s.StopReason = reason
	s.Ended = time.Now()
	o.setState(s, st)
	o.info("session ended", "state", st, "reason", reason, "cycles", len(s.Cycles))
}

func (o *Orchestrator) info(msg string, kv ...any) {
	if o.Logger != nil {
		o.Logger.Info(msg, kv...)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
