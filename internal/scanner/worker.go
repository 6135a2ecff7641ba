package scanner

import (
	"context"
	"iter"
	"sync"

	"github.com/maxvaer/grpcscan/internal/target"
)

// WorkerConfig holds options for the worker pool.
type WorkerConfig struct {
	Concurrency int
	Throttler   *Throttler // nil = no pacing
	Pauser      *Pauser    // nil = no pause support
	StopOnHit   bool       // stop dispatch once a unit finds services
}

type workItem struct {
	index    int
	endpoint target.Endpoint
}

// RunWorkerPool fans endpoints out across exactly cfg.Concurrency workers
// and returns a channel of results in completion order. The channel is
// closed when every worker has exited.
//
// With StopOnHit, the worker that finds services halts dispatch before
// reporting: the producer stops feeding and workers stop pulling, while
// units already running finish on ctx. Cancelling ctx also halts dispatch
// and cuts running units short; those report Skipped unless they already
// found services. Endpoints that never ran produce no result.
func RunWorkerPool(
	ctx context.Context,
	unit Unit,
	endpoints iter.Seq2[int, target.Endpoint],
	cfg WorkerConfig,
) <-chan Result {
	workers := max(cfg.Concurrency, 1)
	itemsCh := make(chan workItem, workers*2)
	resultsCh := make(chan Result, workers*2)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	var stopOnce sync.Once

	// Producer: feed endpoints into channel.
	go func() {
		defer close(itemsCh)
		for i, ep := range endpoints {
			select {
			case itemsCh <- workItem{index: i, endpoint: ep}:
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	halted := func() bool {
		select {
		case <-stop:
			return true
		default:
			return ctx.Err() != nil
		}
	}

	// Workers: consume endpoints, produce results.
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemsCh {
				if halted() {
					return
				}
				if cfg.Pauser.Wait(ctx) != nil || cfg.Throttler.Wait(ctx) != nil || halted() {
					return
				}

				out := unit.Scan(ctx, item.endpoint)
				if ctx.Err() != nil && !out.Hit() {
					out = Outcome{Kind: Skipped}
				}
				if cfg.StopOnHit && out.Hit() {
					stopOnce.Do(func() { close(stop) })
				}
				resultsCh <- Result{Index: item.index, Endpoint: item.endpoint, Outcome: out}
			}
		}()
	}

	// Closer: when all workers finish, close the results channel.
	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	return resultsCh
}
