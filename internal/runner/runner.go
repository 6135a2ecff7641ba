package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/maxvaer/grpcscan/internal/config"
	"github.com/maxvaer/grpcscan/internal/filter"
	"github.com/maxvaer/grpcscan/internal/hook"
	"github.com/maxvaer/grpcscan/internal/hostlist"
	"github.com/maxvaer/grpcscan/internal/logging"
	"github.com/maxvaer/grpcscan/internal/netutil"
	"github.com/maxvaer/grpcscan/internal/output"
	"github.com/maxvaer/grpcscan/internal/scanner"
	"github.com/maxvaer/grpcscan/internal/target"
	"github.com/maxvaer/grpcscan/pkg/version"
)

// ErrInterrupted is returned when a one-shot scan is cancelled before it
// completes. The partial report has already been written.
var ErrInterrupted = errors.New("scan interrupted")

// newResolver is swapped out by tests.
var newResolver = func() *netutil.Resolver {
	return netutil.NewResolver(netutil.DefaultResolveTTL, nil)
}

// Run executes the full scan pipeline: expand hosts, check that at least
// one resolves, run the session and write the report.
func Run(ctx context.Context, opts *config.Options) error {
	logger := logging.New(os.Stderr, logging.Level(opts.Quiet, opts.Debug))

	// 1. Expand the host list.
	hosts, err := hostlist.Parse(strings.Join(opts.Hosts, ","))
	if err != nil {
		return &config.Error{Field: "hosts", Reason: err.Error()}
	}
	if opts.HostsFile != "" {
		if hosts, err = hostlist.Merge(strings.Join(hosts, ","), opts.HostsFile); err != nil {
			return &config.Error{Field: "hosts-file", Reason: err.Error()}
		}
	}
	gen, err := target.NewGenerator(hosts, opts.StartPort, opts.EndPort)
	if err != nil {
		return err
	}
	hosts = gen.Hosts()

	// 2. Build the service filter chain.
	chain := filter.NewChain()
	if len(opts.IncludeServices) > 0 || len(opts.ExcludeServices) > 0 {
		sf, err := filter.NewServiceFilter(opts.IncludeServices, opts.ExcludeServices)
		if err != nil {
			return &config.Error{Field: "service filter", Reason: err.Error()}
		}
		chain.Add(sf)
	}

	// 3. Resolve every host once up front.
	resolver := newResolver()
	failed := resolver.ResolveAll(ctx, hosts)
	if len(failed) == len(hosts) {
		return fmt.Errorf("no host resolves: %w", failed[hosts[0]])
	}
	for _, h := range hosts {
		if err, ok := failed[h]; ok {
			logger.Warn("host does not resolve, its endpoints will be reported as failed", "host", h, "err", err)
		}
	}

	// 4. Create output writer.
	out, err := output.Open(output.Options{
		Format:     opts.OutputFormat,
		OutputFile: opts.OutputFile,
		Verbose:    opts.Verbose,
		NoColor:    opts.NoColor,
		Tree:       opts.Tree,
	})
	if err != nil {
		return err
	}
	defer out.Close()

	if !opts.Quiet {
		printBanner(opts, hosts, gen.Count())
	}

	// 5. Assemble the unit of work.
	throttler := scanner.NewThrottler(opts.MaxRate, opts.AdaptiveThrottle, logger)
	unit := &scanner.Scanner{
		Prober: scanner.NewProber(scanner.ProberConfig{
			Timeout:  opts.Timeout,
			TLS:      opts.TLS,
			Resolver: resolver,
			Filter:   chain,
		}),
		Throttler: throttler,
		Logger:    logger,
	}
	if !opts.NoPrecheck {
		unit.Precheck = scanner.NewPrechecker(resolver, opts.PrecheckTimeout)
	}
	if opts.Ping {
		unit.Liveness = netutil.NewLivenessChecker(opts.PrecheckTimeout, netutil.DefaultResolveTTL, nil)
	}

	session := scanner.NewSession(scanner.SessionConfig{
		Hosts:       hosts,
		StartPort:   opts.StartPort,
		EndPort:     opts.EndPort,
		Concurrency: opts.Concurrency,
		Continuous:  opts.Continuous,
		Interval:    opts.Rate,
		StopOnFirst: opts.StopOnFirst,
		MaxCycles:   opts.MaxCycles,
	})
	logger.Debug("session created", "id", session.ID, "endpoints", gen.Count())

	if err := out.WriteHeader(session); err != nil {
		return err
	}

	// 6. Interactive pause and progress.
	pauser, restoreTerm := startStdinToggle(logger, opts.Quiet)
	defer restoreTerm()

	progress := output.NewProgress(os.Stderr, gen.Count(), opts.Quiet)
	progress.Start()

	var hookRunner *hook.Runner
	if opts.OnFoundCmd != "" {
		hookRunner = hook.NewRunner(opts.OnFoundCmd, os.Stderr, os.Stderr)
	}
	seen := filter.NewDuplicateTracker()
	color := output.ColorEnabled(os.Stderr, opts.NoColor)

	var writeErr error
	orch := &scanner.Orchestrator{
		Unit:      unit,
		Throttler: throttler,
		Pauser:    pauser,
		Logger:    logger,
		OnState: func(st scanner.State) {
			if st == scanner.Running {
				progress.BeginCycle(len(session.Cycles) + 1)
			}
		},
		OnResult: func(cycle int, r scanner.Result) {
			progress.Record(r)
			if !r.Hit() {
				return
			}
			isNew := seen.First(r.Endpoint.Address(), r.Services)
			if !opts.Quiet && isNew {
				progress.Clear()
				printFound(r, color)
			}
			if hookRunner != nil && isNew {
				if err := hookRunner.Run(ctx, session.ID, cycle, r); err != nil {
					logger.Warn("on-found hook failed", "err", err)
				}
			}
		},
		OnCycle: func(c *scanner.CycleResult) {
			if writeErr != nil {
				return
			}
			progress.Clear()
			writeErr = out.WriteCycle(c)
		},
	}

	// 7. Run the session.
	runErr := orch.Run(ctx, session)
	progress.Stop()
	restoreTerm()

	if writeErr != nil {
		return fmt.Errorf("writing report: %w", writeErr)
	}
	var cfgErr *config.Error
	if errors.As(runErr, &cfgErr) {
		return runErr
	}
	if err := out.WriteFooter(session); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	switch {
	case runErr == nil:
		return nil
	case ctx.Err() == nil:
		return runErr
	case opts.Continuous:
		// Continuous mode only ends by interrupt or its cycle cap.
		return nil
	default:
		return ErrInterrupted
	}
}

func printFound(r scanner.Result, color bool) {
	g, rs := "\033[32m", "\033[0m"
	if !color {
		g, rs = "", ""
	}
	fmt.Fprintf(os.Stderr, "%s[+]%s %s: %s\n", g, rs, r.Endpoint.Address(), strings.Join(r.Services, ", "))
}

func printBanner(opts *config.Options, hosts []string, endpoints int) {
	const (
		cyan   = "\033[36m"
		white  = "\033[97m"
		dim    = "\033[2m"
		green  = "\033[32m"
		yellow = "\033[33m"
		reset  = "\033[0m"
	)

	c, w, d, g, y, rs := cyan, white, dim, green, yellow, reset
	if !output.ColorEnabled(os.Stderr, opts.NoColor) {
		c, w, d, g, y, rs = "", "", "", "", "", ""
	}

	fmt.Fprintln(os.Stderr)
	for i, line := range version.Logo {
		suffix := ""
		if i == len(version.Logo)-2 {
			suffix = fmt.Sprintf("%sv%s%s", d, strings.TrimPrefix(version.Version, "v"), rs)
		}
		fmt.Fprintf(os.Stderr, "%s%s%s%s\n", c, line, rs, suffix)
	}
	fmt.Fprintf(os.Stderr, "%s    gRPC reflection scanner%s\n\n", w, rs)

	hostLabel := strings.Join(hosts, ", ")
	if len(hosts) > 5 {
		hostLabel = fmt.Sprintf("%s, ... (%d hosts)", strings.Join(hosts[:5], ", "), len(hosts))
	}
	mode := "one-shot"
	if opts.Continuous {
		mode = fmt.Sprintf("continuous, every %s", opts.Rate)
	}
	onOff := func(b bool) string {
		if b {
			return g + "ON" + rs
		}
		return d + "OFF" + rs
	}

	fmt.Fprintf(os.Stderr, "%s  ──────────────────────────────────────%s\n", d, rs)
	fmt.Fprintf(os.Stderr, "  %sHosts:%s         %s%s%s\n", d, rs, w, hostLabel, rs)
	fmt.Fprintf(os.Stderr, "  %sPorts:%s         %s%d-%d (%d endpoints)%s\n", d, rs, w, opts.StartPort, opts.EndPort, endpoints, rs)
	fmt.Fprintf(os.Stderr, "  %sConcurrency:%s   %s%d%s\n", d, rs, y, opts.Concurrency, rs)
	fmt.Fprintf(os.Stderr, "  %sTimeout:%s       %s%s%s\n", d, rs, w, opts.Timeout, rs)
	fmt.Fprintf(os.Stderr, "  %sMode:%s          %s%s%s\n", d, rs, y, mode, rs)
	fmt.Fprintf(os.Stderr, "  %sPrecheck:%s      %s\n", d, rs, onOff(!opts.NoPrecheck))
	fmt.Fprintf(os.Stderr, "  %sStop on first:%s %s\n", d, rs, onOff(opts.StopOnFirst))
	if opts.TLS {
		fmt.Fprintf(os.Stderr, "  %sTransport:%s     %sTLS (unverified)%s\n", d, rs, y, rs)
	}
	if opts.MaxRate > 0 {
		fmt.Fprintf(os.Stderr, "  %sMax rate:%s      %s%d/s%s\n", d, rs, y, opts.MaxRate, rs)
	}
	fmt.Fprintf(os.Stderr, "%s  ──────────────────────────────────────%s\n\n", d, rs)
}
