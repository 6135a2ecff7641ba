package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maxvaer/grpcscan/internal/config"
	"github.com/maxvaer/grpcscan/internal/runner"
	"github.com/maxvaer/grpcscan/pkg/version"
)

// Process exit codes.
const (
	exitFailure     = 1
	exitConfig      = 2
	exitInterrupted = 130
)

var opts = config.Default()

type flagGroup struct {
	title string
	flags []string
}

var helpGroups = []flagGroup{
	{"TARGET", []string{"hosts", "hosts-file", "start", "end"}},
	{"PERFORMANCE", []string{"concurrency", "timeout", "precheck-timeout", "no-precheck", "ping", "tls", "max-rate", "adaptive-throttle"}},
	{"MODE", []string{"continuous", "rate", "stop-on-first", "max-cycles"}},
	{"FILTERS", []string{"include-service", "exclude-service"}},
	{"OUTPUT", []string{"output", "format", "verbose", "quiet", "no-color", "tree", "on-found"}},
	{"CONFIGURATION", []string{"config", "env-file", "debug"}},
}

var rootCmd = &cobra.Command{
	Use:     "grpcscan [flags]",
	Short:   "Find gRPC servers that expose server reflection",
	Version: version.Version,
	Long: `grpcscan sweeps host and port ranges for gRPC servers and lists the
services each one advertises through the server reflection API. It can
run once or keep rescanning to catch services that start later.`,
	Example: `  grpcscan
  grpcscan -H 10.0.0.5 -s 9000 -e 9100
  grpcscan -H 192.168.1.0/24 -s 50051 -e 50051 -c 200
  grpcscan -l hosts.txt --tls --format json -o found.json
  grpcscan --continuous --rate 5s --stop-on-first
  grpcscan --exclude-service 'grpc.*' --tree
  grpcscan --on-found 'grpcurl -plaintext {addr} list'`,
	PreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runner.Run(ctx, &opts)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadConfig layers the configuration sources: defaults, then the YAML
// file, then GRPCSCAN_* variables, then explicit flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnvFile(opts.EnvFile); err != nil {
		return &config.Error{Field: "env-file", Reason: err.Error()}
	}

	layered := &config.File{}
	if opts.ConfigFile != "" {
		f, err := config.LoadFile(opts.ConfigFile)
		if err != nil {
			return &config.Error{Field: "config", Reason: err.Error()}
		}
		layered = f
	}
	env, err := config.FromEnv(os.LookupEnv)
	if err != nil {
		return err
	}
	layered.Overlay(env).Apply(&opts, cmd.Flags().Changed)

	return opts.Validate()
}

func init() {
	f := rootCmd.Flags()

	// Target
	f.StringSliceVarP(&opts.Hosts, "hosts", "H", opts.Hosts, "Hosts to scan, comma-separated (CIDR ranges expanded)")
	f.StringVarP(&opts.HostsFile, "hosts-file", "l", "", "File with one host per line")
	f.IntVarP(&opts.StartPort, "start", "s", opts.StartPort, "First port of the range")
	f.IntVarP(&opts.EndPort, "end", "e", opts.EndPort, "Last port of the range")

	// Performance
	f.IntVarP(&opts.Concurrency, "concurrency", "c", opts.Concurrency, "Maximum endpoints scanned at once")
	f.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "Reflection probe timeout")
	f.DurationVar(&opts.PrecheckTimeout, "precheck-timeout", opts.PrecheckTimeout, "TCP connect precheck timeout")
	f.BoolVar(&opts.NoPrecheck, "no-precheck", false, "Probe every endpoint without a TCP precheck")
	f.BoolVar(&opts.Ping, "ping", false, "Skip hosts that do not answer ICMP echo")
	f.BoolVar(&opts.TLS, "tls", false, "Connect over TLS (certificates are not verified)")
	f.IntVar(&opts.MaxRate, "max-rate", 0, "Maximum endpoints per second (0 = unlimited)")
	f.BoolVar(&opts.AdaptiveThrottle, "adaptive-throttle", false, "Back off when sockets or file descriptors run out")

	// Mode
	f.BoolVar(&opts.Continuous, "continuous", false, "Rescan until interrupted")
	f.DurationVar(&opts.Rate, "rate", opts.Rate, "Delay between cycles in continuous mode")
	f.BoolVar(&opts.StopOnFirst, "stop-on-first", false, "Stop at the first endpoint that lists services")
	f.IntVar(&opts.MaxCycles, "max-cycles", 0, "Stop continuous mode after this many cycles (0 = unbounded)")

	// Filters
	f.StringSliceVar(&opts.IncludeServices, "include-service", nil, "Only report services matching these globs")
	f.StringSliceVar(&opts.ExcludeServices, "exclude-service", nil, "Drop services matching these globs")

	// Output
	f.StringVarP(&opts.OutputFile, "output", "o", "", "Report file (default stdout)")
	f.StringVar(&opts.OutputFormat, "format", opts.OutputFormat, "Report format: text, json, csv")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "List the outcome of every endpoint")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "No banner, progress or status lines")
	f.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")
	f.BoolVar(&opts.Tree, "tree", false, "Print a tree of discovered services after the scan")
	f.StringVar(&opts.OnFoundCmd, "on-found", "", "Shell command per discovered endpoint ({host} {port} {addr} {services}, JSON on stdin)")

	// Configuration
	f.StringVar(&opts.ConfigFile, "config", "", "YAML config file")
	f.StringVar(&opts.EnvFile, "env-file", "", "dotenv file to load (default .env if present)")
	f.BoolVar(&opts.Debug, "debug", false, "Debug logging")

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		w := os.Stderr
		fmt.Fprint(w, helpBanner(cmd.Version))
		fmt.Fprintf(w, "%s\n\nUsage:\n  %s\n", cmd.Long, cmd.UseLine())
		fmt.Fprintf(w, "\nExamples:\n%s\n", cmd.Example)
		fmt.Fprintf(w, "\nFlags:\n")
		for _, g := range helpGroups {
			fmt.Fprintf(w, "\n%s:\n", g.title)
			for _, name := range g.flags {
				if f := cmd.Flags().Lookup(name); f != nil {
					fmt.Fprintln(w, formatFlag(f))
				}
			}
		}
		fmt.Fprintln(w)
	})

}

// Execute runs the root command and exits with the code for its outcome.
func Execute() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	switch {
	case err == nil:
	case errors.Is(err, runner.ErrInterrupted):
		fmt.Fprintln(os.Stderr, "[!] Scan interrupted, partial report written")
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	var cfgErr *config.Error
	switch {
	case err == nil:
		return 0
	case errors.Is(err, runner.ErrInterrupted):
		return exitInterrupted
	case errors.As(err, &cfgErr):
		return exitConfig
	default:
		return exitFailure
	}
}

func formatFlag(f *pflag.Flag) string {
	var left string
	if f.Shorthand != "" {
		left = fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	} else {
		left = fmt.Sprintf("    --%s", f.Name)
	}
	if typ := f.Value.Type(); typ != "bool" {
		left += " " + typ
	}

	const col = 36
	if len(left) < col {
		left += strings.Repeat(" ", col-len(left))
	}

	right := f.Usage
	switch def := f.DefValue; def {
	case "", "false", "0", "0s", "[]":
	default:
		right += fmt.Sprintf(" (default %s)", def)
	}
	return "   " + left + right
}

func helpBanner(ver string) string {
	if ver != "dev" && ver != "" && !strings.HasPrefix(ver, "v") {
		ver = "v" + ver
	}
	var b strings.Builder
	b.WriteString("\n")
	for i, line := range version.Logo {
		b.WriteString(line)
		if i == len(version.Logo)-2 {
			b.WriteString(ver)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}
