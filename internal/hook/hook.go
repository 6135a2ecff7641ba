package hook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/maxvaer/grpcscan/internal/scanner"
)

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 30 * time.Second

// payload is the JSON document sent to the hook command via stdin.
type payload struct {
	Session  uuid.UUID `json:"session"`
	Cycle    int       `json:"cycle"`
	Host     string    `json:"host"`
	Port     int       `json:"port"`
	Address  string    `json:"address"`
	Services []string  `json:"services"`
}

// Service names come from the scanned server. Only well-formed protobuf
// full names are substituted into the command line.
var protoName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Runner executes a shell command for each discovered endpoint.
type Runner struct {
	cmd     string
	timeout time.Duration
	stdout  io.Writer
	stderr  io.Writer
}

// NewRunner creates a hook runner. cmd is the shell command to execute;
// its output is copied to stdout and stderr.
func NewRunner(cmd string, stdout, stderr io.Writer) *Runner {
	return &Runner{cmd: cmd, timeout: DefaultTimeout, stdout: stdout, stderr: stderr}
}

// Expand replaces the {host}, {port}, {addr} and {services} placeholders.
func (r *Runner) Expand(res scanner.Result) string {
	var names []string
	for _, s := range res.Services {
		if protoName.MatchString(s) {
			names = append(names, s)
		}
	}
	repl := strings.NewReplacer(
		"{host}", quote(res.Endpoint.Host),
		"{port}", strconv.Itoa(res.Endpoint.Port),
		"{addr}", quote(res.Endpoint.Address()),
		"{services}", strings.Join(names, ","),
	)
	return repl.Replace(r.cmd)
}

// Run executes the hook command with the discovery as JSON on stdin.
func (r *Runner) Run(ctx context.Context, session uuid.UUID, cycle int, res scanner.Result) error {
	data, err := sonic.Marshal(payload{
		Session:  session,
		Cycle:    cycle,
		Host:     res.Endpoint.Host,
		Port:     res.Endpoint.Port,
		Address:  res.Endpoint.Address(),
		Services: res.Services,
	})
	if err != nil {
		return fmt.Errorf("hook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	shell, args := shellCommand()
	cmd := exec.CommandContext(ctx, shell, append(args, r.Expand(res))...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("hook for %s: %w", res.Endpoint.Address(), err)
	}
	return nil
}

func shellCommand() (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}
	}
	return "sh", []string{"-c"}
}

func quote(s string) string {
	if runtime.GOOS == "windows" {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
