package runner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/maxvaer/grpcscan/internal/config"
	"github.com/maxvaer/grpcscan/internal/netutil"
)

var greeterDesc = grpc.ServiceDesc{
	ServiceName: "demo.Greeter",
	HandlerType: (*any)(nil),
	Metadata:    "greeter.proto",
}

// startReflectionServer serves demo.Greeter with reflection on a loopback
// port whose successor is free, so a two-port scan sees one hit and one
// closed port.
func startReflectionServer(t *testing.T) int {
	t.Helper()
	for i := 0; i < 20; i++ {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		port := lis.Addr().(*net.TCPAddr).Port
		next, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port+1)))
		if err != nil {
			lis.Close()
			continue
		}
		next.Close()

		srv := grpc.NewServer()
		srv.RegisterService(&greeterDesc, struct{}{})
		reflection.Register(srv)
		go srv.Serve(lis)
		t.Cleanup(srv.Stop)
		return port
	}
	t.Skip("could not find two adjacent free ports")
	return 0
}

func testOpts(t *testing.T, port int) *config.Options {
	t.Helper()
	opts := config.Default()
	opts.Hosts = []string{"127.0.0.1"}
	opts.StartPort = port
	opts.EndPort = port + 1
	opts.Concurrency = 2
	opts.Quiet = true
	opts.NoColor = true
	opts.OutputFile = filepath.Join(t.TempDir(), "report.txt")
	return &opts
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestRunTextReport(t *testing.T) {
	port := startReflectionServer(t)
	opts := testOpts(t, port)
	opts.Tree = true

	if err := Run(context.Background(), opts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out := readOutput(t, opts.OutputFile)
	for _, want := range []string{
		"grpcscan session ",
		fmt.Sprintf("Ports:  %d-%d (2 endpoints, concurrency 2)", port, port+1),
		"Scanned: 2 | Reachable: 1 | Reflection: 1 | Found: 1 | Failed: 0 | Skipped: 0",
		fmt.Sprintf("[+] 127.0.0.1:%d", port),
		"        demo.Greeter",
		"Found 1 gRPC server(s) with reflection in 1 cycle(s) [completed]",
		"Discovered services:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRunJSONReport(t *testing.T) {
	port := startReflectionServer(t)
	opts := testOpts(t, port)
	opts.OutputFormat = "json"

	if err := Run(context.Background(), opts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var report struct {
		State   string `json:"state"`
		Summary struct {
			StopReason string `json:"stop_reason"`
			Discovered []struct {
				Endpoint struct {
					Port int `json:"port"`
				} `json:"endpoint"`
				Services []string `json:"services"`
			} `json:"discovered"`
		} `json:"summary"`
	}
	if err := sonic.UnmarshalString(readOutput(t, opts.OutputFile), &report); err != nil {
		t.Fatal(err)
	}
	if report.State != "done" {
		t.Errorf("state = %q, want done", report.State)
	}
	if len(report.Summary.Discovered) != 1 || report.Summary.Discovered[0].Endpoint.Port != port {
		t.Fatalf("discovered = %+v", report.Summary.Discovered)
	}
	found := false
	for _, s := range report.Summary.Discovered[0].Services {
		if s == "demo.Greeter" {
			found = true
		}
	}
	if !found {
		t.Errorf("services = %v, want demo.Greeter", report.Summary.Discovered[0].Services)
	}
}

func TestRunServiceFilterAndHook(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("hook test uses sh")
	}
	port := startReflectionServer(t)
	opts := testOpts(t, port)
	opts.IncludeServices = []string{"demo.*"}
	hookOut := filepath.Join(t.TempDir(), "hook.json")
	opts.OnFoundCmd = "cat > '" + hookOut + "'"

	if err := Run(context.Background(), opts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	report := readOutput(t, opts.OutputFile)
	if strings.Contains(report, "grpc.reflection") {
		t.Errorf("reflection services should be filtered out:\n%s", report)
	}
	payload := readOutput(t, hookOut)
	for _, want := range []string{`"port":` + strconv.Itoa(port), `"services":["demo.Greeter"]`} {
		if !strings.Contains(payload, want) {
			t.Errorf("hook payload missing %s: %s", want, payload)
		}
	}
}

func TestRunConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*config.Options)
		field string
	}{
		{name: "bad cidr", edit: func(o *config.Options) { o.Hosts = []string{"10.0.0.0/33"} }, field: "hosts"},
		{name: "missing hosts file", edit: func(o *config.Options) { o.HostsFile = "/nonexistent/hosts.txt" }, field: "hosts-file"},
		{name: "bad service pattern", edit: func(o *config.Options) { o.IncludeServices = []string{"["} }, field: "service filter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOpts(t, 50000)
			tt.edit(opts)
			err := Run(context.Background(), opts)
			var cfgErr *config.Error
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *config.Error, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("field = %q, want %q", cfgErr.Field, tt.field)
			}
			if _, err := os.Stat(opts.OutputFile); !os.IsNotExist(err) {
				t.Error("no report should be written when configuration is invalid")
			}
		})
	}
}

func TestRunNoHostResolves(t *testing.T) {
	orig := newResolver
	t.Cleanup(func() { newResolver = orig })
	newResolver = func() *netutil.Resolver {
		return netutil.NewResolver(time.Minute, func(ctx context.Context, network, host string) ([]netip.Addr, error) {
			return nil, errors.New("no such host")
		})
	}

	opts := testOpts(t, 50000)
	opts.Hosts = []string{"a.invalid", "b.invalid"}
	err := Run(context.Background(), opts)
	if err == nil || !strings.Contains(err.Error(), "no host resolves") {
		t.Fatalf("err = %v", err)
	}
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		t.Error("resolution failure is not a configuration error")
	}
}

func TestRunInterrupted(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { lis.Close() })
	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			go func() {
				time.Sleep(5 * time.Second)
				conn.Close()
			}()
		}
	}()
	port := lis.Addr().(*net.TCPAddr).Port

	opts := testOpts(t, port)
	opts.EndPort = port
	opts.Timeout = 10 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = Run(ctx, opts)
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("cancellation took %s", time.Since(start))
	}
	if out := readOutput(t, opts.OutputFile); !strings.Contains(out, "[cancelled]") {
		t.Errorf("partial report missing stop reason:\n%s", out)
	}
}

func TestRunContinuousInterruptIsClean(t *testing.T) {
	port := startReflectionServer(t)
	opts := testOpts(t, port)
	opts.Continuous = true
	opts.Rate = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := Run(ctx, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := readOutput(t, opts.OutputFile)
	if !strings.Contains(out, "in 1 cycle(s) [cancelled]") {
		t.Errorf("report:\n%s", out)
	}
}
