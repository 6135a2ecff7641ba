package scanner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/maxvaer/grpcscan/internal/netutil"
	"github.com/maxvaer/grpcscan/internal/target"
)

// UnexpectedError is a precheck failure that is not a plain "nothing is
// listening" answer, such as a name that does not resolve or a local
// resource limit. It surfaces as ReflectionFailed rather than Unreachable.
type UnexpectedError struct {
	Op  string
	Err error
}

func (e *UnexpectedError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *UnexpectedError) Unwrap() error { return e.Err }

// Prechecker is the cheap TCP connect filter run before the reflection
// handshake.
type Prechecker struct {
	resolver *netutil.Resolver
	timeout  time.Duration
	dialer   *net.Dialer
}

// NewPrechecker returns a prechecker using resolver for host lookups.
func NewPrechecker(resolver *netutil.Resolver, timeout time.Duration) *Prechecker {
	return &Prechecker{
		resolver: resolver,
		timeout:  timeout,
		dialer:   &net.Dialer{Timeout: timeout},
	}
}

// Check reports whether something accepts TCP connections on ep. Refused,
// timed-out, unreachable and reset connections are normal negatives and
// return (false, nil). Anything else returns an *UnexpectedError.
func (p *Prechecker) Check(ctx context.Context, ep target.Endpoint) (bool, error) {
	addrs, err := p.resolver.Resolve(ctx, ep.Host)
	if err != nil {
		return false, &UnexpectedError{Op: "resolve", Err: err}
	}
	addr := net.JoinHostPort(netutil.Pick(addrs).String(), strconv.Itoa(ep.Port))

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	conn, err := p.dialer.DialContext(ctx, "tcp", addr)
	if err == nil {
		_ = conn.Close()
		return true, nil
	}
	if isNegative(err) {
		return false, nil
	}
	return false, &UnexpectedError{Op: "connect", Err: err}
}

func isNegative(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}

// IsResourceExhausted reports local socket exhaustion: too many open files
// or no free ephemeral ports.
func IsResourceExhausted(err error) bool {
	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.EADDRNOTAVAIL)
}

// dialContext connects through the cached resolver. It backs the gRPC
// client so the prober never resolves a host the precheck already did.
func dialContext(resolver *netutil.Resolver) func(context.Context, string) (net.Conn, error) {
	var d net.Dialer
	return func(ctx context.Context, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		addrs, err := resolver.Resolve(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return d.DialContext(ctx, "tcp", net.JoinHostPort(netutil.Pick(addrs).String(), port))
	}
}
