package netutil

import (
	"context"
	"runtime"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	probing "github.com/prometheus-community/pro-bing"
	"golang.org/x/sync/singleflight"
)

// EchoFunc sends an ICMP echo to addr and reports whether a reply arrived.
type EchoFunc func(ctx context.Context, addr string, timeout time.Duration) (bool, error)

type aliveEntry struct {
	alive bool
	ok    bool
}

// LivenessChecker answers "does this host respond to ICMP echo" with a
// per-host cache, so a host is pinged once per TTL instead of once per port.
type LivenessChecker struct {
	timeout time.Duration
	cache   *ttlworker.Cache[string, aliveEntry]
	group   singleflight.Group
	echo    EchoFunc
}

// NewLivenessChecker returns a checker. A nil echo uses pro-bing.
func NewLivenessChecker(timeout, ttl time.Duration, echo EchoFunc) *LivenessChecker {
	if ttl <= 0 {
		ttl = DefaultResolveTTL
	}
	if echo == nil {
		echo = icmpEcho
	}
	return &LivenessChecker{
		timeout: timeout,
		cache:   ttlworker.NewCache[string, aliveEntry](ttl),
		echo:    echo,
	}
}

// Alive reports whether host answered an echo request. Errors opening the
// ICMP socket count as alive: the gate only removes hosts it has positive
// evidence against.
func (c *LivenessChecker) Alive(ctx context.Context, host string) bool {
	if e := c.cache.Get(host); e.ok {
		return e.alive
	}
	v, _, _ := c.group.Do(host, func() (any, error) {
		alive, err := c.echo(ctx, host, c.timeout)
		if err != nil {
			alive = true
		}
		if ctx.Err() == nil {
			c.cache.Set(host, aliveEntry{alive: alive, ok: true})
		}
		return alive, nil
	})
	return v.(bool)
}

func icmpEcho(ctx context.Context, addr string, timeout time.Duration) (bool, error) {
	pinger, err := probing.NewPinger(addr)
	if err != nil {
		return false, err
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	// Unprivileged UDP echo works on Linux and macOS; Windows needs raw.
	pinger.SetPrivileged(runtime.GOOS == "windows")
	if err := pinger.RunWithContext(ctx); err != nil {
		return false, err
	}
	return pinger.Statistics().PacketsRecv > 0, nil
}
