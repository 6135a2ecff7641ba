//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package runner

import (
	"os"

	"golang.org/x/sys/unix"
)

// fixOutputProcessing sets OPOST again after term.MakeRaw.
func fixOutputProcessing(fd int) {
	t, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return
	}
	t.Oflag |= unix.OPOST
	_ = unix.IoctlSetTermios(fd, ioctlSetTermios, t)
}

// sendInterrupt re-raises SIGINT so signal.NotifyContext sees the Ctrl+C
// swallowed by raw mode.
func sendInterrupt() {
	_ = unix.Kill(os.Getpid(), unix.SIGINT)
}
