package runner

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"github.com/maxvaer/grpcscan/internal/scanner"
)

// startStdinToggle puts the terminal in raw mode and toggles a pauser on
// Enter or Space. The returned restore func is safe to call more than
// once. When stdin is not a terminal the pauser is nil and scanning can
// not be paused.
func startStdinToggle(logger *log.Logger, quiet bool) (*scanner.Pauser, func()) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, func() {}
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		logger.Warn("could not enable raw terminal, pausing disabled", "err", err)
		return nil, func() {}
	}
	// Raw mode also turns off output post-processing; put \n -> \r\n back.
	fixOutputProcessing(fd)

	var once sync.Once
	restore := func() {
		once.Do(func() { _ = term.Restore(fd, oldState) })
	}

	pauser := scanner.NewPauser()
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}

			switch buf[0] {
			case 0x03: // Ctrl+C
				restore()
				sendInterrupt()
				return
			case '\r', '\n', ' ':
				paused := pauser.Toggle()
				if quiet {
					continue
				}
				if paused {
					fmt.Fprint(os.Stderr, "\r\033[K[*] Scan paused, press Enter or Space to resume\n")
				} else {
					fmt.Fprintf(os.Stderr, "\r\033[K[*] Scan resumed after %s\n", pauser.PausedDuration().Round(time.Millisecond))
				}
			}
		}
	}()

	return pauser, restore
}
