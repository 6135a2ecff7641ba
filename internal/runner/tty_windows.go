//go:build windows

package runner

import "golang.org/x/sys/windows"

func fixOutputProcessing(fd int) {}

func sendInterrupt() {
	_ = windows.GenerateConsoleCtrlEvent(windows.CTRL_C_EVENT, 0)
}
