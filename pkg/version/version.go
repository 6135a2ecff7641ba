// Package version holds the build version, overridden at link time with
// -ldflags "-X github.com/maxvaer/grpcscan/pkg/version.Version=1.2.3".
package version

// Version is the current grpcscan version.
var Version = "dev"

// Logo is the ASCII banner shown in help and at scan start.
var Logo = []string{
	`                                             `,
	`   __ _ _ __ _ __   ___ ___  ___ __ _ _ __   `,
	"  / _` | '__| '_ \\ / __/ __|/ __/ _` | '_ \\  ",
	` | (_| | |  | |_) | (__\__ \ (_| (_| | | | | `,
	`  \__, |_|  | .__/ \___|___/\___\__,_|_| |_| `,
	`  |___/     |_|                              `,
}
