// Package debug provides environment-gated diagnostic logging.
// Set PLANSYNC_DEBUG to any non-empty value to enable output.
package debug

import (
	"fmt"
	"os"
)

var (
	enabled     = os.Getenv("PLANSYNC_DEBUG") != ""
	verboseMode = false
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables debug output regardless of the environment.
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// Logf writes a diagnostic line to stderr when debugging is enabled.
// A trailing newline is appended when the format lacks one.
func Logf(format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	fmt.Fprint(os.Stderr, msg)
}
