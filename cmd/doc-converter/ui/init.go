package ui

import (
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	verboseFlag bool

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// InitUI applies the color and verbosity settings.
func InitUI(noColor, verbose bool) {
	verboseFlag = verbose
	color.NoColor = noColor || color.NoColor
}

// SetOutput redirects UI output. Used by tests.
func SetOutput(out, errOut io.Writer) {
	stdout, stderr = out, errOut
	color.Output = out
	color.Error = errOut
}

// Verbose reports whether verbose output was requested.
func Verbose() bool {
	return verboseFlag
}

// Interactive reports whether stderr is a terminal, so spinners and bars make
// sense.
func Interactive() bool {
	f, ok := stderr.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
