package launcher

import (
	"fmt"
	"strings"
)

// CommandFailure reports a script that exited with a non-zero status. Output
// holds the tail of the merged stdout/stderr stream.
type CommandFailure struct {
	Commands []string
	ExitCode int
	Output   string
}

func (e *CommandFailure) Error() string {
	last := ""
	if n := len(e.Commands); n > 0 {
		last = e.Commands[n-1]
	}
	msg := fmt.Sprintf("command exited with code %d", e.ExitCode)
	if last != "" {
		msg += fmt.Sprintf(" (script ending with %q)", last)
	}
	if tail := lastLine(e.Output); tail != "" {
		msg += ": " + tail
	}
	return msg
}

// Traceback returns the captured output so it travels with the error.
func (e *CommandFailure) Traceback() string {
	return e.Output
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\r\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
