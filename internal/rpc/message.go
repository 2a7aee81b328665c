package rpc

import (
	"fmt"
	"strconv"
	"strings"
)

// Action tags a Message.
type Action string

const (
	ActionExecute           Action = "execute"
	ActionExit              Action = "exit"
	ActionExecutionFinished Action = "execution finished"
	ActionError             Action = "error"
	ActionExited            Action = "exited"
)

// Message is the single record type exchanged on a channel. Which fields are
// set depends on Action.
type Message struct {
	Action Action `json:"action"`

	// execute
	Module   string `json:"module,omitempty"`
	Function string `json:"function,omitempty"`
	Args     []any  `json:"args,omitempty"`

	// execution finished
	Result any `json:"result,omitempty"`

	// error
	Exception string `json:"exception,omitempty"`
	Traceback string `json:"traceback,omitempty"`
}

// Validate checks that the fields mandatory for the action are present.
func (m *Message) Validate() error {
	switch m.Action {
	case ActionExecute:
		if m.Module == "" || m.Function == "" {
			return fmt.Errorf("execute message requires module and function")
		}
	case ActionExit, ActionExecutionFinished, ActionExited:
	case ActionError:
		if m.Exception == "" {
			return fmt.Errorf("error message requires an exception summary")
		}
	case "":
		return fmt.Errorf("message has no action")
	default:
		return fmt.Errorf("unknown action %q", m.Action)
	}
	return nil
}

// HandshakePrefix starts the line an environment prints once it listens.
const HandshakePrefix = "Listening port "

// HandshakeLine renders the handshake line for port, including the newline.
func HandshakeLine(port int) string {
	return HandshakePrefix + strconv.Itoa(port) + "\n"
}

// ParseHandshake extracts the port from a handshake line. Leading output on
// the same line is tolerated since some shells echo without a newline.
func ParseHandshake(line string) (int, bool) {
	i := strings.LastIndex(line, HandshakePrefix)
	if i < 0 {
		return 0, false
	}
	port, err := strconv.Atoi(strings.TrimSpace(line[i+len(HandshakePrefix):]))
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}
