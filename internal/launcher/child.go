package launcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/specialistvlad/bioflow/internal/ctxlog"
)

// maxOutputLines bounds how much output a Child keeps for error reports.
const maxOutputLines = 500

// Child is a running script.
type Child struct {
	commands []string
	cmd      *exec.Cmd
	script   string
	lines    chan string

	mu     sync.Mutex
	output []string

	done chan struct{}
	err  error
}

// Spawn writes commands to a temporary script and starts it with the host
// shell. env entries ("KEY=value") are added to the current environment.
//
// The caller must drain Lines until it is closed, otherwise the child blocks
// once the pipe buffer is full.
func Spawn(ctx context.Context, commands []string, env []string) (*Child, error) {
	if len(commands) == 0 {
		return nil, errors.New("launcher: no commands to run")
	}
	logger := ctxlog.FromContext(ctx)

	script, err := writeScriptFile(commands)
	if err != nil {
		return nil, err
	}

	name, args := shellCommand(script)
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), env...)
	setProcAttr(cmd)

	r, w, err := os.Pipe()
	if err != nil {
		os.Remove(script)
		return nil, fmt.Errorf("failed to create output pipe: %w", err)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		os.Remove(script)
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	// The child holds its own copy of the write end.
	w.Close()

	c := &Child{
		commands: commands,
		cmd:      cmd,
		script:   script,
		lines:    make(chan string, 64),
		done:     make(chan struct{}),
	}
	logger.Debug("Spawned child process.", "pid", cmd.Process.Pid, "script", script, "commands", len(commands))

	go c.pump(r)
	return c, nil
}

// pump reads the merged output until every writer is gone, then reaps the
// process.
func (c *Child) pump(r *os.File) {
	defer close(c.done)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		c.record(line)
		c.lines <- line
	}
	close(c.lines)
	r.Close()

	err := c.cmd.Wait()
	os.Remove(c.script)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			c.err = &CommandFailure{Commands: c.commands, ExitCode: exitErr.ExitCode(), Output: c.Output()}
			return
		}
		c.err = fmt.Errorf("failed to wait for child process: %w", err)
	}
}

func (c *Child) record(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.output = append(c.output, line)
	if len(c.output) > maxOutputLines {
		c.output = c.output[len(c.output)-maxOutputLines:]
	}
}

// Lines streams the merged stdout and stderr, one line at a time. The channel
// is closed when the child and all processes sharing its output are gone.
func (c *Child) Lines() <-chan string {
	return c.lines
}

// Output returns the captured output so far.
func (c *Child) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.output) == 0 {
		return ""
	}
	return strings.Join(c.output, "\n") + "\n"
}

// Pid returns the process id of the shell running the script.
func (c *Child) Pid() int {
	return c.cmd.Process.Pid
}

// Done is closed once the child has exited and been reaped.
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the child exits. A non-zero exit yields a
// *CommandFailure.
func (c *Child) Wait() error {
	<-c.done
	return c.err
}

// Kill terminates the child and all of its descendants.
func (c *Child) Kill() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	return KillTree(c.cmd.Process.Pid)
}
