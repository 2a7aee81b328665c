package launcher

import (
	"context"
	"fmt"

	"github.com/specialistvlad/bioflow/internal/ctxlog"
	"github.com/specialistvlad/bioflow/internal/rpc"
)

// Launch spawns commands, waits for the handshake line and connects to the
// announced port. Output after the handshake keeps flowing to the logger in
// ctx. If the child exits first, the error is a *CommandFailure carrying the
// captured output.
func Launch(ctx context.Context, commands []string, env []string) (*Child, *rpc.Client, error) {
	logger := ctxlog.FromContext(ctx)

	child, err := Spawn(ctx, commands, env)
	if err != nil {
		return nil, nil, err
	}

	port, err := awaitHandshake(ctx, child)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Handshake received.", "pid", child.Pid(), "port", port)

	// Keep draining so the child never blocks on a full pipe.
	go drain(context.WithoutCancel(ctx), child, "Environment output.")

	client, err := rpc.Dial(ctx, port)
	if err != nil {
		child.Kill()
		child.Wait()
		return nil, nil, err
	}
	return child, client, nil
}

func awaitHandshake(ctx context.Context, child *Child) (int, error) {
	logger := ctxlog.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			child.Kill()
			go drain(context.WithoutCancel(ctx), child, "Environment output.")
			child.Wait()
			return 0, fmt.Errorf("launch cancelled: %w", ctx.Err())
		case line, ok := <-child.Lines():
			if !ok {
				err := child.Wait()
				if err == nil {
					err = &CommandFailure{Commands: child.commands, ExitCode: 0, Output: child.Output()}
				}
				return 0, fmt.Errorf("environment exited before handshake: %w", err)
			}
			if port, ok := rpc.ParseHandshake(line); ok {
				return port, nil
			}
			logger.Info(line)
		}
	}
}

// drain forwards the remaining output lines to the logger until the child's
// output closes.
func drain(ctx context.Context, child *Child, msg string) {
	logger := ctxlog.FromContext(ctx)
	for line := range child.Lines() {
		logger.Debug(msg, "line", line)
	}
}
