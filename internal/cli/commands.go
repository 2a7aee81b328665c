package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/specialistvlad/bioflow/internal/app"
	"github.com/specialistvlad/bioflow/internal/scheduler"
)

// Execute runs cmd against a. Failures are reported on out and returned as
// *ExitError.
func Execute(ctx context.Context, cmd *Command, a *app.App, out io.Writer) error {
	p := newPrinter(out)
	switch cmd.Name {
	case "plan":
		ids, err := a.Plan(ctx)
		if err != nil {
			return p.fatal(err)
		}
		p.plan(ids)
		return nil

	case "run":
		report, err := a.Run(ctx)
		if report != nil && len(report.Plan) > 0 {
			p.plan(report.Plan)
		}
		if err != nil {
			return p.fatal(err)
		}
		p.bold.Fprintf(out, "Run %s finished:\n", report.RunID)
		for _, id := range report.Plan {
			p.result(id, report.Results[id])
		}
		return nil

	case "watch":
		if err := a.Watch(ctx); err != nil {
			return p.fatal(err)
		}
		return nil

	case "env create":
		name := cmd.Args[0]
		dedicated, err := a.CreateEnvironment(ctx, name)
		if err != nil {
			return p.fatal(err)
		}
		if dedicated {
			fmt.Fprintf(out, "%s environment %s is ready\n", p.ok.Sprint("✔"), name)
		} else {
			fmt.Fprintf(out, "%s the main environment provides the dependencies of %s\n", p.ok.Sprint("✔"), name)
		}
		return nil

	case "env exists":
		name := cmd.Args[0]
		if !a.EnvironmentExists(name) {
			return &ExitError{Code: 1, Message: fmt.Sprintf("environment %s does not exist", name)}
		}
		fmt.Fprintf(out, "environment %s exists\n", name)
		return nil

	case "env call":
		var args []any
		if len(cmd.Args) == 4 {
			if err := json.Unmarshal([]byte(cmd.Args[3]), &args); err != nil {
				return &ExitError{Code: 2, Message: fmt.Sprintf("ARGS must be a JSON list: %v", err)}
			}
		}
		result, err := a.CallEnvironment(ctx, cmd.Args[0], cmd.Args[1], cmd.Args[2], args)
		if err != nil {
			return p.fatal(err)
		}
		fmt.Fprintln(out, formatValue(result))
		return nil

	case "env remove":
		if err := a.RemoveEnvironment(ctx, cmd.Args[0]); err != nil {
			return p.fatal(err)
		}
		return nil

	case "env exit":
		names, err := a.ExitEnvironments(ctx)
		for _, name := range names {
			fmt.Fprintf(out, "exited %s\n", name)
		}
		if err != nil {
			return p.fatal(err)
		}
		return nil
	}
	return &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q", cmd.Name)}
}

// fatal prints err and converts it into an ExitError. Cancellation exits
// with 130 like an interrupted shell command.
func (p *printer) fatal(err error) error {
	if scheduler.IsCanceled(err) {
		p.failure("canceled", "")
		return &ExitError{Code: 130, Message: err.Error()}
	}
	var taskErr *scheduler.TaskError
	if errors.As(err, &taskErr) {
		p.failure(taskErr.Error(), taskErr.Traceback)
	} else {
		p.failure(err.Error(), "")
	}
	return &ExitError{Code: 1, Message: err.Error()}
}
