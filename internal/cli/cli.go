package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/bioflow/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Command is a parsed invocation.
type Command struct {
	// Name is the command, with "env " prefixed for environment
	// subcommands ("env create").
	Name string
	// Args are the positional arguments that are not pipeline paths.
	Args   []string
	Config *app.Config
}

const usage = `
bioflow - run pipelines of tasks across isolated Python environments.

Usage:
  bioflow [options] <command> [arguments]

Commands:
  plan PIPELINE...                     Print the execution order.
  run PIPELINE...                      Execute the pipeline once.
  watch PIPELINE...                    Execute, then re-run changed tasks on every edit.
  env create NAME PIPELINE...          Create the environment NAME declared in the pipeline.
  env exists NAME                      Exit 0 when the environment exists.
  env call NAME MODULE FUNCTION [ARGS] Call MODULE.FUNCTION in the environment. ARGS is a JSON list.
  env remove NAME                      Delete the environment.
  env exit                             Stop the environments launched by this process.

PIPELINE is a .hcl file, a directory of .hcl files or a glob pattern.

Options:
`

// Parse processes command-line arguments. It returns the command, a boolean
// indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Command, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("bioflow", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, usage)
		flagSet.PrintDefaults()
	}

	rootFlag := flagSet.String("root", "", "Environment root directory. Defaults to $BIOFLOW_HOME or ~/.bioflow.")
	mainEnvFlag := flagSet.String("main-env", "", "Environment checked first; tasks run there when it already has their dependencies.")
	workerFlag := flagSet.String("worker", "", "Command started inside environments to serve calls.")
	uiURLFlag := flagSet.String("ui-url", "", "socket.io server that receives run events.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	rest := flagSet.Args()
	if len(rest) == 0 {
		slog.Debug("No command provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	cmd, paths, err := parseCommand(rest)
	if err != nil {
		return nil, false, err
	}
	slog.Debug("Command determined.", "command", cmd.Name, "paths", paths)

	config, err := app.NewConfig(app.Config{
		PipelinePaths:   paths,
		Root:            *rootFlag,
		MainEnvironment: *mainEnvFlag,
		WorkerCommand:   *workerFlag,
		UIURL:           *uiURLFlag,
		LogFormat:       strings.ToLower(*logFormatFlag),
		LogLevel:        strings.ToLower(*logLevelFlag),
		HealthcheckPort: *healthPortFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	cmd.Config = config

	slog.Debug("CLI parser finished successfully.", "config", config)
	return cmd, false, nil
}

// parseCommand splits the positional arguments into the command and its
// pipeline paths.
func parseCommand(rest []string) (*Command, []string, error) {
	name, rest := rest[0], rest[1:]
	switch name {
	case "plan", "run", "watch":
		if len(rest) == 0 {
			return nil, nil, usageError("%s requires a pipeline path", name)
		}
		return &Command{Name: name}, rest, nil
	case "env":
	default:
		return nil, nil, usageError("unknown command %q", name)
	}

	if len(rest) == 0 {
		return nil, nil, usageError("env requires a subcommand: create, exists, call, remove or exit")
	}
	sub, rest := rest[0], rest[1:]
	cmd := &Command{Name: "env " + sub}
	switch sub {
	case "create":
		if len(rest) < 2 {
			return nil, nil, usageError("env create requires NAME and a pipeline path")
		}
		cmd.Args = rest[:1]
		return cmd, rest[1:], nil
	case "exists", "remove":
		if len(rest) != 1 {
			return nil, nil, usageError("env %s requires exactly one NAME", sub)
		}
		cmd.Args = rest
	case "call":
		if len(rest) < 3 || len(rest) > 4 {
			return nil, nil, usageError("env call requires NAME MODULE FUNCTION and optional ARGS")
		}
		cmd.Args = rest
	case "exit":
		if len(rest) != 0 {
			return nil, nil, usageError("env exit takes no arguments")
		}
	default:
		return nil, nil, usageError("unknown env subcommand %q", sub)
	}
	return cmd, nil, nil
}

func usageError(format string, args ...any) error {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}
