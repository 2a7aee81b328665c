// Command bioflow-worker serves function calls inside an environment. It
// binds a loopback port, announces it on stdout with the handshake line and
// handles the requests of one controller until asked to exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/bioflow/internal/app"
	"github.com/specialistvlad/bioflow/internal/ctxlog"
	"github.com/specialistvlad/bioflow/internal/registry"
	"github.com/specialistvlad/bioflow/internal/rpc"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run serves until the controller exits or disconnects. stdout carries
// nothing but the handshake line; logs go to stderr, which the controller
// relays into its own log.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	flagSet := flag.NewFlagSet("bioflow-worker", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := app.NewConfig(app.Config{LogLevel: *logLevelFlag, LogFormat: "text"})
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg.LogLevel, cfg.LogFormat, stderr)
	ctx = ctxlog.WithLogger(ctx, logger)

	tools := registry.New(app.CoreModules()...)
	srv := rpc.NewServer(tools)
	if err := srv.Listen(); err != nil {
		return err
	}
	if err := srv.Handshake(stdout); err != nil {
		return fmt.Errorf("failed to write handshake: %w", err)
	}
	logger.Debug("Worker listening.", "port", srv.Port(), "functions", tools.Names())

	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Debug("Worker stopped.")
	return nil
}
