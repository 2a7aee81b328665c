package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/bioflow/internal/ctxlog"
	"github.com/specialistvlad/bioflow/internal/environment"
	"github.com/specialistvlad/bioflow/internal/registry"
	"github.com/specialistvlad/bioflow/internal/scheduler"
	"github.com/specialistvlad/bioflow/internal/sink"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	tools      *registry.Registry
	envs       *environment.Registry
	sinks      sink.Multi
	closers    []io.Closer
	httpServer *http.Server
}

// Option customizes NewApp.
type Option func(*options)

type options struct {
	modules []registry.Module
	envOpts []environment.Option
	sinks   []sink.Sink
}

// WithModules replaces CoreModules as the in-process functions.
func WithModules(modules ...registry.Module) Option {
	return func(o *options) { o.modules = modules }
}

// WithEnvironmentOptions passes options to the environment registry.
func WithEnvironmentOptions(opts ...environment.Option) Option {
	return func(o *options) { o.envOpts = append(o.envOpts, opts...) }
}

// WithSinks adds event sinks next to the log.
func WithSinks(sinks ...sink.Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sinks...) }
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and registries.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.modules == nil {
		o.modules = CoreModules()
	}

	logger := NewLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	tools := registry.New(o.modules...)
	logger.Debug("Modules registered.", "functions", tools.Names())

	root := cfg.Root
	if root == "" {
		root = environment.DefaultRoot()
	}
	envOpts := append([]environment.Option{environment.WithDispatcher(tools)}, o.envOpts...)
	envs, err := environment.New(environment.Config{
		Root:            root,
		MainEnvironment: cfg.MainEnvironment,
		WorkerCommand:   cfg.WorkerCommand,
	}, envOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to configure environments: %w", err)
	}

	a := &App{
		ctx:    ctx,
		outW:   outW,
		logger: logger,
		config: cfg,
		tools:  tools,
		envs:   envs,
		sinks:  append(sink.Multi{sink.NewLogSink(ctx)}, o.sinks...),
	}

	if cfg.UIURL != "" {
		ui, err := sink.DialSocketIO(ctx, cfg.UIURL, sink.SocketIOOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to UI: %w", err)
		}
		a.sinks = append(a.sinks, ui)
		a.closers = append(a.closers, ui)
	}

	a.healthCheckServer()
	return a, nil
}

// Context returns the application context, carrying the logger.
func (a *App) Context() context.Context {
	return a.ctx
}

// Environments returns the environment registry.
func (a *App) Environments() *environment.Registry {
	return a.envs
}

// Close exits every launched environment and releases the sinks and the
// health check server.
func (a *App) Close() error {
	ctx := context.WithoutCancel(a.ctx)
	err := a.envs.ExitAll(ctx)
	for _, c := range a.closers {
		c.Close()
	}
	if herr := a.closeHealthCheckServer(); err == nil {
		err = herr
	}
	return err
}

func (a *App) newScheduler() *scheduler.Scheduler {
	return scheduler.New(a.envs)
}
