package environment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/specialistvlad/bioflow/internal/ctxlog"
	"github.com/specialistvlad/bioflow/internal/deps"
	"github.com/specialistvlad/bioflow/internal/launcher"
	"github.com/specialistvlad/bioflow/internal/rpc"
	"golang.org/x/sync/errgroup"
)

// LaunchFunc starts commands and connects to the handshake port.
type LaunchFunc func(ctx context.Context, commands []string, env []string) (*launcher.Child, *rpc.Client, error)

// CreateOptions tune Create.
type CreateOptions struct {
	// MainEnvironment overrides Config.MainEnvironment when set.
	MainEnvironment string
	// ExtraInstall holds additional install commands per platform, run
	// after the dependencies.
	ExtraInstall map[deps.Platform][]string
}

// LaunchOptions tune Launch.
type LaunchOptions struct {
	// Command replaces the default worker command.
	Command []string
	// Env holds extra "KEY=value" variables for the child.
	Env []string
}

// Registry tracks named environments.
type Registry struct {
	cfg        Config
	manager    PackageManager
	runner     launcher.CommandRunner
	launch     LaunchFunc
	direct     rpc.Dispatcher
	httpClient *http.Client
	backOff    func() backoff.BackOff

	bootstrapMu sync.Mutex

	mu        sync.Mutex
	envs      map[string]*Environment
	locks     map[string]*sync.Mutex
	installed map[string]*installed
}

// Option configures a Registry.
type Option func(*Registry)

// WithRunner replaces the command runner used for package-manager calls.
func WithRunner(runner launcher.CommandRunner) Option {
	return func(r *Registry) { r.runner = runner }
}

// WithLauncher replaces the function that starts Client environments.
func WithLauncher(launch LaunchFunc) Option {
	return func(r *Registry) { r.launch = launch }
}

// WithDispatcher sets the in-process dispatcher of Direct environments.
func WithDispatcher(d rpc.Dispatcher) Option {
	return func(r *Registry) { r.direct = d }
}

// WithPackageManager replaces the micromamba command renderer.
func WithPackageManager(m PackageManager) Option {
	return func(r *Registry) { r.manager = m }
}

// WithHTTPClient sets the client used by Bootstrap.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Registry) { r.httpClient = c }
}

// WithBackOff sets the retry policy of Bootstrap downloads.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(r *Registry) { r.backOff = f }
}

// New creates a registry for cfg.
func New(cfg Config, opts ...Option) (*Registry, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	r := &Registry{
		cfg:        cfg,
		runner:     launcher.Shell,
		launch:     launcher.Launch,
		httpClient: http.DefaultClient,
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			return b
		},
		envs:      make(map[string]*Environment),
		locks:     make(map[string]*sync.Mutex),
		installed: make(map[string]*installed),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.manager == nil {
		r.manager = NewMamba(r.cfg)
	}
	return r, nil
}

// Config returns the effective configuration.
func (r *Registry) Config() Config {
	return r.cfg
}

// lockName serializes create and launch for one environment name.
func (r *Registry) lockName(name string) func() {
	r.mu.Lock()
	l, ok := r.locks[name]
	if !ok {
		l = &sync.Mutex{}
		r.locks[name] = l
	}
	r.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Exists reports whether the environment is present on disk.
func (r *Registry) Exists(name string) bool {
	info, err := os.Stat(filepath.Join(r.cfg.EnvPath(name), "conda-meta"))
	return err == nil && info.IsDir()
}

// Create makes sure an environment providing spec is available and reports
// whether a dedicated environment is used. It returns false, creating
// nothing, when the main environment already satisfies spec. An existing
// environment is reused without reinstalling. A required dependency that
// the platform does not support fails with *deps.IncompatibilityError before
// anything is installed.
func (r *Registry) Create(ctx context.Context, name string, spec *deps.Spec, opts CreateOptions) (bool, error) {
	ctx, logger := ctxlog.With(ctx, "env", name)

	resolved, err := deps.Resolve(spec, r.cfg.Platform)
	if err != nil {
		return false, err
	}

	main := opts.MainEnvironment
	if main == "" {
		main = r.cfg.MainEnvironment
	}
	if main != "" && r.Exists(main) {
		ok, err := r.DependenciesAreInstalled(ctx, main, resolved)
		if err != nil {
			return false, err
		}
		if ok {
			logger.Info("Main environment satisfies dependencies.", "main", main)
			return false, nil
		}
	}

	unlock := r.lockName(name)
	defer unlock()

	if r.Exists(name) {
		logger.Debug("Environment already exists.")
		return true, nil
	}

	if err := r.Bootstrap(ctx); err != nil {
		return false, err
	}

	python := resolved.Python
	if python == "" {
		python = r.cfg.PythonVersion
	}
	logger.Info("Creating environment.", "python", python)
	if _, err := r.runner.Run(ctx, r.manager.Create(name, python), r.proxyEnv(ctx)); err != nil {
		return false, fmt.Errorf("failed to create environment %s: %w", name, err)
	}
	if err := r.installDependencies(ctx, name, resolved, opts.ExtraInstall[r.cfg.Platform]); err != nil {
		// A half-built environment would pass Exists on the next Create.
		if rmErr := os.RemoveAll(r.cfg.EnvPath(name)); rmErr != nil {
			logger.Error("Failed to remove incomplete environment.", "error", rmErr)
		}
		return false, err
	}
	logger.Info("Environment created.")
	return true, nil
}

// installDependencies installs res into env. The package snapshot of env is
// dropped here and nowhere else.
func (r *Registry) installDependencies(ctx context.Context, env string, res deps.Resolved, extra []string) error {
	var commands []string
	commands = append(commands, r.manager.InstallConda(env, res.Conda)...)
	commands = append(commands, r.manager.InstallPip(env, res.Pip, false)...)
	commands = append(commands, r.manager.InstallPip(env, res.PipNoDeps, true)...)
	for _, c := range extra {
		commands = append(commands, r.manager.Run(env, c)...)
	}
	if len(commands) == 0 {
		return nil
	}

	ctxlog.FromContext(ctx).Info("Installing dependencies.", "packages", res.All())
	if _, err := r.runner.Run(ctx, commands, r.proxyEnv(ctx)); err != nil {
		return fmt.Errorf("failed to install dependencies into %s: %w", env, err)
	}

	r.mu.Lock()
	delete(r.installed, env)
	r.mu.Unlock()
	return nil
}

// Install adds res to an existing environment.
func (r *Registry) Install(ctx context.Context, name string, spec *deps.Spec) error {
	resolved, err := deps.Resolve(spec, r.cfg.Platform)
	if err != nil {
		return err
	}
	if !r.Exists(name) {
		return fmt.Errorf("environment %s does not exist", name)
	}
	unlock := r.lockName(name)
	defer unlock()
	return r.installDependencies(ctx, name, resolved, nil)
}

// Launch returns the live environment called name, starting it if needed.
// Concurrent launches of one name share a single child.
func (r *Registry) Launch(ctx context.Context, name string, opts LaunchOptions) (*Environment, error) {
	ctx, logger := ctxlog.With(ctx, "env", name)

	unlock := r.lockName(name)
	defer unlock()

	if env, ok := r.Launched(name); ok {
		return env, nil
	}
	r.reapDead(ctx, name)

	commands := opts.Command
	if len(commands) == 0 {
		if !r.Exists(name) {
			return nil, fmt.Errorf("environment %s does not exist", name)
		}
		commands = r.manager.Run(name, r.cfg.WorkerCommand)
	}
	env := append(r.proxyEnv(ctx), opts.Env...)

	logger.Info("Launching environment.")
	child, client, err := r.launch(ctx, commands, env)
	if err != nil {
		return nil, fmt.Errorf("failed to launch environment %s: %w", name, err)
	}

	e := &Environment{Name: name, Kind: Client, child: child, client: client}
	r.mu.Lock()
	r.envs[name] = e
	r.mu.Unlock()
	logger.Info("Environment launched.", "pid", e.Pid())
	return e, nil
}

// CreateAndLaunch creates the environment if needed and launches it. When
// no dedicated environment is needed, a Direct environment is returned.
func (r *Registry) CreateAndLaunch(ctx context.Context, name string, spec *deps.Spec, copts CreateOptions, lopts LaunchOptions) (*Environment, error) {
	created, err := r.Create(ctx, name, spec, copts)
	if err != nil {
		return nil, err
	}
	if created {
		return r.Launch(ctx, name, lopts)
	}
	return r.launchDirect(name)
}

func (r *Registry) launchDirect(name string) (*Environment, error) {
	if r.direct == nil {
		return nil, fmt.Errorf("environment %s would run in-process but no dispatcher is configured", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.envs[name]; ok && !e.Stopped() {
		return e, nil
	}
	e := &Environment{Name: name, Kind: Direct, direct: r.direct}
	r.envs[name] = e
	return e, nil
}

// Launched returns the live environment called name. An environment whose
// child or channel died is not live.
func (r *Registry) Launched(name string) (*Environment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.envs[name]
	if !ok || e.Stopped() || e.dead() {
		return nil, false
	}
	return e, true
}

// reapDead forgets a dead environment called name and releases what is left
// of its child.
func (r *Registry) reapDead(ctx context.Context, name string) {
	r.mu.Lock()
	e, ok := r.envs[name]
	if !ok || e.Stopped() || !e.dead() {
		r.mu.Unlock()
		return
	}
	delete(r.envs, name)
	r.mu.Unlock()

	logger := ctxlog.FromContext(ctx)
	logger.Warn("Environment died; relaunching.")
	if err := e.exit(ctx); err != nil {
		logger.Debug("Reaped dead environment.", "error", err)
	}
}

// List returns the names of launched environments, sorted.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.envs))
	for name := range r.envs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Exit stops the environment called name and forgets it. Exiting an
// environment that is not launched does nothing.
func (r *Registry) Exit(ctx context.Context, name string) error {
	r.mu.Lock()
	e, ok := r.envs[name]
	delete(r.envs, name)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	ctxlog.FromContext(ctx).Info("Exiting environment.", "env", name, "kind", e.Kind.String())
	if err := e.exit(ctx); err != nil {
		return fmt.Errorf("failed to exit environment %s: %w", name, err)
	}
	return nil
}

// ExitAll stops every launched environment concurrently.
func (r *Registry) ExitAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range r.List() {
		g.Go(func() error {
			return r.Exit(gctx, name)
		})
	}
	return g.Wait()
}

// proxyEnv loads the proxy variables from the settings file.
func (r *Registry) proxyEnv(ctx context.Context) []string {
	s, err := LoadSettings(r.cfg.SettingsPath())
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Ignoring unreadable settings.", "error", err)
		return nil
	}
	return s.Env()
}

// Remove deletes an environment from disk. It must not be launched.
func (r *Registry) Remove(ctx context.Context, name string) error {
	if _, ok := r.Launched(name); ok {
		return fmt.Errorf("environment %s is running", name)
	}
	unlock := r.lockName(name)
	defer unlock()

	path := r.cfg.EnvPath(name)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	ctxlog.FromContext(ctx).Info("Removing environment.", "env", name)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove environment %s: %w", name, err)
	}
	return nil
}
