package environment

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/specialistvlad/bioflow/internal/deps"
)

const (
	// DefaultPythonVersion is used when neither the dependency spec nor the
	// configuration names one.
	DefaultPythonVersion = "3.10"
	// DefaultWorkerCommand starts the rpc server inside an environment.
	DefaultWorkerCommand = "bioflow-worker"
	// DefaultBootstrapURL serves the micromamba archive for a platform.
	DefaultBootstrapURL = "https://micro.mamba.pm/api/micromamba/%s/latest"
)

// Config describes where environments live and how they are started.
type Config struct {
	// Root holds envs/, bin/ and settings.yml.
	Root string
	// MainEnvironment names an environment whose packages the controller
	// can already use. Tools whose dependencies it satisfies run Direct.
	MainEnvironment string
	// PythonVersion pins new environments when the spec does not.
	PythonVersion string
	// Platform defaults to the host platform.
	Platform deps.Platform
	// WorkerCommand is run inside an environment by Launch.
	WorkerCommand string
	// BootstrapURL is a format string taking the platform.
	BootstrapURL string
}

func (c *Config) applyDefaults() error {
	if c.Root == "" {
		return errors.New("environment root is required")
	}
	if c.PythonVersion == "" {
		c.PythonVersion = DefaultPythonVersion
	}
	if c.Platform == "" {
		c.Platform = deps.CurrentPlatform()
	}
	if c.WorkerCommand == "" {
		c.WorkerCommand = DefaultWorkerCommand
	}
	if c.BootstrapURL == "" {
		c.BootstrapURL = DefaultBootstrapURL
	}
	return nil
}

// DefaultRoot returns $BIOFLOW_HOME, or ~/.bioflow.
func DefaultRoot() string {
	if v := os.Getenv("BIOFLOW_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bioflow"
	}
	return filepath.Join(home, ".bioflow")
}

// EnvPath is the directory of the named environment.
func (c Config) EnvPath(name string) string {
	return filepath.Join(c.Root, "envs", name)
}

// ManagerPath is the micromamba binary.
func (c Config) ManagerPath() string {
	bin := "micromamba"
	if c.Platform.IsWindows() {
		bin += ".exe"
	}
	return filepath.Join(c.Root, "bin", bin)
}

// SettingsPath is the YAML side-file holding proxy settings.
func (c Config) SettingsPath() string {
	return filepath.Join(c.Root, "settings.yml")
}
