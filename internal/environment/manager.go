package environment

import (
	"strings"

	"github.com/specialistvlad/bioflow/internal/deps"
)

// PackageManager renders the shell commands that manage environments.
type PackageManager interface {
	Create(env, python string) []string
	InstallConda(env string, pkgs []string) []string
	InstallPip(env string, pkgs []string, noDeps bool) []string
	// ListConda prints the installed conda packages as JSON.
	ListConda(env string) []string
	// FreezePip prints the installed pip packages as requirement lines.
	FreezePip(env string) []string
	// Run executes command with the environment activated.
	Run(env, command string) []string
}

// Mamba drives a micromamba binary.
type Mamba struct {
	Binary   string
	Root     string
	Platform deps.Platform
	Channels []string
}

// NewMamba returns the manager for cfg with the conda-forge channel.
func NewMamba(cfg Config) *Mamba {
	return &Mamba{
		Binary:   cfg.ManagerPath(),
		Root:     cfg.Root,
		Platform: cfg.Platform,
		Channels: []string{"conda-forge"},
	}
}

func (m *Mamba) prefix(sub, env string) string {
	path := m.Root + "/envs/" + env
	if m.Platform.IsWindows() {
		path = m.Root + `\envs\` + env
	}
	return m.quote(m.Binary) + " " + sub + " -r " + m.quote(m.Root) + " -p " + m.quote(path)
}

func (m *Mamba) channels() string {
	var b strings.Builder
	for _, c := range m.Channels {
		b.WriteString(" -c ")
		b.WriteString(m.quote(c))
	}
	return b.String()
}

func (m *Mamba) quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = m.quote(v)
	}
	return strings.Join(quoted, " ")
}

// quote protects one argument for the platform shell.
func (m *Mamba) quote(s string) string {
	if m.Platform.IsWindows() {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	if s != "" && strings.IndexFunc(s, unsafeShellRune) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func unsafeShellRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./:=@+,", r)
}

func (m *Mamba) Create(env, python string) []string {
	return []string{m.prefix("create", env) + " -y" + m.channels() + " " + m.quote("python="+python)}
}

func (m *Mamba) InstallConda(env string, pkgs []string) []string {
	if len(pkgs) == 0 {
		return nil
	}
	return []string{m.prefix("install", env) + " -y" + m.channels() + " " + m.quoteAll(pkgs)}
}

func (m *Mamba) InstallPip(env string, pkgs []string, noDeps bool) []string {
	if len(pkgs) == 0 {
		return nil
	}
	cmd := m.prefix("run", env) + " python -m pip install"
	if noDeps {
		cmd += " --no-deps"
	}
	return []string{cmd + " " + m.quoteAll(pkgs)}
}

func (m *Mamba) ListConda(env string) []string {
	return []string{m.prefix("list", env) + " --json"}
}

func (m *Mamba) FreezePip(env string) []string {
	return []string{m.prefix("run", env) + " python -m pip freeze"}
}

func (m *Mamba) Run(env, command string) []string {
	return []string{m.prefix("run", env) + " " + command}
}
