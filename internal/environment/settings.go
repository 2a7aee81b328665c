package environment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// Settings is the content of settings.yml.
type Settings struct {
	ProxySettings *ProxySettings `yaml:"proxy_settings,omitempty"`
}

// ProxySettings are exported to every package-manager command.
type ProxySettings struct {
	HTTP    string `yaml:"http,omitempty"`
	HTTPS   string `yaml:"https,omitempty"`
	NoProxy string `yaml:"no_proxy,omitempty"`
}

// LoadSettings reads path. A missing file yields empty settings.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	return &s, nil
}

// SaveSettings writes s to path, creating the parent directory.
func SaveSettings(path string, s *Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Env returns the proxy variables in both spellings understood by conda and
// pip.
func (s *Settings) Env() []string {
	if s == nil || s.ProxySettings == nil {
		return nil
	}
	var env []string
	add := func(name, value string) {
		if value != "" {
			env = append(env, name+"="+value)
		}
	}
	p := s.ProxySettings
	add("HTTP_PROXY", p.HTTP)
	add("http_proxy", p.HTTP)
	add("HTTPS_PROXY", p.HTTPS)
	add("https_proxy", p.HTTPS)
	add("NO_PROXY", p.NoProxy)
	add("no_proxy", p.NoProxy)
	return env
}
