package environment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yml")

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Nil(t, s.Env(), "missing file means no proxies")

	want := &Settings{ProxySettings: &ProxySettings{HTTP: "http://proxy:3128", NoProxy: "localhost"}}
	require.NoError(t, SaveSettings(path, want))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "proxy_settings:")
	assert.Contains(t, string(raw), "no_proxy: localhost")

	got, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{
		"HTTP_PROXY=http://proxy:3128",
		"http_proxy=http://proxy:3128",
		"NO_PROXY=localhost",
		"no_proxy=localhost",
	}, got.Env())
}

func TestLoadSettings_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	require.NoError(t, os.WriteFile(path, []byte("proxy_settings: [unterminated"), 0o644))
	_, err := LoadSettings(path)
	assert.ErrorContains(t, err, "failed to parse settings")
}
