package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "127.0.0.1:5000", cfg.Address)
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(file, []byte(
		"address: 0.0.0.0:7000\nlog-level: debug\nwrite-timeout: 3s\nmax-message-size: 1024\n",
	), 0o600))

	t.Setenv("RELAY_LOG_LEVEL", "warn")
	t.Setenv("RELAY_SHOW_ACTIONS", "false")

	cfg, err := LoadConfig([]string{"--config", file, "--max-message-size", "2048"})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:7000", cfg.Address, "config file overrides defaults")
	assert.Equal(t, "warn", cfg.LogLevel, "environment overrides config file")
	assert.False(t, cfg.ShowActions)
	assert.Equal(t, 3*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 2048, cfg.MaxMessageSize, "flags override everything")
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"EmptyAddress", []string{"--address", " "}},
		{"ZeroMessageSize", []string{"--max-message-size", "0"}},
		{"NegativeTimeout", []string{"--write-timeout", "-1s"}},
		{"BadLevel", []string{"--log-level", "loud"}},
		{"UnknownFlag", []string{"--port", "8989"}},
		{"MissingFile", []string{"--config", "/does/not/exist.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigHelp(t *testing.T) {
	_, err := LoadConfig([]string{"--help"})
	assert.ErrorIs(t, err, pflag.ErrHelp)
}
