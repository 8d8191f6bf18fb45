package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "lvmgate", cfg.Platform.ID)
	assert.Equal(t, "lvm.command.run", cfg.NATS.Subject)
	assert.Equal(t, "lvmgate", cfg.NATS.Queue)
	assert.True(t, cfg.HTTP.Enabled)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Empty(t, cfg.LVM.AllowedCommands)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `{
		"platform": {"org": "acme", "id": "storage-1"},
		"nats": {"urls": ["nats://localhost:4222"]},
		"lvm": {"allowed_commands": ["pvs", "lvs", "vgs"]}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Platform.Org)
	assert.Equal(t, "storage-1", cfg.Platform.ID)
	assert.Equal(t, []string{"nats://localhost:4222"}, cfg.NATS.URLs)
	// Defaults survive a partial file
	assert.Equal(t, "lvm.command.run", cfg.NATS.Subject)
	assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LVMGATE_NATS_URLS", "nats://a:4222,nats://b:4222")
	t.Setenv("LVMGATE_NATS_TOKEN", "secret")
	t.Setenv("LVMGATE_HTTP_ADDR", ":9999")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.NATS.URLs)
	assert.Equal(t, "secret", cfg.NATS.Token)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(_ *Config) {}, ""},
		{"missing platform id", func(c *Config) { c.Platform.ID = "" }, "platform.id"},
		{"bad nats url", func(c *Config) { c.NATS.URLs = []string{"http://x"} }, "invalid NATS URL"},
		{"nats without subject", func(c *Config) {
			c.NATS.URLs = []string{"nats://x:4222"}
			c.NATS.Subject = ""
		}, "nats.subject"},
		{"http without addr", func(c *Config) { c.HTTP.Addr = "" }, "http.addr"},
		{"bad metrics port", func(c *Config) { c.Metrics.Port = 70000 }, "metrics.port"},
		{"empty allowlist entry", func(c *Config) {
			c.LVM.AllowedCommands = []string{"pvs", " "}
		}, "empty entries"},
		{"multi-word allowlist entry", func(c *Config) {
			c.LVM.AllowedCommands = []string{"pvs --all"}
		}, "single verb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestCommandAllowed(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.CommandAllowed("pvs"), "empty allowlist permits everything")

	cfg.LVM.AllowedCommands = []string{"pvs", "lvs"}
	assert.True(t, cfg.CommandAllowed("pvs"))
	assert.False(t, cfg.CommandAllowed("pvremove"))
	assert.False(t, cfg.CommandAllowed(""))
}

func TestSafeConfig(t *testing.T) {
	sc := NewSafeConfig(Default())

	got := sc.Get()
	got.Platform.ID = "mutated"
	assert.Equal(t, "lvmgate", sc.Get().Platform.ID, "Get must return a copy")

	updated := Default()
	updated.Platform.ID = "other"
	require.NoError(t, sc.Update(updated))
	assert.Equal(t, "other", sc.Get().Platform.ID)

	bad := Default()
	bad.Platform.ID = ""
	require.Error(t, sc.Update(bad))
	assert.Equal(t, "other", sc.Get().Platform.ID, "failed update must not apply")

	require.Error(t, sc.Update(nil))
}
