package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.CurrentContext)
	assert.NotNil(t, cfg.Contexts)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := &Config{}
	setContext(cfg, Context{Name: "dev", Server: "http://localhost:8080", Token: "dai_abc", Timeout: "10s"}, false)
	setContext(cfg, Context{Name: "prod", Server: "https://docai.example.com"}, false)
	require.NoError(t, SaveConfig(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "dev", loaded.CurrentContext)
	assert.Equal(t, cfg.Contexts, loaded.Contexts)
}

func TestSetContextMakeCurrent(t *testing.T) {
	cfg := &Config{}
	setContext(cfg, Context{Name: "a", Server: "http://a"}, false)
	setContext(cfg, Context{Name: "b", Server: "http://b"}, false)
	assert.Equal(t, "a", cfg.CurrentContext)

	setContext(cfg, Context{Name: "b", Server: "http://b"}, true)
	assert.Equal(t, "b", cfg.CurrentContext)
}

func TestUpdateToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := &Config{}
	setContext(cfg, Context{Name: "dev", Server: "http://localhost", Token: "old"}, true)
	require.NoError(t, SaveConfig(cfg, path))

	require.NoError(t, updateToken(path, "dev", ""))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Empty(t, loaded.Contexts["dev"].Token)
	assert.Equal(t, "http://localhost", loaded.Contexts["dev"].Server)

	assert.Error(t, updateToken(path, "missing", "x"))
}

func TestResolvedContextOverrides(t *testing.T) {
	cfg := &Config{}
	setContext(cfg, Context{Name: "dev", Server: "http://saved", Token: "saved-token"}, true)

	a := &app{config: cfg}
	ctx, err := a.resolvedContext()
	require.NoError(t, err)
	assert.Equal(t, "http://saved", ctx.Server)
	assert.Equal(t, "saved-token", ctx.Token)

	a = &app{config: cfg, overrideURL: "http://flag", overrideToken: "flag-token", timeout: 3 * time.Second}
	ctx, err = a.resolvedContext()
	require.NoError(t, err)
	assert.Equal(t, "http://flag", ctx.Server)
	assert.Equal(t, "flag-token", ctx.Token)
	assert.Equal(t, "3s", ctx.Timeout)
	assert.Equal(t, "saved-token", cfg.Contexts["dev"].Token)
}

func TestResolvedContextWithoutConfig(t *testing.T) {
	a := &app{config: &Config{Contexts: map[string]Context{}}}
	_, err := a.resolvedContext()
	assert.ErrorContains(t, err, "not found")

	a.overrideURL = "http://adhoc"
	ctx, err := a.resolvedContext()
	require.NoError(t, err)
	assert.Equal(t, "http://adhoc", ctx.Server)
}

func TestRequestTimeout(t *testing.T) {
	d, err := Context{}.RequestTimeout()
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = Context{Timeout: "1m30s"}.RequestTimeout()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = Context{Name: "dev", Timeout: "soon"}.RequestTimeout()
	assert.ErrorContains(t, err, "invalid timeout")
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "1.5 KiB", humanBytes(1536))
	assert.Equal(t, "2.0 MiB", humanBytes(2<<20))
}
