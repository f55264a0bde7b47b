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
	path := filepath.Join(t.TempDir(), "convene.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "convene", cfg.Agent.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Negotiation.MaxTurns)
	assert.Equal(t, 9, cfg.Preferences.PreferredStartHour)
	assert.Equal(t, 17, cfg.Preferences.PreferredEndHour)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.False(t, cfg.Observability.Enabled)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
agent:
  name: alice-agent
server:
  port: 9000
store:
  driver: memory
preferences:
  preferred_start_hour: 8
  blocked_partners:
    - agent-evil
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "alice-agent", cfg.Agent.Name)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 8, cfg.Preferences.PreferredStartHour)
	assert.Equal(t, 17, cfg.Preferences.PreferredEndHour, "unset fields keep defaults")
	assert.Equal(t, []string{"agent-evil"}, cfg.Preferences.BlockedPartners)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("CONVENE_TEST_KEY", "sk-secret")
	t.Setenv("CONVENE_TEST_PORT", "9100")

	path := writeConfig(t, `
llm:
  api_key: ${CONVENE_TEST_KEY}
server:
  port: ${CONVENE_TEST_PORT}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", cfg.LLM.APIKey)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestLoadEnvVarDefaultSyntax(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: ${CONVENE_ABSENT_VAR:-fallback-model}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fallback-model", cfg.LLM.Model)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	_, err := Load(writeConfig(t, "store:\n  driver: cassandra\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")

	_, err = Load(writeConfig(t, "server:\n  port: -1\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "preferences:\n  preferred_start_hour: 20\n  preferred_end_hour: 8\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := writeConfig(t, "agent:\n  name: first\n")

	loader := NewLoader(path, nil)
	_, err := loader.Load()
	require.NoError(t, err)

	changed := make(chan *Config, 1)
	require.NoError(t, loader.Watch(func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	}))
	t.Cleanup(func() { loader.Close() })

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  name: second\n"), 0o644))

	select {
	case cfg := <-changed:
		assert.Equal(t, "second", cfg.Agent.Name)
		assert.Equal(t, "second", loader.Current().Agent.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not observed")
	}
}

func TestWatchKeepsPreviousOnBrokenReload(t *testing.T) {
	path := writeConfig(t, "agent:\n  name: stable\n")

	loader := NewLoader(path, nil)
	_, err := loader.Load()
	require.NoError(t, err)
	require.NoError(t, loader.Watch(nil))
	t.Cleanup(func() { loader.Close() })

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: cassandra\n"), 0o644))
	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, "stable", loader.Current().Agent.Name)
}

func TestExpandEnvVarsInData(t *testing.T) {
	t.Setenv("CONVENE_NESTED", "42")
	out := expandEnvVarsInData(map[string]interface{}{
		"a": "${CONVENE_NESTED}",
		"b": []interface{}{"$CONVENE_NESTED", "plain"},
		"c": map[string]interface{}{"d": true},
	})
	m := out.(map[string]interface{})
	assert.Equal(t, 42, m["a"])
	assert.Equal(t, 42, m["b"].([]interface{})[0])
	assert.Equal(t, "plain", m["b"].([]interface{})[1])
}
