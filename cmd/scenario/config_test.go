package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "tint", cfg.LogFormat)
	assert.Equal(t, "processes", cfg.ProcessCollection)
	assert.Equal(t, "services", cfg.ServiceCollection)
	assert.Equal(t, "schedules", cfg.ScheduleCollection)
	assert.Equal(t, 100, cfg.DeleteBatchSize)
	assert.Equal(t, 4, cfg.PoolSize)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 3, cfg.HTTP.MaxAttempts)
	assert.Contains(t, cfg.DBPath, "scenario.db")
}

func TestLoadConfig_SettingsFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path: memory
log_format: json
delete_batch_size: 25
http:
  timeout: 5s
  max_attempts: 1
schedules:
  - id: nightly
    cron: "0 2 * * *"
    scenario: cleanup
    input:
      days: 30
`), 0o600))

	cfg, err := loadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.DBPath)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 25, cfg.DeleteBatchSize)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 1, cfg.HTTP.MaxAttempts)
	require.Len(t, cfg.Schedules, 1)
	assert.Equal(t, "nightly", cfg.Schedules[0].ID)
	assert.Equal(t, "cleanup", cfg.Schedules[0].Scenario)
	assert.EqualValues(t, 30, cfg.Schedules[0].Input["days"])
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadConfig_EnvAndFlags(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCENARIO_LOG_LEVEL", "debug")
	t.Setenv("SCENARIO_POOL_SIZE", "9")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db-path", "", "")
	flags.String("log-level", "", "")
	flags.String("log-format", "", "")
	flags.Int("pool-size", 0, "")
	require.NoError(t, flags.Parse([]string{"--db-path", "memory", "--pool-size", "2"}))

	cfg, err := loadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel, "env applies when the flag is unset")
	assert.Equal(t, 2, cfg.PoolSize, "flags win over env")
}

func TestSecretsConfig_VaultConfig(t *testing.T) {
	hexKey := "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	vc, err := SecretsConfig{Key: hexKey}.vaultConfig()
	require.NoError(t, err)
	assert.Len(t, vc.MasterKey, 32)

	vc, err = SecretsConfig{Key: "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8="}.vaultConfig()
	require.NoError(t, err)
	assert.Len(t, vc.MasterKey, 32)

	_, err = SecretsConfig{Key: "not a key!"}.vaultConfig()
	assert.Error(t, err)

	vc, err = SecretsConfig{Passphrase: "pw", Salt: "salty"}.vaultConfig()
	require.NoError(t, err)
	assert.True(t, vc.Enabled())
	assert.Equal(t, []byte("salty"), vc.Salt)

	vc, err = SecretsConfig{}.vaultConfig()
	require.NoError(t, err)
	assert.False(t, vc.Enabled())
}

func TestLoadConfig_SecretsFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCENARIO_SECRETS_PASSPHRASE", "from-env")

	cfg, err := loadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Secrets.Passphrase)
	assert.Equal(t, "secrets", cfg.Secrets.Collection)
}
