package main

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rendis/scenario/internal/actions"
	"github.com/rendis/scenario/internal/scheduler"
	"github.com/rendis/scenario/internal/secrets"
)

// Config holds all scenario configuration.
// Priority: flags > SCENARIO_* env vars > settings file > defaults.
type Config struct {
	DBPath             string          `mapstructure:"db_path"`
	LogLevel           string          `mapstructure:"log_level"`
	LogFormat          string          `mapstructure:"log_format"`
	ProcessCollection  string          `mapstructure:"process_collection"`
	ServiceCollection  string          `mapstructure:"service_collection"`
	ScheduleCollection string          `mapstructure:"schedule_collection"`
	DeleteBatchSize    int             `mapstructure:"delete_batch_size"`
	PoolSize           int             `mapstructure:"pool_size"`
	HTTP               HTTPConfig      `mapstructure:"http"`
	Secrets            SecretsConfig   `mapstructure:"secrets"`
	Schedules          []ScheduleEntry `mapstructure:"schedules"`
}

// HTTPConfig tunes the outbound publisher.
type HTTPConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	BaseDelay       time.Duration `mapstructure:"base_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`
	MaxResponseBody int64         `mapstructure:"max_response_body"`
}

// SecretsConfig enables the API key vault. Key is a 32-byte key, hex or
// base64 encoded; otherwise Passphrase and Salt derive one.
type SecretsConfig struct {
	Collection string `mapstructure:"collection"`
	Key        string `mapstructure:"key"`
	Passphrase string `mapstructure:"passphrase"`
	Salt       string `mapstructure:"salt"`
}

// ScheduleEntry declares a cron job in the settings file.
type ScheduleEntry struct {
	ID       string         `mapstructure:"id"`
	Cron     string         `mapstructure:"cron"`
	Scenario string         `mapstructure:"scenario"`
	Input    map[string]any `mapstructure:"input"`
}

func scenarioDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scenario"
	}
	return filepath.Join(home, ".scenario")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "file:"+filepath.Join(scenarioDir(), "scenario.db"))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "tint")
	v.SetDefault("process_collection", actions.DefaultProcessCollection)
	v.SetDefault("service_collection", actions.DefaultServiceCollection)
	v.SetDefault("schedule_collection", scheduler.DefaultCollection)
	v.SetDefault("delete_batch_size", actions.DefaultDeleteBatchSize)
	v.SetDefault("pool_size", 4)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.base_delay", 200*time.Millisecond)
	v.SetDefault("http.max_delay", 2*time.Second)
	v.SetDefault("http.max_response_body", 10*1024*1024)
	v.SetDefault("secrets.collection", secrets.DefaultCollection)
	v.SetDefault("secrets.key", "")
	v.SetDefault("secrets.passphrase", "")
	v.SetDefault("secrets.salt", "")
}

// loadConfig layers defaults, the settings file (explicit path, or
// ~/.scenario/settings.{json,yaml} when present), the environment and flags.
func loadConfig(configPath string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("settings")
		v.AddConfigPath(scenarioDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("SCENARIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range map[string]string{
			"db_path":    "db-path",
			"log_level":  "log-level",
			"log_format": "log-format",
			"pool_size":  "pool-size",
		} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// vaultConfig decodes the configured key material.
func (c SecretsConfig) vaultConfig() (secrets.VaultConfig, error) {
	if c.Key != "" {
		key, err := hex.DecodeString(c.Key)
		if err != nil {
			if key, err = base64.StdEncoding.DecodeString(c.Key); err != nil {
				return secrets.VaultConfig{}, fmt.Errorf("secrets.key is neither hex nor base64")
			}
		}
		return secrets.VaultConfig{MasterKey: key}, nil
	}
	return secrets.VaultConfig{Passphrase: c.Passphrase, Salt: []byte(c.Salt)}, nil
}
