package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the server needs at startup.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Health    HealthConfig    `mapstructure:"health"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	// URL enables the postgres task archive when set. Empty runs the engine
	// fully in memory.
	URL string `mapstructure:"url"`
}

type SchedulerConfig struct {
	// Workers bounds how many tenant scheduling passes run concurrently.
	Workers int64 `mapstructure:"workers"`
	// PausePolicy: "block_new" or "requeue_assigned".
	PausePolicy string `mapstructure:"pause_policy"`
}

type HealthConfig struct {
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
	CheckInterval    time.Duration `mapstructure:"check_interval"`
}

// Load reads configuration with the usual precedence: environment variables
// (ORCHESTRATOR_*) over an optional config file over built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("orchestrator")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/orchestrator")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("ORCHESTRATOR")
	v.AutomaticEnv()
	v.BindEnv("server.port", "PORT")                                         //nolint:errcheck
	v.BindEnv("database.url", "DATABASE_URL")                                //nolint:errcheck
	v.BindEnv("scheduler.workers", "ORCHESTRATOR_SCHEDULER_WORKERS")         //nolint:errcheck
	v.BindEnv("scheduler.pause_policy", "ORCHESTRATOR_PAUSE_POLICY")         //nolint:errcheck
	v.BindEnv("health.heartbeat_timeout", "ORCHESTRATOR_HEARTBEAT_TIMEOUT")  //nolint:errcheck
	v.BindEnv("health.check_interval", "ORCHESTRATOR_HEALTH_CHECK_INTERVAL") //nolint:errcheck

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.url", "")
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.pause_policy", "block_new")
	v.SetDefault("health.heartbeat_timeout", "45s")
	v.SetDefault("health.check_interval", "10s")
}
