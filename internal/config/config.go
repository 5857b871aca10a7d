// Package config loads mobystash's configuration via viper: set every
// default first, then let AutomaticEnv override from the process
// environment with "." in keys mapped to "_" (so state_file becomes
// MOBYSTASH_STATE_FILE once the "mobystash" env prefix is applied).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DockerConfig holds engine-connection configuration.
type DockerConfig struct {
	Host string `mapstructure:"host"`
}

// LogstashConfig holds the downstream sink configuration.
type LogstashConfig struct {
	Server string `mapstructure:"server"`
}

// LoggingConfig holds the logging-related configuration.
type LoggingConfig struct {
	Level string `mapstructure:"log_level"`
}

// Config is the top-level configuration struct. The daemon's own settings
// sit at the root, giving flat MOBYSTASH_* env var names; Docker and
// Logstash keep their own conventional, unprefixed env vars.
type Config struct {
	StateFile               string  `mapstructure:"state_file"`
	StateCheckpointInterval int     `mapstructure:"state_checkpoint_interval"`
	EnableMetrics           bool    `mapstructure:"enable_metrics"`
	MetricsAddr             string  `mapstructure:"metrics_addr"`
	SampleRatio             float64 `mapstructure:"sample_ratio"`
	SampleRules             string  `mapstructure:"sample_rules"`

	Docker   DockerConfig   `mapstructure:"docker"`
	Logstash LogstashConfig `mapstructure:"logstash"`
	Logging  LoggingConfig  `mapstructure:"log"`
}

// InitConfig sets defaults, binds environment variables, and reads an
// optional config file.
func InitConfig() error {
	viper.SetDefault("state_file", "/var/lib/mobystash/state")
	viper.SetDefault("state_checkpoint_interval", 60)
	viper.SetDefault("enable_metrics", false)
	viper.SetDefault("metrics_addr", ":9367")
	viper.SetDefault("sample_ratio", 1.0)
	viper.SetDefault("sample_rules", "")
	viper.SetDefault("docker.host", "")
	viper.SetDefault("logstash.server", "")
	viper.SetDefault("log.log_level", "INFO")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/mobystash")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.SetEnvPrefix("mobystash")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// DOCKER_HOST and LOGSTASH_SERVER are read without the MOBYSTASH_
	// prefix, matching the conventional Docker CLI and Logstash env vars
	// operators already set.
	_ = viper.BindEnv("docker.host", "DOCKER_HOST")
	_ = viper.BindEnv("logstash.server", "LOGSTASH_SERVER")

	return nil
}

// Load unmarshals the configuration into the Config struct.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &config, nil
}
