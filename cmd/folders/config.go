package main

import (
	"errors"
	"strings"

	"github.com/mwantia/folders"
	"github.com/mwantia/folders/data"
	"github.com/spf13/viper"
)

type Config struct {
	Log     LogConfig             `mapstructure:"log"`
	Metrics MetricsConfig         `mapstructure:"metrics"`
	Mounts  []folders.MountConfig `mapstructure:"mounts"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
	JSON  bool   `mapstructure:"json"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Listen serves /metrics while the shell is running, empty disables it.
	Listen string `mapstructure:"listen"`
}

// loadConfig reads file and FOLDERS_* environment overrides. A missing
// default file is not an error, an explicitly named one is.
func loadConfig(file string, explicit bool) (*Config, error) {
	v := viper.New()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.json", false)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "")

	v.SetEnvPrefix("FOLDERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || isNotExist(err)) {
			return nil, data.NewError(data.ErrConfig, "config", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, data.NewError(data.ErrConfig, "config", file, err)
	}
	return cfg, nil
}
