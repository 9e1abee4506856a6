package main

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"
)

// config mirrors cmd/pixie/config.go's viper.Unmarshal + defaults.Set
// pairing, scaled down to what this tool's subcommands need.
type config struct {
	Verbose bool `mapstructure:"verbose" default:"false"`

	// Mapping selects the PE section-offset interpretation used by dump and
	// rebuild: "unmapped" (on-disk layout) or "mapped" (loader layout).
	Mapping string `mapstructure:"mapping" default:"unmapped"`
}

func loadConfig(path string) (*config, error) {
	cfg := &config{}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}

	if path == "" {
		return cfg, nil
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config from '%s': %w", path, err)
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}
