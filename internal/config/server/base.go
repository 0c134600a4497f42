package server

import (
	"fmt"

	"github.com/spf13/viper"
)

type BaseServerConfig struct {
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	Log      LogServerConfig      `mapstructure:"log"      yaml:"log"`
	Metadata MetadataServerConfig `mapstructure:"metadata" yaml:"metadata"`
	Renderer RendererServerConfig `mapstructure:"renderer" yaml:"renderer"`
	Handoff  HandoffServerConfig  `mapstructure:"handoff"  yaml:"handoff"`
	Forms    FormsServerConfig    `mapstructure:"forms"    yaml:"forms"`
}

func LoadServerConfig() (*BaseServerConfig, error) {
	cfg := &BaseServerConfig{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the fields that cannot be recovered from at runtime.
func (cfg *BaseServerConfig) Validate() error {
	switch cfg.Metadata.Type {
	case "sqlite":
		if cfg.Metadata.SQLite.Path == "" {
			return fmt.Errorf("metadata.sqlite.path is required")
		}
	default:
		return fmt.Errorf("unsupported metadata type %q", cfg.Metadata.Type)
	}

	switch cfg.Handoff.Type {
	case "log":
	case "redis":
		if cfg.Handoff.Redis.URL == "" {
			return fmt.Errorf("handoff.redis.url is required for handoff type 'redis'")
		}
	default:
		return fmt.Errorf("unsupported handoff type %q", cfg.Handoff.Type)
	}

	for i, df := range cfg.Forms.DateFormats {
		if df.Key == "" || df.Format == "" {
			return fmt.Errorf("forms.date_formats[%d] requires key and format", i)
		}
	}

	return nil
}
