package server

import "github.com/spf13/viper"

func GetServerDefault() BaseServerConfig {
	return BaseServerConfig{
		ShutdownTimeout: "10s",

		Log: LogServerConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogServerRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},

		Metadata: MetadataServerConfig{
			Type: "sqlite",
			SQLite: MetadataSQLiteConfig{
				Path:    "./data/fieldsync.db",
				Verbose: false,
			},
		},

		Renderer: RendererServerConfig{
			URL:        "file:///usr/share/fieldsync/renderer/index.html",
			ChromePath: "",
			Headless:   true,
			Binding:    "fieldsyncPostMessage",
			Timeout:    "30s",
			Buffer:     64,
		},

		Handoff: HandoffServerConfig{
			Type: "log",
			Redis: HandoffRedisConfig{
				URL:    "",
				Queue:  "fieldsync:uploads",
				Prefix: "fieldsync:handoff:",
				TTL:    "72h",
			},
		},

		Forms: FormsServerConfig{
			DateFormats: []DateFormatConfig{},
		},
	}
}

func setDefaults() {
	defaults := GetServerDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("metadata.type", defaults.Metadata.Type)
	viper.SetDefault("metadata.sqlite.path", defaults.Metadata.SQLite.Path)
	viper.SetDefault("metadata.sqlite.verbose", defaults.Metadata.SQLite.Verbose)

	viper.SetDefault("renderer.url", defaults.Renderer.URL)
	viper.SetDefault("renderer.chrome_path", defaults.Renderer.ChromePath)
	viper.SetDefault("renderer.headless", defaults.Renderer.Headless)
	viper.SetDefault("renderer.binding", defaults.Renderer.Binding)
	viper.SetDefault("renderer.timeout", defaults.Renderer.Timeout)
	viper.SetDefault("renderer.buffer", defaults.Renderer.Buffer)

	viper.SetDefault("handoff.type", defaults.Handoff.Type)
	viper.SetDefault("handoff.redis.url", defaults.Handoff.Redis.URL)
	viper.SetDefault("handoff.redis.queue", defaults.Handoff.Redis.Queue)
	viper.SetDefault("handoff.redis.prefix", defaults.Handoff.Redis.Prefix)
	viper.SetDefault("handoff.redis.ttl", defaults.Handoff.Redis.TTL)

	viper.SetDefault("forms.date_formats", defaults.Forms.DateFormats)
}
