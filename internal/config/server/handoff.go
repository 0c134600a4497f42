package server

// HandoffServerConfig selects where reconciled records are sent for upload.
type HandoffServerConfig struct {
	Type  string             `mapstructure:"type"  yaml:"type"`
	Redis HandoffRedisConfig `mapstructure:"redis" yaml:"redis"`
}

type HandoffRedisConfig struct {
	URL    string `mapstructure:"url"    yaml:"url"`
	Queue  string `mapstructure:"queue"  yaml:"queue"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	TTL    string `mapstructure:"ttl"    yaml:"ttl"`
}
