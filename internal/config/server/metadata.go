package server

// MetadataServerConfig holds the local record store configuration
type MetadataServerConfig struct {
	Type   string               `mapstructure:"type"   yaml:"type"`
	SQLite MetadataSQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
}

// MetadataSQLiteConfig holds SQLite-specific configuration
type MetadataSQLiteConfig struct {
	Path    string `mapstructure:"path"     yaml:"path"`
	Verbose bool   `mapstructure:"verbose"  yaml:"verbose"`
}
