package server

// RendererServerConfig controls the headless browser that hosts the form renderer.
type RendererServerConfig struct {
	URL        string `mapstructure:"url"         yaml:"url"`
	ChromePath string `mapstructure:"chrome_path" yaml:"chrome_path"`
	Headless   bool   `mapstructure:"headless"    yaml:"headless"`
	Binding    string `mapstructure:"binding"     yaml:"binding"`
	Timeout    string `mapstructure:"timeout"     yaml:"timeout"`
	Buffer     int    `mapstructure:"buffer"      yaml:"buffer"`
}
