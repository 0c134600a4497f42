package server

type FormsServerConfig struct {
	DateFormats []DateFormatConfig `mapstructure:"date_formats" yaml:"date_formats"`
}

type DateFormatConfig struct {
	Key    string `mapstructure:"key"    yaml:"key"`
	Format string `mapstructure:"format" yaml:"format"`
}
