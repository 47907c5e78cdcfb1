package format

// Config represents formatting configuration options
type Config struct {
	IndentSize  int  `yaml:"indent_size" mapstructure:"indent_size"`
	AlignFields bool `yaml:"align_fields" mapstructure:"align_fields"`
}

// DefaultConfig returns the default formatting configuration
func DefaultConfig() *Config {
	return &Config{
		IndentSize:  4,
		AlignFields: false,
	}
}

// normalize fills in defaults for unset values
func (c *Config) normalize() *Config {
	if c == nil {
		return DefaultConfig()
	}
	out := *c
	if out.IndentSize <= 0 {
		out.IndentSize = DefaultConfig().IndentSize
	}
	return &out
}
