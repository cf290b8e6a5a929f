package config

const (
	DefaultConsumerTag = "massrelay"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
)

// Default returns the configuration every loaded layer is merged onto.
func Default() Config {
	return Config{
		ConsumerTag: DefaultConsumerTag,
		Target: TargetConfig{
			Confirm: true,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// applyDefaults fills values that were set but left empty.
func applyDefaults(c *Config) {
	if c.ConsumerTag == "" {
		c.ConsumerTag = DefaultConsumerTag
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	c.Source.Addr = NormalizeAddr(c.Source.Addr)
	c.Target.Addr = NormalizeAddr(c.Target.Addr)
}
