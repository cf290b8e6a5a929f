package config

// TLSConfig carries optional TLS material for an amqps:// endpoint.
type TLSConfig struct {
	CAFile             string `koanf:"ca_file"`
	CertFile           string `koanf:"cert_file"`
	KeyFile            string `koanf:"key_file"`
	InsecureSkipVerify bool   `koanf:"insecure_skip_verify"`
}

// Enabled reports whether any TLS option was set.
func (t TLSConfig) Enabled() bool {
	return t.CAFile != "" || t.CertFile != "" || t.KeyFile != "" || t.InsecureSkipVerify
}

type SourceConfig struct {
	Addr string    `koanf:"addr" validate:"required"`
	TLS  TLSConfig `koanf:"tls"`

	Queue string `koanf:"queue" validate:"required"`
	// Exchange and RoutingKey are only used when Declare is set.
	Exchange   string `koanf:"exchange"`
	RoutingKey string `koanf:"routing_key"`
	Prefetch   int    `koanf:"prefetch" validate:"gte=0"`
}

type TargetConfig struct {
	Addr string    `koanf:"addr" validate:"required"`
	TLS  TLSConfig `koanf:"tls"`

	// Exchange may be empty: the default exchange routes by queue name,
	// in which case RoutingKey is the target queue.
	Exchange   string `koanf:"exchange"`
	RoutingKey string `koanf:"routing_key"`
	Confirm    bool   `koanf:"confirm"`
	Mandatory  bool   `koanf:"mandatory"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type MetricsConfig struct {
	OTLPEndpoint string `koanf:"otlp_endpoint"`
}

type Config struct {
	Declare           bool   `koanf:"declare"`
	ConsumerTag       string `koanf:"consumer_tag"`
	ForwardProperties bool   `koanf:"forward_properties"`

	Source  SourceConfig  `koanf:"source"`
	Target  TargetConfig  `koanf:"target"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
}
