package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envKeys maps the recognised environment variables onto config paths.
// Variables outside this table are ignored.
var envKeys = map[string]string{
	"DECLARE":            "declare",
	"CONSUMER_TAG":       "consumer_tag",
	"FORWARD_PROPERTIES": "forward_properties",

	"SOURCE_ADDR":                     "source.addr",
	"SOURCE_QUEUE":                    "source.queue",
	"SOURCE_EXCHANGE":                 "source.exchange",
	"SOURCE_ROUTING_KEY":              "source.routing_key",
	"SOURCE_PREFETCH":                 "source.prefetch",
	"SOURCE_TLS_CA_FILE":              "source.tls.ca_file",
	"SOURCE_TLS_CERT_FILE":            "source.tls.cert_file",
	"SOURCE_TLS_KEY_FILE":             "source.tls.key_file",
	"SOURCE_TLS_INSECURE_SKIP_VERIFY": "source.tls.insecure_skip_verify",

	"TARGET_ADDR":                     "target.addr",
	"TARGET_EXCHANGE":                 "target.exchange",
	"TARGET_ROUTING_KEY":              "target.routing_key",
	"TARGET_CONFIRM":                  "target.confirm",
	"TARGET_MANDATORY":                "target.mandatory",
	"TARGET_TLS_CA_FILE":              "target.tls.ca_file",
	"TARGET_TLS_CERT_FILE":            "target.tls.cert_file",
	"TARGET_TLS_KEY_FILE":             "target.tls.key_file",
	"TARGET_TLS_INSECURE_SKIP_VERIFY": "target.tls.insecure_skip_verify",

	"LOG_LEVEL":             "log.level",
	"LOG_FORMAT":            "log.format",
	"METRICS_OTLP_ENDPOINT": "metrics.otlp_endpoint",
}

// envValue maps one environment variable to its config path. DECLARE is a
// presence flag: any value, including an empty one, turns declaration on.
func envValue(key, value string) (string, any) {
	path, ok := envKeys[key]
	if !ok {
		return "", nil
	}
	if path == "declare" {
		return path, true
	}
	return path, value
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and the process environment, in that order of precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)

	if err := Validate(&cfg, k.Exists); err != nil {
		return nil, err
	}
	return &cfg, nil
}
