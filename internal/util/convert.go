package util

import (
	config "github.com/cuongceg/massrelay/internal/config"
	rabbitmq "github.com/cuongceg/massrelay/internal/connector/rabbitmq"
	relay "github.com/cuongceg/massrelay/internal/relay"
)

// SourceConnector maps the source section onto a consuming connector config.
func SourceConnector(cfg *config.Config, instanceID string) rabbitmq.Config {
	return rabbitmq.Config{
		Side:           "source",
		URL:            cfg.Source.Addr,
		TLS:            tlsOptions(cfg.Source.TLS),
		ConnectionName: "massrelay-source-" + instanceID,
		Prefetch:       cfg.Source.Prefetch,
	}
}

// TargetConnector maps the target section onto a publishing connector config.
func TargetConnector(cfg *config.Config, instanceID string) rabbitmq.Config {
	return rabbitmq.Config{
		Side:           "target",
		URL:            cfg.Target.Addr,
		TLS:            tlsOptions(cfg.Target.TLS),
		ConnectionName: "massrelay-target-" + instanceID,
		Confirm:        cfg.Target.Confirm,
		Mandatory:      cfg.Target.Mandatory,
	}
}

func RelayOptions(cfg *config.Config) relay.Options {
	return relay.Options{
		Declare:           cfg.Declare,
		Topology:          cfg.SourceTopology(),
		Route:             cfg.TargetRoute(),
		ConsumerTag:       cfg.ConsumerTag,
		ForwardProperties: cfg.ForwardProperties,
	}
}

func tlsOptions(t config.TLSConfig) *rabbitmq.TLSOptions {
	if !t.Enabled() {
		return nil
	}
	return &rabbitmq.TLSOptions{
		RootCAPath:         t.CAFile,
		ClientCertPath:     t.CertFile,
		ClientKeyPath:      t.KeyFile,
		InsecureSkipVerify: t.InsecureSkipVerify,
	}
}
