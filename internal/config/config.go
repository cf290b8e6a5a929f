package config

import (
	"strings"

	"github.com/cuongceg/massrelay/internal/core"
)

// NormalizeAddr strips one trailing path separator from a broker address.
func NormalizeAddr(addr string) string {
	return strings.TrimSuffix(addr, "/")
}

// SourceTopology is the declaration descriptor for the source side.
func (c *Config) SourceTopology() core.Topology {
	return core.Topology{
		Queue:      c.Source.Queue,
		Exchange:   c.Source.Exchange,
		RoutingKey: c.Source.RoutingKey,
	}
}

// TargetRoute is where every forwarded message is published.
func (c *Config) TargetRoute() core.Route {
	return core.Route{
		Exchange:   c.Target.Exchange,
		RoutingKey: c.Target.RoutingKey,
	}
}
