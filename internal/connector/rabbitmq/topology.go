package rabbitmq

import (
	"fmt"

	core "github.com/cuongceg/massrelay/internal/core"
)

// Declare ensures t.Queue exists and is bound to t.Exchange under
// t.RoutingKey. Both broker methods are idempotent for identical arguments.
func (c *Connector) Declare(t core.Topology) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.channel()
	if err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		t.Queue,
		false, // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %q: %w", t.Queue, err)
	}
	c.log.Info().
		Str("queue", q.Name).
		Int("messages", q.Messages).
		Int("consumers", q.Consumers).
		Msg("Declared queue")

	if err := ch.QueueBind(t.Queue, t.RoutingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %q to exchange %q with key %q: %w", t.Queue, t.Exchange, t.RoutingKey, err)
	}
	c.log.Info().
		Str("queue", t.Queue).
		Str("exchange", t.Exchange).
		Str("routing_key", t.RoutingKey).
		Msg("Bound queue")
	return nil
}
