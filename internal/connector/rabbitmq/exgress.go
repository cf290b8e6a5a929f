package rabbitmq

import (
	"context"
	"fmt"

	core "github.com/cuongceg/massrelay/internal/core"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publish sends msg to r. In confirm mode it blocks until the broker acks
// or nacks; otherwise a nil error only means the channel accepted the frame.
func (c *Connector) Publish(ctx context.Context, r core.Route, msg core.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fail := func(err error) error {
		return &core.PublishError{Exchange: r.Exchange, RoutingKey: r.RoutingKey, Err: err}
	}

	ch, err := c.channel()
	if err != nil {
		return fail(err)
	}

	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, r.Exchange, r.RoutingKey, c.cfg.Mandatory, false, toPublishing(msg))
	if err != nil {
		return fail(err)
	}
	if dc == nil {
		return nil
	}

	ack, err := dc.WaitContext(ctx)
	if err != nil {
		return fail(err)
	}
	if !ack {
		// amqp091 resolves outstanding confirms as nacks when the channel
		// shuts down; report that as a closed channel, not a broker nack.
		if ch.IsClosed() {
			return fail(core.ErrChannelClosed)
		}
		return fail(core.ErrNacked)
	}

	// The broker sends basic.return before the ack of the same message.
	if c.returns != nil {
		select {
		case ret := <-c.returns:
			return fail(fmt.Errorf("%w: reply=%d %s", core.ErrUnroutable, ret.ReplyCode, ret.ReplyText))
		default:
		}
	}
	return nil
}

// toPublishing maps msg onto an amqp091 publishing. Without Properties only
// the body is set and the broker client's defaults apply.
func toPublishing(msg core.Message) amqp.Publishing {
	p := msg.Properties
	if p == nil {
		return amqp.Publishing{Body: msg.Body}
	}
	var headers amqp.Table
	if len(p.Headers) > 0 {
		headers = make(amqp.Table, len(p.Headers))
		for k, v := range p.Headers {
			headers[k] = v
		}
	}
	return amqp.Publishing{
		Headers:         headers,
		ContentType:     p.ContentType,
		ContentEncoding: p.ContentEncoding,
		DeliveryMode:    p.DeliveryMode,
		Priority:        p.Priority,
		CorrelationId:   p.CorrelationID,
		ReplyTo:         p.ReplyTo,
		Expiration:      p.Expiration,
		MessageId:       p.MessageID,
		Timestamp:       p.Timestamp,
		Type:            p.Type,
		UserId:          p.UserID,
		AppId:           p.AppID,
		Body:            msg.Body,
	}
}
