package rabbitmq

import (
	"errors"
	"fmt"
	"sync"

	core "github.com/cuongceg/massrelay/internal/core"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Subscribe starts one manual-ack consumer on queue. Deliveries are handed
// over one at a time through an unbuffered channel.
func (c *Connector) Subscribe(queue, consumerTag string) (core.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.channel()
	if err != nil {
		return nil, err
	}
	if c.sub != nil {
		return nil, fmt.Errorf("queue %q: connector already has an active subscription", queue)
	}

	if c.cfg.Prefetch > 0 {
		if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("set QoS: %w", err)
		}
	}

	// Registered before Consume so a cancel or close can't be missed.
	cancels := ch.NotifyCancel(make(chan string, 1))
	closes := ch.NotifyClose(make(chan *amqp.Error, 1))

	deliveries, err := ch.Consume(
		queue,
		consumerTag,
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %q: %w", queue, err)
	}

	sub := &subscription{
		ch:      ch,
		tag:     consumerTag,
		out:     make(chan core.Delivery),
		done:    make(chan struct{}),
		cancels: cancels,
		closes:  closes,
	}
	go sub.run(deliveries)
	c.sub = sub

	c.log.Info().Str("queue", queue).Str("consumer_tag", consumerTag).Msg("will consume queue")
	return sub, nil
}

type subscription struct {
	ch  *amqp.Channel
	tag string

	out  chan core.Delivery
	done chan struct{}

	cancels <-chan string
	closes  <-chan *amqp.Error

	cancelOnce sync.Once
	cancelErr  error

	// err is written before out is closed.
	err error
}

func (s *subscription) Deliveries() <-chan core.Delivery { return s.out }

func (s *subscription) Err() error { return s.err }

func (s *subscription) Cancel() error {
	s.cancelOnce.Do(func() {
		close(s.done)
		s.cancelErr = s.ch.Cancel(s.tag, false)
	})
	return s.cancelErr
}

func (s *subscription) run(in <-chan amqp.Delivery) {
	defer close(s.out)
	for d := range in {
		select {
		case s.out <- fromAMQP(d):
		case <-s.done:
			// Undelivered messages stay unacked and are requeued by the
			// broker once the channel closes.
			return
		}
	}
	s.err = s.endCause()
}

// endCause classifies why the amqp091 delivery channel was closed.
func (s *subscription) endCause() error {
	select {
	case <-s.done:
		return nil
	case tag, ok := <-s.cancels:
		if ok {
			return fmt.Errorf("%w: consumer tag %q", core.ErrConsumerCancelled, tag)
		}
		// Channel shutdown closes cancels after delivering to closes.
		e, ok := <-s.closes
		return closeCause(e, ok)
	case e, ok := <-s.closes:
		return closeCause(e, ok)
	}
}

func closeCause(e *amqp.Error, ok bool) error {
	if !ok || e == nil {
		return core.ErrChannelClosed
	}
	return fmt.Errorf("%w: %w", core.ErrChannelClosed, e)
}

type acker struct {
	d amqp.Delivery
}

func (a acker) Ack() error {
	if err := a.d.Ack(false); err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			return fmt.Errorf("ack delivery %d: %w", a.d.DeliveryTag, core.ErrChannelClosed)
		}
		return fmt.Errorf("ack delivery %d: %w", a.d.DeliveryTag, err)
	}
	return nil
}

func fromAMQP(d amqp.Delivery) core.Delivery {
	var headers map[string]any
	if len(d.Headers) > 0 {
		headers = make(map[string]any, len(d.Headers))
		for k, v := range d.Headers {
			headers[k] = v
		}
	}
	return core.Delivery{
		Body: d.Body,
		Properties: core.Properties{
			ContentType:     d.ContentType,
			ContentEncoding: d.ContentEncoding,
			Headers:         headers,
			DeliveryMode:    d.DeliveryMode,
			Priority:        d.Priority,
			CorrelationID:   d.CorrelationId,
			ReplyTo:         d.ReplyTo,
			Expiration:      d.Expiration,
			MessageID:       d.MessageId,
			Timestamp:       d.Timestamp,
			Type:            d.Type,
			UserID:          d.UserId,
			AppID:           d.AppId,
		},
		Tag:         d.DeliveryTag,
		Redelivered: d.Redelivered,
		Exchange:    d.Exchange,
		RoutingKey:  d.RoutingKey,
		Acker:       acker{d: d},
	}
}
