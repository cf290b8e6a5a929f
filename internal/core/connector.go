package core

import (
	"context"
	"time"
)

// Topology is the source-side declaration: Queue bound to Exchange under
// RoutingKey.
type Topology struct {
	Queue      string
	Exchange   string
	RoutingKey string
}

// Route is where a message is published. On the default exchange ("")
// RoutingKey names the destination queue.
type Route struct {
	Exchange   string
	RoutingKey string
}

// Properties are the broker-level message properties of a delivery.
type Properties struct {
	ContentType     string
	ContentEncoding string
	Headers         map[string]any
	DeliveryMode    uint8
	Priority        uint8
	CorrelationID   string
	ReplyTo         string
	Expiration      string
	MessageID       string
	Timestamp       time.Time
	Type            string
	UserID          string
	AppID           string
}

// Message is one outbound publish. A nil Properties publishes with the
// broker client's default properties.
type Message struct {
	Body       []byte
	Properties *Properties
}

type Acknowledger interface {
	Ack() error
}

// Delivery is one inbound message. It must be acknowledged at most once;
// an unacknowledged delivery is redelivered by the source broker.
type Delivery struct {
	Body        []byte
	Properties  Properties
	Tag         uint64
	Redelivered bool
	Exchange    string
	RoutingKey  string

	Acker Acknowledger
}

func (d Delivery) Ack() error {
	if d.Acker == nil {
		return ErrNoAcknowledger
	}
	return d.Acker.Ack()
}

// Subscription is a single, non-restartable consumption of a queue.
type Subscription interface {
	// Deliveries is closed when the subscription ends.
	Deliveries() <-chan Delivery
	// Err reports why Deliveries was closed; nil after Cancel.
	Err() error
	Cancel() error
}

type Source interface {
	Open(ctx context.Context) error
	Declare(t Topology) error
	Subscribe(queue, consumerTag string) (Subscription, error)
	Close() error
}

type Target interface {
	Open(ctx context.Context) error
	// Publish returns nil only once the strongest available signal
	// (publisher confirm, else synchronous acceptance) is positive.
	Publish(ctx context.Context, r Route, msg Message) error
	Close() error
}
