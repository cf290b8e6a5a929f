package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotOpen           = errors.New("connector is not open")
	ErrNacked            = errors.New("broker negatively acknowledged publish")
	ErrUnroutable        = errors.New("message was returned as unroutable")
	ErrChannelClosed     = errors.New("channel closed")
	ErrConsumerCancelled = errors.New("consumer cancelled by broker")
	ErrNoAcknowledger    = errors.New("delivery has no acknowledger")
)

// PublishError is a failed forward to Exchange/RoutingKey.
type PublishError struct {
	Exchange   string
	RoutingKey string
	Err        error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish exchange=%q routing_key=%q: %v", e.Exchange, e.RoutingKey, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
