package relay

import (
	"context"

	core "github.com/cuongceg/massrelay/internal/core"
)

// Stage identifies where a per-message cycle stopped.
type Stage int

const (
	// StageDone: forwarded and acknowledged.
	StageDone Stage = iota
	// StageForward: the publish failed; the delivery was not acknowledged.
	StageForward
	// StageAck: forwarded, but the source acknowledgment failed. The
	// source broker may redeliver, duplicating the message at the target.
	StageAck
)

func (s Stage) String() string {
	switch s {
	case StageDone:
		return "done"
	case StageForward:
		return "forward"
	case StageAck:
		return "ack"
	default:
		return "unknown"
	}
}

// Outcome is the result of one forward-and-ack cycle.
type Outcome struct {
	Stage Stage
	Err   error
}

// relayOne runs the Forwarder and then, only on success, the Acknowledger.
func (e *Engine) relayOne(ctx context.Context, d core.Delivery) Outcome {
	e.setState(StateForwarding)
	if err := e.forward(ctx, d); err != nil {
		return Outcome{Stage: StageForward, Err: err}
	}
	e.setState(StateAcking)
	if err := e.acknowledge(d); err != nil {
		return Outcome{Stage: StageAck, Err: err}
	}
	return Outcome{Stage: StageDone}
}

func (e *Engine) forward(ctx context.Context, d core.Delivery) error {
	msg := core.Message{Body: d.Body}
	if e.Options.ForwardProperties {
		props := d.Properties
		msg.Properties = &props
	}
	return e.Target.Publish(ctx, e.Options.Route, msg)
}

func (e *Engine) acknowledge(d core.Delivery) error {
	return d.Ack()
}
