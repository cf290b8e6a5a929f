package relay

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	core "github.com/cuongceg/massrelay/internal/core"
	"github.com/rs/zerolog"
)

// Recorder receives per-message counts. A nil Recorder disables them.
type Recorder interface {
	DeliveryReceived(ctx context.Context)
	Forwarded(ctx context.Context)
	ForwardFailed(ctx context.Context)
	AckFailed(ctx context.Context)
}

type Options struct {
	// Declare runs the topology declaration before consuming.
	Declare  bool
	Topology core.Topology
	Route    core.Route

	ConsumerTag string
	// ForwardProperties copies delivery properties onto each publish.
	// Off by default: publishes carry the client's default properties.
	ForwardProperties bool
}

// Engine relays deliveries from Source to Target one at a time.
type Engine struct {
	Source  core.Source
	Target  core.Target
	Options Options
	Log     zerolog.Logger
	Metrics Recorder

	state atomic.Int32
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	if prev := State(e.state.Swap(int32(s))); prev != s {
		e.Log.Debug().Stringer("from", prev).Stringer("state", s).Msg("state transition")
	}
}

// Run connects both sides, optionally declares the source topology, and
// relays until ctx is cancelled or the subscription ends. Cancellation
// returns nil; every other exit is a *FatalError.
func (e *Engine) Run(ctx context.Context) error {
	if e.Metrics == nil {
		e.Metrics = nopRecorder{}
	}
	defer e.setState(StateTerminated)

	e.setState(StateConnecting)
	if err := e.Source.Open(ctx); err != nil {
		return &FatalError{Phase: StateConnecting, Side: "source", Err: err}
	}
	defer e.closeSide("source", e.Source.Close)

	if err := e.Target.Open(ctx); err != nil {
		return &FatalError{Phase: StateConnecting, Side: "target", Err: err}
	}
	defer e.closeSide("target", e.Target.Close)

	if e.Options.Declare {
		e.setState(StateDeclaring)
		if err := e.Source.Declare(e.Options.Topology); err != nil {
			return &FatalError{Phase: StateDeclaring, Side: "source", Err: err}
		}
	}

	e.setState(StateConsuming)
	queue := e.Options.Topology.Queue
	sub, err := e.Source.Subscribe(queue, e.Options.ConsumerTag)
	if err != nil {
		return &FatalError{Phase: StateConsuming, Side: "source", Err: err}
	}
	defer func() {
		if err := sub.Cancel(); err != nil {
			e.Log.Debug().Err(err).Msg("cancel subscription")
		}
	}()

	log := e.Log.With().
		Str("queue", queue).
		Str("exchange", e.Options.Route.Exchange).
		Str("routing_key", e.Options.Route.RoutingKey).
		Logger()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping relay")
			return nil
		case d, ok := <-sub.Deliveries():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return &FatalError{Phase: StateConsuming, Side: "source", Err: subscriptionEnded(sub.Err())}
			}
			e.handle(ctx, log, d)
			e.setState(StateConsuming)
		}
	}
}

// handle applies the per-message failure policy: every outcome is logged
// and the loop moves on to the next delivery.
func (e *Engine) handle(ctx context.Context, log zerolog.Logger, d core.Delivery) {
	e.Metrics.DeliveryReceived(ctx)
	dlog := log.With().Uint64("delivery_tag", d.Tag).Bool("redelivered", d.Redelivered).Logger()
	dlog.Info().Msg("received message from queue")

	o := e.relayOne(ctx, d)
	switch o.Stage {
	case StageDone:
		e.Metrics.Forwarded(ctx)
		dlog.Info().Msg("published message to routing key")
	case StageForward:
		e.Metrics.ForwardFailed(ctx)
		dlog.Error().Err(o.Err).Stringer("stage", o.Stage).Msg("error publishing message to routing key")
	case StageAck:
		e.Metrics.Forwarded(ctx)
		e.Metrics.AckFailed(ctx)
		dlog.Error().Err(o.Err).Stringer("stage", o.Stage).Msg("error acknowledging message")
	}
}

func (e *Engine) closeSide(side string, closeFn func() error) {
	if err := closeFn(); err != nil {
		e.Log.Warn().Err(err).Str("side", side).Msg("close connector")
	}
}

func subscriptionEnded(cause error) error {
	if cause == nil {
		return ErrSubscriptionEnded
	}
	return fmt.Errorf("%w: %w", ErrSubscriptionEnded, cause)
}

// IsShutdown reports whether err is the result of ctx cancellation rather
// than a broker or configuration failure.
func IsShutdown(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

type nopRecorder struct{}

func (nopRecorder) DeliveryReceived(context.Context) {}
func (nopRecorder) Forwarded(context.Context)        {}
func (nopRecorder) ForwardFailed(context.Context)    {}
func (nopRecorder) AckFailed(context.Context)        {}
