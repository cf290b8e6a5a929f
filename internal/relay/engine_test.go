package relay

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	core "github.com/cuongceg/massrelay/internal/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	helloTopology = core.Topology{Queue: "hello", Exchange: "hello", RoutingKey: "hello"}
	helloRoute    = core.Route{Exchange: "hello", RoutingKey: "hello"}
)

type harness struct {
	j      *journal
	src    *fakeSource
	tgt    *fakeTarget
	rec    *countingRecorder
	ackers []*fakeAcker
	engine *Engine
}

// newHarness queues one delivery per body (tags 1..n) and, when closed is
// set, ends the subscription after the last one.
func newHarness(opts Options, closed bool, bodies ...string) *harness {
	j := &journal{}
	h := &harness{
		j:   j,
		src: &fakeSource{j: j, sub: &fakeSubscription{ch: make(chan core.Delivery, len(bodies))}},
		tgt: &fakeTarget{j: j},
		rec: &countingRecorder{},
	}
	for i, b := range bodies {
		a := &fakeAcker{j: j, tag: uint64(i + 1)}
		h.ackers = append(h.ackers, a)
		h.src.sub.ch <- core.Delivery{
			Body:       []byte(b),
			Tag:        a.tag,
			Properties: core.Properties{ContentType: "text/plain", MessageID: b},
			Acker:      a,
		}
	}
	if closed {
		close(h.src.sub.ch)
	}
	if opts.ConsumerTag == "" {
		opts.ConsumerTag = "massrelay"
	}
	if opts.Topology == (core.Topology{}) {
		opts.Topology = helloTopology
	}
	if opts.Route == (core.Route{}) {
		opts.Route = helloRoute
	}
	h.engine = &Engine{
		Source:  h.src,
		Target:  h.tgt,
		Options: opts,
		Log:     zerolog.Nop(),
		Metrics: h.rec,
	}
	return h
}

func TestRun_ForwardsInOrderAndAcksAfterEachPublish(t *testing.T) {
	h := newHarness(Options{}, true, "m1", "m2", "m3")

	err := h.engine.Run(context.Background())

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, StateConsuming, fatal.Phase)
	assert.ErrorIs(t, err, ErrSubscriptionEnded)

	assert.Equal(t, []string{
		"open source",
		"open target",
		"subscribe hello",
		"publish m1", "ack 1",
		"publish m2", "ack 2",
		"publish m3", "ack 3",
		"close target",
		"close source",
	}, h.j.list())
	for _, a := range h.ackers {
		assert.Equal(t, 1, a.acks, "delivery %d", a.tag)
	}
	assert.Equal(t, []core.Route{helloRoute, helloRoute, helloRoute}, h.tgt.routes)
	assert.Equal(t, "massrelay", h.src.tag)
	assert.True(t, h.src.sub.cancelled)
	assert.Equal(t, StateTerminated, h.engine.State())
	assert.Equal(t, countingRecorder{received: 3, forwarded: 3}, *h.rec)
}

func TestRun_PayloadPassesThroughWithDefaultProperties(t *testing.T) {
	h := newHarness(Options{}, true, "ping")

	_ = h.engine.Run(context.Background())

	require.Len(t, h.tgt.msgs, 1)
	assert.True(t, bytes.Equal([]byte("ping"), h.tgt.msgs[0].Body))
	assert.Nil(t, h.tgt.msgs[0].Properties)
}

func TestRun_ForwardPropertiesWhenEnabled(t *testing.T) {
	h := newHarness(Options{ForwardProperties: true}, true, "ping")

	_ = h.engine.Run(context.Background())

	require.Len(t, h.tgt.msgs, 1)
	require.NotNil(t, h.tgt.msgs[0].Properties)
	assert.Equal(t, "text/plain", h.tgt.msgs[0].Properties.ContentType)
	assert.Equal(t, "ping", h.tgt.msgs[0].Properties.MessageID)
}

func TestRun_ForwardFailureLeavesDeliveryUnacked(t *testing.T) {
	h := newHarness(Options{}, true, "m1", "m2", "m3")
	h.tgt.publish = func(_ context.Context, r core.Route, msg core.Message) error {
		if string(msg.Body) == "m2" {
			return &core.PublishError{Exchange: r.Exchange, RoutingKey: r.RoutingKey, Err: core.ErrNacked}
		}
		return nil
	}

	err := h.engine.Run(context.Background())
	assert.ErrorIs(t, err, ErrSubscriptionEnded)

	assert.Equal(t, 1, h.ackers[0].acks)
	assert.Equal(t, 0, h.ackers[1].acks)
	assert.Equal(t, 1, h.ackers[2].acks)
	assert.Equal(t, countingRecorder{received: 3, forwarded: 2, forwardFailed: 1}, *h.rec)
	assert.Contains(t, h.j.list(), "publish m3")
}

func TestRun_AckFailureContinues(t *testing.T) {
	h := newHarness(Options{}, true, "m1", "m2")
	h.ackers[0].err = core.ErrChannelClosed

	err := h.engine.Run(context.Background())
	assert.ErrorIs(t, err, ErrSubscriptionEnded)

	assert.Equal(t, 1, h.ackers[0].acks)
	assert.Equal(t, 1, h.ackers[1].acks)
	assert.Len(t, h.tgt.msgs, 2)
	assert.Equal(t, countingRecorder{received: 2, forwarded: 2, ackFailed: 1}, *h.rec)
}

func TestRun_NoAckBeforePublishResolves(t *testing.T) {
	h := newHarness(Options{}, true, "m1", "m2")
	h.tgt.publish = func(_ context.Context, _ core.Route, msg core.Message) error {
		for _, a := range h.ackers {
			if a.tag == uint64(msg.Body[1]-'0') {
				assert.Zero(t, a.acks, "delivery %d acked before its publish resolved", a.tag)
			}
		}
		return nil
	}

	_ = h.engine.Run(context.Background())
}

func TestRun_SourceConnectFailureIsFatal(t *testing.T) {
	h := newHarness(Options{}, true, "m1")
	h.src.openErr = errors.New("connection refused")

	err := h.engine.Run(context.Background())

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, StateConnecting, fatal.Phase)
	assert.Equal(t, "source", fatal.Side)
	assert.Equal(t, []string{"open source"}, h.j.list())
	assert.Equal(t, "relay connecting (source): connection refused", err.Error())
}

func TestRun_TargetConnectFailureIsFatal(t *testing.T) {
	h := newHarness(Options{}, true, "m1")
	h.tgt.openErr = errors.New("access refused")

	err := h.engine.Run(context.Background())

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, StateConnecting, fatal.Phase)
	assert.Equal(t, "target", fatal.Side)
	assert.Equal(t, []string{"open source", "open target", "close source"}, h.j.list())
	assert.Empty(t, h.tgt.msgs)
}

func TestRun_DeclaresOnlyWhenEnabled(t *testing.T) {
	h := newHarness(Options{}, true)
	_ = h.engine.Run(context.Background())
	assert.Empty(t, h.src.declared)

	h = newHarness(Options{Declare: true}, true)
	_ = h.engine.Run(context.Background())
	assert.Equal(t, []core.Topology{helloTopology}, h.src.declared)
	assert.Equal(t, []string{"open source", "open target", "declare hello", "subscribe hello", "close target", "close source"}, h.j.list())
}

func TestRun_DeclareFailureIsFatal(t *testing.T) {
	h := newHarness(Options{Declare: true}, true, "m1")
	h.src.declareErr = errors.New("NOT_FOUND - no exchange 'hello'")

	err := h.engine.Run(context.Background())

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, StateDeclaring, fatal.Phase)
	assert.NotContains(t, h.j.list(), "subscribe hello")
	assert.Empty(t, h.tgt.msgs)
}

func TestRun_SubscribeFailureIsFatal(t *testing.T) {
	h := newHarness(Options{}, true)
	h.src.subscribeErr = errors.New("NOT_FOUND - no queue 'hello'")

	err := h.engine.Run(context.Background())

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, StateConsuming, fatal.Phase)
	assert.NotErrorIs(t, err, ErrSubscriptionEnded)
}

func TestRun_SubscriptionEndCarriesCause(t *testing.T) {
	h := newHarness(Options{}, true)
	h.src.sub.err = core.ErrConsumerCancelled

	err := h.engine.Run(context.Background())

	assert.ErrorIs(t, err, ErrSubscriptionEnded)
	assert.ErrorIs(t, err, core.ErrConsumerCancelled)
	assert.False(t, IsShutdown(err))
}

func TestRun_CancelStopsCleanly(t *testing.T) {
	h := newHarness(Options{}, false, "m1")
	published := make(chan struct{})
	h.tgt.publish = func(context.Context, core.Route, core.Message) error {
		close(published)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not forwarded")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, h.src.sub.cancelled)
	assert.True(t, h.src.closed)
	assert.True(t, h.tgt.closed)
	assert.Equal(t, StateTerminated, h.engine.State())
}

func TestRun_CancelledPublishIsNotAcked(t *testing.T) {
	h := newHarness(Options{}, false, "m1")
	ctx, cancel := context.WithCancel(context.Background())
	h.tgt.publish = func(ctx context.Context, _ core.Route, _ core.Message) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}

	err := h.engine.Run(ctx)

	assert.True(t, IsShutdown(err))
	assert.Equal(t, 0, h.ackers[0].acks)
	assert.Equal(t, 1, h.rec.forwardFailed)
}

func TestRun_NilMetrics(t *testing.T) {
	h := newHarness(Options{}, true, "m1")
	h.engine.Metrics = nil

	err := h.engine.Run(context.Background())
	assert.ErrorIs(t, err, ErrSubscriptionEnded)
	assert.Equal(t, 1, h.ackers[0].acks)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "forwarding", StateForwarding.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.Equal(t, "ack", StageAck.String())
}
