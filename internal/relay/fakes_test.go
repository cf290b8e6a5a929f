package relay

import (
	"context"
	"fmt"
	"sync"

	core "github.com/cuongceg/massrelay/internal/core"
)

// journal records broker-visible events in order across both fakes.
type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, fmt.Sprintf(format, args...))
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

type fakeAcker struct {
	j    *journal
	tag  uint64
	err  error
	acks int
}

func (a *fakeAcker) Ack() error {
	a.acks++
	a.j.add("ack %d", a.tag)
	return a.err
}

type fakeSubscription struct {
	ch        chan core.Delivery
	err       error
	cancelled bool
}

func (s *fakeSubscription) Deliveries() <-chan core.Delivery { return s.ch }
func (s *fakeSubscription) Err() error                       { return s.err }
func (s *fakeSubscription) Cancel() error {
	s.cancelled = true
	return nil
}

type fakeSource struct {
	j *journal

	openErr      error
	declareErr   error
	subscribeErr error
	sub          *fakeSubscription

	declared []core.Topology
	queue    string
	tag      string
	closed   bool
}

func (s *fakeSource) Open(context.Context) error {
	s.j.add("open source")
	return s.openErr
}

func (s *fakeSource) Declare(t core.Topology) error {
	s.j.add("declare %s", t.Queue)
	s.declared = append(s.declared, t)
	return s.declareErr
}

func (s *fakeSource) Subscribe(queue, tag string) (core.Subscription, error) {
	s.j.add("subscribe %s", queue)
	s.queue, s.tag = queue, tag
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}
	return s.sub, nil
}

func (s *fakeSource) Close() error {
	s.j.add("close source")
	s.closed = true
	return nil
}

type publishFunc func(ctx context.Context, r core.Route, msg core.Message) error

type fakeTarget struct {
	j *journal

	openErr error
	publish publishFunc

	mu     sync.Mutex
	msgs   []core.Message
	routes []core.Route
	closed bool
}

func (t *fakeTarget) Open(context.Context) error {
	t.j.add("open target")
	return t.openErr
}

func (t *fakeTarget) Publish(ctx context.Context, r core.Route, msg core.Message) error {
	t.mu.Lock()
	t.msgs = append(t.msgs, msg)
	t.routes = append(t.routes, r)
	t.mu.Unlock()
	t.j.add("publish %s", msg.Body)
	if t.publish != nil {
		return t.publish(ctx, r, msg)
	}
	return nil
}

func (t *fakeTarget) Close() error {
	t.j.add("close target")
	t.closed = true
	return nil
}

type countingRecorder struct {
	received, forwarded, forwardFailed, ackFailed int
}

func (c *countingRecorder) DeliveryReceived(context.Context) { c.received++ }
func (c *countingRecorder) Forwarded(context.Context)        { c.forwarded++ }
func (c *countingRecorder) ForwardFailed(context.Context)    { c.forwardFailed++ }
func (c *countingRecorder) AckFailed(context.Context)        { c.ackFailed++ }
