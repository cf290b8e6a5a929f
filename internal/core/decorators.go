package core

import (
	"context"
	"time"
)

// PublishObserver is told about every publish attempt and its latency.
type PublishObserver interface {
	ObservePublish(ctx context.Context, r Route, elapsed time.Duration, err error)
}

// TargetWithMetrics reports each Publish to Observer.
type TargetWithMetrics struct {
	Target
	Observer PublishObserver
}

func (d TargetWithMetrics) Publish(ctx context.Context, r Route, msg Message) error {
	t0 := time.Now()
	err := d.Target.Publish(ctx, r, msg)
	if d.Observer != nil {
		d.Observer.ObservePublish(ctx, r, time.Since(t0), err)
	}
	return err
}
