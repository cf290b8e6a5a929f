package relay

import (
	"errors"
	"fmt"
)

var ErrSubscriptionEnded = errors.New("consumption subscription ended")

// FatalError is a setup or subscription failure that stops the relay.
type FatalError struct {
	Phase State
	// Side is "source" or "target" when the failure belongs to one broker.
	Side string
	Err  error
}

func (e *FatalError) Error() string {
	if e.Side != "" {
		return fmt.Sprintf("relay %s (%s): %v", e.Phase, e.Side, e.Err)
	}
	return fmt.Sprintf("relay %s: %v", e.Phase, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
