package store

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock stamps CreatedAt/UpdatedAt and drives snapshot retention. Tests
// freeze it with SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

func now() time.Time {
	return clock.Now().UTC()
}
