package crdt

import "sync/atomic"

// Clock is a Lamport clock.
//
// Local commits call Next; applying a remote update calls Observe with the
// update's stamp so the next local stamp is strictly greater than anything
// this replica has seen.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	lamport atomic.Uint64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming from a known position.
func NewClockAt(start uint64) *Clock {
	c := &Clock{}
	c.lamport.Store(start)
	return c
}

// Next returns the next stamp and advances the clock.
func (c *Clock) Next() uint64 {
	return c.lamport.Add(1)
}

// Observe advances the clock to at least remote.
func (c *Clock) Observe(remote uint64) {
	for {
		cur := c.lamport.Load()
		if remote <= cur {
			return
		}
		if c.lamport.CompareAndSwap(cur, remote) {
			return
		}
	}
}

// Current returns the clock position without advancing it.
func (c *Clock) Current() uint64 {
	return c.lamport.Load()
}
