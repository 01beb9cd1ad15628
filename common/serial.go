package common

import "sync/atomic"

// Serial is a resource identity stamp. A consumer that cached a Serial detects by inequality that the
// resource it last bound has been replaced. Serials from different counters are never compared.
// The zero Serial is never issued and means "no identity yet".
type Serial uint64

// SerialCounter issues strictly increasing Serials starting at 1. The zero value is ready to use.
// Each scope that needs identity tracking owns one counter and injects it into the constructors of the
// resources it stamps, so tests can isolate or reset it per case.
type SerialCounter struct {
	// issued is the last Serial handed out.
	issued atomic.Uint64
}

// NewSerialCounter creates a SerialCounter whose first issued Serial is 1.
//
// Returns:
//   - *SerialCounter: the new counter
func NewSerialCounter() *SerialCounter {
	return &SerialCounter{}
}

// Issue returns the current counter value and advances the counter. It never fails.
//
// Returns:
//   - Serial: a Serial unique within this counter
func (c *SerialCounter) Issue() Serial {
	return Serial(c.issued.Add(1))
}

// Peek returns the Serial the next call to Issue will return, without issuing it.
//
// Returns:
//   - Serial: the next Serial of this counter
func (c *SerialCounter) Peek() Serial {
	return Serial(c.issued.Load() + 1)
}

// Reset returns the counter to its initial state, so the next Issue returns 1 again.
// Only meaningful when no live resource still holds a Serial from it.
func (c *SerialCounter) Reset() {
	c.issued.Store(0)
}
