// Package gpio captures the demodulated DCF77 signal from a GPIO line.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"time"

	"github.com/sweeney/dcf77-receiver/internal/dcf77"
)

// EdgeReader delivers signal edges in arrival order.
type EdgeReader interface {
	// Edges returns the channel edges are delivered on. The channel is
	// closed when the reader is closed.
	Edges() <-chan dcf77.Edge

	// Close releases GPIO resources.
	Close() error
}

// DefaultPin is the BCM pin the receiver module output is wired to.
const DefaultPin = 17

// DefaultChip is the GPIO character device of the Raspberry Pi header.
const DefaultChip = "gpiochip0"

// Bias selects the line termination.
type Bias string

const (
	BiasNone     Bias = "none"
	BiasPullUp   Bias = "pullup"
	BiasPullDown Bias = "pulldown"
)

// Micros converts a kernel event timestamp to the decoder's free-running
// microsecond counter, which wraps roughly every 71 minutes.
func Micros(ts time.Duration) uint32 {
	return uint32(uint64(ts / time.Microsecond))
}

// edgeOf maps a raw line transition to a decoder edge. Receiver modules with
// an open-collector output are active low, so the end of a carrier reduction
// shows up as a rising edge on the pin.
func edgeOf(rising, invert bool, ts time.Duration) dcf77.Edge {
	return dcf77.Edge{
		Falling:   rising == invert,
		Timestamp: Micros(ts),
	}
}
