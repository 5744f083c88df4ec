//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/dcf77-receiver/internal/dcf77"
)

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(chipName string, pin int, bias Bias, invert bool, buffer int) (*RealReader, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Edges returns a nil channel on non-Linux platforms.
func (r *RealReader) Edges() <-chan dcf77.Edge {
	return nil
}

// Dropped always returns 0 on non-Linux platforms.
func (r *RealReader) Dropped() uint64 {
	return 0
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}
