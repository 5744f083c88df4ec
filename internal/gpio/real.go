//go:build linux

package gpio

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/sweeney/dcf77-receiver/internal/dcf77"
	"github.com/warthog618/go-gpiocdev"
)

// RealReader captures edges from actual hardware using the Linux GPIO
// character device. Edges are timestamped by the kernel.
type RealReader struct {
	chip    *gpiocdev.Chip
	line    *gpiocdev.Line
	invert  bool
	edges   chan dcf77.Edge
	dropped atomic.Uint64
}

// NewRealReader requests pin on the named chip for edge detection on both
// edges. buffer is the number of edges held while the consumer is busy.
func NewRealReader(chipName string, pin int, bias Bias, invert bool, buffer int) (*RealReader, error) {
	var biasOpt gpiocdev.LineReqOption
	switch bias {
	case BiasPullUp:
		biasOpt = gpiocdev.WithPullUp
	case BiasPullDown:
		biasOpt = gpiocdev.WithPullDown
	case BiasNone, "":
		biasOpt = gpiocdev.WithBiasDisabled
	default:
		return nil, fmt.Errorf("unknown bias %q", bias)
	}

	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	r := &RealReader{
		chip:   chip,
		invert: invert,
		edges:  make(chan dcf77.Edge, buffer),
	}

	line, err := chip.RequestLine(pin,
		gpiocdev.AsInput,
		biasOpt,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(r.handle))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pin %d: %w", pin, err)
	}
	r.line = line

	return r, nil
}

// handle runs on the gpiocdev event goroutine. It must not block: a stalled
// consumer loses edges rather than delaying the kernel event queue.
func (r *RealReader) handle(evt gpiocdev.LineEvent) {
	e := edgeOf(evt.Type == gpiocdev.LineEventRisingEdge, r.invert, evt.Timestamp)
	select {
	case r.edges <- e:
	default:
		if r.dropped.Add(1) == 1 {
			log.Printf("gpio: edge buffer full (%d), dropping edges", cap(r.edges))
		}
	}
}

// Edges returns the edge channel.
func (r *RealReader) Edges() <-chan dcf77.Edge {
	return r.edges
}

// Dropped returns the number of edges lost to a full buffer.
func (r *RealReader) Dropped() uint64 {
	return r.dropped.Load()
}

// Close releases GPIO resources and closes the edge channel.
// Reconfigures the pin to a plain input with pull-down (matching Pi boot
// defaults) before closing.
func (r *RealReader) Close() error {
	var errs []error

	if r.line != nil {
		if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin: %w", err))
		}
		// Close waits for a running event handler to return.
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	close(r.edges)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
