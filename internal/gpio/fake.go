package gpio

import (
	"time"

	"github.com/sweeney/dcf77-receiver/internal/dcf77"
)

// FakeReader is a test double that delivers scripted edges.
type FakeReader struct {
	edges chan dcf77.Edge

	// Invert mirrors the real reader's polarity handling for Push.
	Invert bool

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeReader creates a FakeReader with the given edges already queued.
// capacity bounds the number of edges that can be pending at once.
func NewFakeReader(edges []dcf77.Edge, capacity int) *FakeReader {
	if capacity < len(edges) {
		capacity = len(edges)
	}
	f := &FakeReader{edges: make(chan dcf77.Edge, capacity)}
	for _, e := range edges {
		f.edges <- e
	}
	return f
}

// Push queues a raw pin transition as the real reader would see it.
// It blocks when the queue is full.
func (f *FakeReader) Push(rising bool, ts time.Duration) {
	f.edges <- edgeOf(rising, f.Invert, ts)
}

// Pending returns the number of queued edges.
func (f *FakeReader) Pending() int {
	return len(f.edges)
}

// Edges returns the edge channel.
func (f *FakeReader) Edges() <-chan dcf77.Edge {
	return f.edges
}

// EdgeTrain synthesizes the edges a receiver module emits for consecutive
// minutes given as bit strings ('0', '1', '_' per second, marker excluded),
// starting with the rising edge of the first second at base. A '_' second
// gets a pulse too long to classify. The train ends with the rising edge
// that closes the last minute.
func EdgeTrain(minutes []string, base uint32) []dcf77.Edge {
	var edges []dcf77.Edge
	t := base
	for _, bits := range minutes {
		for _, c := range bits {
			pulse := uint32(100_000)
			switch c {
			case '1':
				pulse = 200_000
			case '_':
				pulse = 300_000
			}
			edges = append(edges,
				dcf77.Edge{Falling: false, Timestamp: t},
				dcf77.Edge{Falling: true, Timestamp: t + pulse})
			t += 1_000_000
		}
		t += 1_000_000 // marker
	}
	return append(edges, dcf77.Edge{Falling: false, Timestamp: t})
}

// Close marks the reader as closed and closes the edge channel.
func (f *FakeReader) Close() error {
	if !f.Closed {
		close(f.edges)
	}
	f.Closed = true
	return nil
}
