// Package replay feeds recorded receiver logs through a logic.Receiver.
//
// Two formats are understood. A bit log holds one character per second,
// '0', '1' or '_' for an undetermined bit, and a newline wherever a minute
// marker was seen. An edge log holds one edge per line:
//
//	R 1234567
//	F 1334567
//	F 1234567 1334567
//
// where R and F are rising and falling edges and the numbers are the wrapping
// microsecond timestamps. A line with two timestamps carries the previous
// edge time as well. In both formats '#' starts a comment line and blank
// space is ignored.
package replay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/dcf77-receiver/internal/dcf77"
	"github.com/sweeney/dcf77-receiver/internal/logic"
)

// Format names a log format.
type Format string

const (
	FormatBits  Format = "bits"
	FormatEdges Format = "edges"
)

// ErrSyntax is wrapped by every parse error.
var ErrSyntax = errors.New("replay: syntax error")

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatBits, FormatEdges:
		return f, nil
	}
	return "", fmt.Errorf("unknown replay format %q (want bits or edges)", s)
}

// Mode returns the decoder discipline a format must be replayed with.
func (f Format) Mode() dcf77.Mode {
	if f == FormatBits {
		return dcf77.ModeOffline
	}
	return dcf77.ModeStreaming
}

// Summary counts what a replay consumed.
type Summary struct {
	Lines   int
	Inputs  int // bits and markers, or edges
	Markers int // bit logs only
	Events  int
}

// Player replays logs into a receiver. Event timestamps are synthesised from
// Start: one second per bit, or the elapsed edge time.
type Player struct {
	Receiver *logic.Receiver
	Start    time.Time
	Emit     func(logic.Event)
}

// Run replays src in the given format until EOF, a parse error or ctx is done.
func (p *Player) Run(ctx context.Context, format Format, src io.Reader) (Summary, error) {
	switch format {
	case FormatBits:
		return p.bits(ctx, src)
	case FormatEdges:
		return p.edges(ctx, src)
	}
	return Summary{}, fmt.Errorf("unknown replay format %q", format)
}

func (p *Player) emit(sum *Summary, events []logic.Event) {
	sum.Events += len(events)
	if p.Emit == nil {
		return
	}
	for _, e := range events {
		p.Emit(e)
	}
}

func (p *Player) bits(ctx context.Context, src io.Reader) (Summary, error) {
	var sum Summary
	br := bufio.NewReader(src)
	now := p.Start

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		line, err := br.ReadString('\n')
		if line == "" && err != nil {
			if errors.Is(err, io.EOF) {
				return sum, nil
			}
			return sum, fmt.Errorf("read bit log: %w", err)
		}
		sum.Lines++

		marker := strings.HasSuffix(line, "\n")
		body := strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(strings.TrimSpace(body), "#") {
			continue
		}

		for col, c := range body {
			var b dcf77.Bit
			switch c {
			case '0':
				b = dcf77.Zero
			case '1':
				b = dcf77.One
			case '_':
				b = dcf77.Unknown
			case ' ', '\t':
				continue
			default:
				return sum, fmt.Errorf("line %d col %d: unexpected %q: %w", sum.Lines, col+1, c, ErrSyntax)
			}
			sum.Inputs++
			p.emit(&sum, p.Receiver.ProcessBit(b, now))
			now = now.Add(time.Second)
		}

		if marker {
			sum.Inputs++
			sum.Markers++
			p.emit(&sum, p.Receiver.ProcessMarker(now))
			now = now.Add(time.Second)
		}
	}
}

func (p *Player) edges(ctx context.Context, src io.Reader) (Summary, error) {
	var sum Summary
	sc := bufio.NewScanner(src)
	var (
		first   = true
		last    uint32
		elapsed time.Duration
	)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Lines++

		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, err := ParseEdgeLine(line)
		if err != nil {
			return sum, fmt.Errorf("line %d: %w", sum.Lines, err)
		}

		if !first {
			elapsed += time.Duration(dcf77.TimeDiff(last, rec.Edge.Timestamp)) * time.Microsecond
		}
		first = false
		last = rec.Edge.Timestamp
		now := p.Start.Add(elapsed)

		sum.Inputs++
		if rec.HasPrev {
			p.emit(&sum, p.Receiver.ProcessPair(rec.Edge.Falling, rec.Prev, rec.Edge.Timestamp, now))
		} else {
			p.emit(&sum, p.Receiver.Process(logic.Input{Edge: rec.Edge, Time: now}))
		}
	}
	if err := sc.Err(); err != nil {
		return sum, fmt.Errorf("read edge log: %w", err)
	}
	return sum, nil
}

// EdgeRecord is one parsed edge log line.
type EdgeRecord struct {
	Edge    dcf77.Edge
	Prev    uint32
	HasPrev bool
}

// ParseEdgeLine parses "R|F <t>" or "R|F <prev> <t>".
func ParseEdgeLine(line string) (EdgeRecord, error) {
	var rec EdgeRecord
	fields := strings.Fields(line)
	if len(fields) != 2 && len(fields) != 3 {
		return rec, fmt.Errorf("want 2 or 3 fields, got %d: %w", len(fields), ErrSyntax)
	}

	switch strings.ToUpper(fields[0]) {
	case "R":
	case "F":
		rec.Edge.Falling = true
	default:
		return rec, fmt.Errorf("edge kind %q: %w", fields[0], ErrSyntax)
	}

	ts := make([]uint32, 0, 2)
	for _, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return rec, fmt.Errorf("timestamp %q: %w", f, ErrSyntax)
		}
		ts = append(ts, uint32(v))
	}
	rec.Edge.Timestamp = ts[len(ts)-1]
	if len(ts) == 2 {
		rec.Prev, rec.HasPrev = ts[0], true
	}
	return rec, nil
}

// FormatEdge renders an edge as an edge log line, without the newline.
func FormatEdge(e dcf77.Edge) string {
	kind := "R"
	if e.Falling {
		kind = "F"
	}
	return kind + " " + strconv.FormatUint(uint64(e.Timestamp), 10)
}

// Recorder appends live edges to an edge log.
type Recorder struct {
	w *bufio.Writer
}

// NewRecorder wraps w. Call Flush before closing the underlying writer.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: bufio.NewWriter(w)}
}

// Record writes one edge.
func (r *Recorder) Record(e dcf77.Edge) error {
	if _, err := r.w.WriteString(FormatEdge(e) + "\n"); err != nil {
		return fmt.Errorf("record edge: %w", err)
	}
	return nil
}

// Flush writes any buffered lines.
func (r *Recorder) Flush() error {
	return r.w.Flush()
}
