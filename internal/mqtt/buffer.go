package mqtt

import "log"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// backlog holds messages published while the broker is unreachable, oldest
// first. A receiver publishes every minute, so a long outage overflows it; the
// oldest minutes go first. A retained message replaces any retained message
// already queued for the same topic, since the broker would only keep the last
// one anyway.
//
// Not safe for concurrent use; RealPublisher holds its mutex around every call.
type backlog struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int // since the last drain
}

func newBacklog(capacity int) *backlog {
	if capacity < 1 {
		capacity = 1
	}
	return &backlog{capacity: capacity}
}

func (b *backlog) push(msg bufferedMsg) {
	if msg.retained {
		for i, m := range b.msgs {
			if m.retained && m.topic == msg.topic {
				b.msgs = append(b.msgs[:i], b.msgs[i+1:]...)
				break
			}
		}
	}
	if len(b.msgs) == b.capacity {
		if b.dropped == 0 {
			log.Printf("mqtt: backlog full (%d messages), dropping oldest", b.capacity)
		}
		b.dropped++
		b.msgs = b.msgs[1:]
	}
	b.msgs = append(b.msgs, msg)
}

// drainAll empties the backlog and reports how many messages were lost to
// overflow since the previous drain.
func (b *backlog) drainAll() (msgs []bufferedMsg, dropped int) {
	msgs, dropped = b.msgs, b.dropped
	b.msgs, b.dropped = nil, 0
	return msgs, dropped
}

func (b *backlog) len() int {
	return len(b.msgs)
}
