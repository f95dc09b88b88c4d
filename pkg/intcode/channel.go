package intcode

import "github.com/ednl/intcode/internal/types"

// SourceFunc supplies a value when a pop finds the channel empty. It is the
// process-boundary hook: a standalone machine reads a line from stdin here.
type SourceFunc func() types.Word

// SinkFunc receives values a bounded channel cannot hold, or values produced
// by a machine with no downstream consumer.
type SinkFunc func(types.Word)

// Channel is the FIFO queue carrying Words along one communication edge,
// between two machines or between a machine and the process boundary.
//
// Access is always sequenced by the orchestrator's scheduling, so there is
// no locking. The zero policy is unbounded; a capacity with a sink gives
// the drain-on-overflow behavior of the original bounded design.
type Channel struct {
	buf []types.Word

	// capacity limits the queue when > 0; overflow goes to sink.
	capacity int
	sink     SinkFunc

	// source feeds pops on an empty queue.
	source SourceFunc
}

// NewChannel creates an unbounded channel.
func NewChannel() *Channel {
	return &Channel{}
}

// NewBoundedChannel creates a channel holding at most capacity values.
// A push on a full channel drains the value to sink instead of blocking.
func NewBoundedChannel(capacity int, sink SinkFunc) *Channel {
	return &Channel{capacity: capacity, sink: sink}
}

// SetSource installs the empty-pop fallback.
func (c *Channel) SetSource(fn SourceFunc) {
	c.source = fn
}

// SetSink installs the overflow drain.
func (c *Channel) SetSink(fn SinkFunc) {
	c.sink = fn
}

// Push appends v at the tail. On a full bounded channel the value drains to
// the sink; it is never silently dropped unless no sink is installed.
func (c *Channel) Push(v types.Word) {
	if c.capacity > 0 && len(c.buf) >= c.capacity {
		if c.sink != nil {
			c.sink(v)
		}
		return
	}
	c.buf = append(c.buf, v)
}

// Pop removes and returns the head. On an empty channel it falls back to
// the source when one is installed; otherwise ok is false and the caller
// must suspend.
func (c *Channel) Pop() (v types.Word, ok bool) {
	if len(c.buf) == 0 {
		if c.source != nil {
			return c.source(), true
		}
		return 0, false
	}
	v = c.buf[0]
	c.buf = c.buf[1:]
	return v, true
}

// Len returns the number of queued values.
func (c *Channel) Len() int {
	return len(c.buf)
}

// Drain empties the channel, returning the queued values in FIFO order.
func (c *Channel) Drain() []types.Word {
	out := c.buf
	c.buf = nil
	return out
}
