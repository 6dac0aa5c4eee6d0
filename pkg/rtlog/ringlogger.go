package rtlog

import "github.com/firewheel-audio/firewheel-go/pkg/ctrlchan"

// record is one preformatted log entry. Msg is always a string constant
// from the call site (its backing array lives in the binary's rodata, so
// storing it here is not a heap allocation); the up-to-three numeric
// arguments let the processor report counters and sample positions
// without touching fmt.
type record struct {
	level Level
	msg   string
	nargs int
	a0    float64
	a1    float64
	a2    float64
}

// RingLogger is the processor-side half of the split logger: a bounded
// SPSC ring (pkg/ctrlchan.Ring) of fixed-size records. Log never takes a
// lock, never calls fmt, and never allocates, so it is safe to call from
// inside Processor.Process. A control-side goroutine periodically calls
// Drain to format and emit the accumulated records through a Logger.
type RingLogger struct {
	ring  *ctrlchan.Ring[record]
	level Level
}

// NewRingLogger builds a ring logger with room for capacity records
// (rounded up to the next power of two by the underlying ring).
func NewRingLogger(capacity int) *RingLogger {
	return &RingLogger{ring: ctrlchan.NewRing[record](capacity), level: LevelDebug}
}

// SetLevel sets the minimum level Log will enqueue. Checked before the
// ring push so a disabled level costs one comparison and nothing else.
func (r *RingLogger) SetLevel(level Level) { r.level = level }

// Log0 enqueues a message with no numeric arguments.
func (r *RingLogger) Log0(level Level, msg string) {
	if level < r.level {
		return
	}
	r.ring.Push(record{level: level, msg: msg})
}

// Log1 enqueues a message with one numeric argument.
func (r *RingLogger) Log1(level Level, msg string, a0 float64) {
	if level < r.level {
		return
	}
	r.ring.Push(record{level: level, msg: msg, nargs: 1, a0: a0})
}

// Log2 enqueues a message with two numeric arguments.
func (r *RingLogger) Log2(level Level, msg string, a0, a1 float64) {
	if level < r.level {
		return
	}
	r.ring.Push(record{level: level, msg: msg, nargs: 2, a0: a0, a1: a1})
}

// Log3 enqueues a message with three numeric arguments.
func (r *RingLogger) Log3(level Level, msg string, a0, a1, a2 float64) {
	if level < r.level {
		return
	}
	r.ring.Push(record{level: level, msg: msg, nargs: 3, a0: a0, a1: a1, a2: a2})
}

// Drain pops every currently-queued record and forwards it to dst,
// formatting with fmt on the control thread where that cost is fine. It
// returns the number of records drained; call it periodically (e.g. once
// per control-side tick) rather than after every block, since Drain
// itself is not meant to run on the audio thread.
func (r *RingLogger) Drain(dst *Logger) int {
	n := 0
	for {
		rec, ok := r.ring.Pop()
		if !ok {
			return n
		}
		n++
		switch rec.nargs {
		case 0:
			dst.log(rec.level, "%s", rec.msg)
		case 1:
			dst.log(rec.level, "%s a0=%g", rec.msg, rec.a0)
		case 2:
			dst.log(rec.level, "%s a0=%g a1=%g", rec.msg, rec.a0, rec.a1)
		default:
			dst.log(rec.level, "%s a0=%g a1=%g a2=%g", rec.msg, rec.a0, rec.a1, rec.a2)
		}
	}
}
