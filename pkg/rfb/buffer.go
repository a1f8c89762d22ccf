package rfb

// ReceiveBuffer accumulates inbound transport chunks until complete
// protocol messages can be parsed out of the front.
//
// Invariant: bytes leave the buffer only through Consume, and only after
// the caller has identified a complete message. A parse attempt that comes
// up short must leave the buffer untouched, which is what makes message
// reassembly across arbitrary transport-frame boundaries correct.
//
// The buffer keeps a read offset instead of reslicing on every consume, so
// high-frequency small messages do not cause quadratic copying.
type ReceiveBuffer struct {
	data []byte
	off  int
}

// NewReceiveBuffer creates an empty receive buffer
func NewReceiveBuffer() *ReceiveBuffer {
	return &ReceiveBuffer{}
}

// Append adds an inbound chunk to the back of the buffer
func (b *ReceiveBuffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}

	// Compact once the dead prefix dominates, reclaiming capacity before
	// the append instead of growing past it
	if b.off > len(b.data)/2 && b.off > 512 {
		b.compact()
	}

	b.data = append(b.data, p...)
}

// Bytes returns the unconsumed bytes. The slice aliases the buffer's
// storage and is only valid until the next Append or Consume.
func (b *ReceiveBuffer) Bytes() []byte {
	return b.data[b.off:]
}

// Len returns the number of unconsumed bytes
func (b *ReceiveBuffer) Len() int {
	return len(b.data) - b.off
}

// Consume discards n bytes from the front. n must not exceed Len; anything
// else indicates a framing bug, not a recoverable condition.
func (b *ReceiveBuffer) Consume(n int) {
	if n < 0 || n > b.Len() {
		panic("rfb: consume beyond buffered data")
	}
	b.off += n
	if b.off == len(b.data) {
		// Everything consumed - reuse the allocation from the start
		b.data = b.data[:0]
		b.off = 0
	}
}

// Reset discards all buffered data
func (b *ReceiveBuffer) Reset() {
	b.data = b.data[:0]
	b.off = 0
}

func (b *ReceiveBuffer) compact() {
	n := copy(b.data, b.data[b.off:])
	b.data = b.data[:n]
	b.off = 0
}
