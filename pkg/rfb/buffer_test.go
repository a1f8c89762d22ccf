package rfb

import (
	"bytes"
	"testing"
)

func TestReceiveBufferAppendConsume(t *testing.T) {
	buf := NewReceiveBuffer()
	if buf.Len() != 0 {
		t.Fatalf("new buffer Len() = %d, want 0", buf.Len())
	}

	buf.Append([]byte("hello "))
	buf.Append([]byte("world"))
	if buf.Len() != 11 {
		t.Fatalf("Len() = %d, want 11", buf.Len())
	}
	if !bytes.Equal(buf.Bytes(), []byte("hello world")) {
		t.Fatalf("Bytes() = %q", buf.Bytes())
	}

	buf.Consume(6)
	if !bytes.Equal(buf.Bytes(), []byte("world")) {
		t.Fatalf("after Consume(6), Bytes() = %q", buf.Bytes())
	}

	buf.Consume(5)
	if buf.Len() != 0 {
		t.Fatalf("after full consume, Len() = %d", buf.Len())
	}

	// Reusable after full consumption
	buf.Append([]byte("again"))
	if !bytes.Equal(buf.Bytes(), []byte("again")) {
		t.Fatalf("after reuse, Bytes() = %q", buf.Bytes())
	}
}

func TestReceiveBufferConsumeZero(t *testing.T) {
	buf := NewReceiveBuffer()
	buf.Append([]byte("abc"))
	buf.Consume(0)
	if !bytes.Equal(buf.Bytes(), []byte("abc")) {
		t.Fatalf("Consume(0) changed contents: %q", buf.Bytes())
	}
}

func TestReceiveBufferConsumeBeyondPanics(t *testing.T) {
	buf := NewReceiveBuffer()
	buf.Append([]byte("abc"))

	defer func() {
		if recover() == nil {
			t.Fatal("Consume beyond buffered data did not panic")
		}
	}()
	buf.Consume(4)
}

func TestReceiveBufferCompaction(t *testing.T) {
	// Interleave appends and partial consumes past the compaction
	// threshold; contents must be stable throughout.
	buf := NewReceiveBuffer()
	next := byte(0)
	var pending []byte

	for round := 0; round < 200; round++ {
		chunk := make([]byte, 100)
		for i := range chunk {
			chunk[i] = next
			next++
		}
		buf.Append(chunk)
		pending = append(pending, chunk...)

		buf.Consume(70)
		pending = pending[70:]

		if !bytes.Equal(buf.Bytes(), pending) {
			t.Fatalf("round %d: buffer diverged from expected contents", round)
		}
	}
}

func TestReceiveBufferReset(t *testing.T) {
	buf := NewReceiveBuffer()
	buf.Append([]byte("leftover"))
	buf.Consume(3)
	buf.Reset()
	if buf.Len() != 0 {
		t.Fatalf("after Reset, Len() = %d", buf.Len())
	}
	buf.Append([]byte("x"))
	if !bytes.Equal(buf.Bytes(), []byte("x")) {
		t.Fatalf("after Reset+Append, Bytes() = %q", buf.Bytes())
	}
}
