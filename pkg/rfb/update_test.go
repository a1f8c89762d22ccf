package rfb

import (
	"encoding/binary"
	"errors"
	"testing"
)

// buildUpdate assembles a FramebufferUpdate message from raw rectangles
func buildUpdate(rects ...rawRect) []byte {
	msg := []byte{MsgFramebufferUpdate, 0}
	msg = binary.BigEndian.AppendUint16(msg, uint16(len(rects)))
	for _, r := range rects {
		msg = binary.BigEndian.AppendUint16(msg, r.x)
		msg = binary.BigEndian.AppendUint16(msg, r.y)
		msg = binary.BigEndian.AppendUint16(msg, r.w)
		msg = binary.BigEndian.AppendUint16(msg, r.h)
		msg = binary.BigEndian.AppendUint32(msg, uint32(r.encoding))
		msg = append(msg, r.data...)
	}
	return msg
}

type rawRect struct {
	x, y, w, h uint16
	encoding   int32
	data       []byte
}

// pixels32 builds little-endian 32bpp samples from RGBA values
func pixels32(colors ...RGBA) []byte {
	data := make([]byte, 0, 4*len(colors))
	for _, c := range colors {
		data = append(data, c.B, c.G, c.R, 0)
	}
	return data
}

func TestParseFramebufferUpdate(t *testing.T) {
	red := RGBA{R: 255, A: 255}
	green := RGBA{G: 255, A: 255}
	blue := RGBA{B: 255, A: 255}
	white := RGBA{R: 255, G: 255, B: 255, A: 255}

	msg := buildUpdate(rawRect{
		x: 10, y: 20, w: 2, h: 2,
		encoding: EncodingRaw,
		data:     pixels32(red, green, blue, white),
	})

	n, rects, err := parseFramebufferUpdate(msg, PixelFormatRGBA32)
	if err != nil {
		t.Fatalf("parseFramebufferUpdate: %v", err)
	}
	if n != len(msg) {
		t.Fatalf("consumed %d, want %d", n, len(msg))
	}
	if len(rects) != 1 {
		t.Fatalf("got %d rectangles", len(rects))
	}

	rect := rects[0]
	if rect.X != 10 || rect.Y != 20 || rect.Width != 2 || rect.Height != 2 {
		t.Fatalf("rect geometry = %+v", rect)
	}

	// Raw pixels run left-to-right, top-to-bottom
	want := []RGBA{red, green, blue, white}
	for i, c := range want {
		if rect.Pixels[i] != c {
			t.Errorf("pixel %d = %+v, want %+v", i, rect.Pixels[i], c)
		}
	}
}

func TestParseFramebufferUpdateMultipleRects(t *testing.T) {
	black := RGBA{A: 255}
	msg := buildUpdate(
		rawRect{x: 0, y: 0, w: 1, h: 1, encoding: EncodingRaw, data: pixels32(black)},
		rawRect{x: 5, y: 5, w: 2, h: 1, encoding: EncodingRaw, data: pixels32(black, black)},
	)

	n, rects, err := parseFramebufferUpdate(msg, PixelFormatRGBA32)
	if err != nil {
		t.Fatalf("parseFramebufferUpdate: %v", err)
	}
	if n != len(msg) || len(rects) != 2 {
		t.Fatalf("n=%d rects=%d", n, len(rects))
	}
	if rects[1].X != 5 || len(rects[1].Pixels) != 2 {
		t.Fatalf("second rect = %+v", rects[1])
	}
}

func TestParseFramebufferUpdatePartialRect(t *testing.T) {
	// 4x4 rect at 32bpp: 12 header + 64 data bytes. Any truncation must
	// yield need-more-data, never a partial decode.
	msg := buildUpdate(rawRect{
		w: 4, h: 4, encoding: EncodingRaw, data: make([]byte, 64),
	})

	for _, cut := range []int{3, 4, 15, len(msg) - 24, len(msg) - 1} {
		n, rects, err := parseFramebufferUpdate(msg[:cut], PixelFormatRGBA32)
		if err != nil {
			t.Fatalf("cut %d: %v", cut, err)
		}
		if n != 0 || rects != nil {
			t.Fatalf("cut %d: n=%d rects=%v", cut, n, rects)
		}
	}
}

func TestParseFramebufferUpdateUnsupportedEncoding(t *testing.T) {
	// CopyRect (1) carries 4 bytes of data, not w*h pixels; the stream is
	// unparseable past it and the session must fail
	msg := buildUpdate(rawRect{w: 4, h: 4, encoding: 1})

	_, _, err := parseFramebufferUpdate(msg, PixelFormatRGBA32)
	if !errors.Is(err, ErrUnsupportedEncoding) {
		t.Fatalf("expected ErrUnsupportedEncoding, got %v", err)
	}
}

func TestParseFramebufferUpdateEmptyRect(t *testing.T) {
	// Zero-area rectangles are legal and carry no pixel data
	msg := buildUpdate(rawRect{x: 1, y: 2, w: 0, h: 5, encoding: EncodingRaw})

	n, rects, err := parseFramebufferUpdate(msg, PixelFormatRGBA32)
	if err != nil {
		t.Fatalf("parseFramebufferUpdate: %v", err)
	}
	if n != len(msg) || len(rects) != 1 || len(rects[0].Pixels) != 0 {
		t.Fatalf("n=%d rects=%+v", n, rects)
	}
}

func TestParseFramebufferUpdateZeroRects(t *testing.T) {
	msg := buildUpdate()
	n, rects, err := parseFramebufferUpdate(msg, PixelFormatRGBA32)
	if err != nil {
		t.Fatalf("parseFramebufferUpdate: %v", err)
	}
	if n != updateHeaderLength || len(rects) != 0 {
		t.Fatalf("n=%d rects=%d", n, len(rects))
	}
}

func TestParseSetColourMapEntries(t *testing.T) {
	msg := []byte{MsgSetColourMapEntries, 0, 0, 0, 0, 2} // 2 entries
	msg = append(msg, make([]byte, 12)...)               // 3 u16 per entry

	n, err := parseSetColourMapEntries(msg)
	if err != nil {
		t.Fatalf("parseSetColourMapEntries: %v", err)
	}
	if n != len(msg) {
		t.Fatalf("consumed %d, want %d", n, len(msg))
	}

	// One intensity short
	n, err = parseSetColourMapEntries(msg[:len(msg)-1])
	if err != nil || n != 0 {
		t.Fatalf("partial: n=%d err=%v", n, err)
	}
}

func TestParseServerCutText(t *testing.T) {
	text := "copied text"
	msg := []byte{MsgServerCutText, 0, 0, 0}
	msg = binary.BigEndian.AppendUint32(msg, uint32(len(text)))
	msg = append(msg, text...)

	n, err := parseServerCutText(msg)
	if err != nil {
		t.Fatalf("parseServerCutText: %v", err)
	}
	if n != len(msg) {
		t.Fatalf("consumed %d, want %d", n, len(msg))
	}

	n, err = parseServerCutText(msg[:6])
	if err != nil || n != 0 {
		t.Fatalf("partial: n=%d err=%v", n, err)
	}
}

func TestParseServerCutTextLimit(t *testing.T) {
	msg := []byte{MsgServerCutText, 0, 0, 0}
	msg = binary.BigEndian.AppendUint32(msg, 2<<20)

	_, err := parseServerCutText(msg)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
