package rfb

import (
	"encoding/binary"
	"fmt"
)

// Rectangle is one decoded region of a framebuffer update. Pixels are
// normalized RGBA in row-major order, Width*Height entries. Rectangles
// exist only for the duration of one update message.
type Rectangle struct {
	X      uint16
	Y      uint16
	Width  uint16
	Height uint16
	Pixels []RGBA
}

const (
	updateHeaderLength = 4  // type + pad + u16 rect count
	rectHeaderLength   = 12 // x, y, w, h (u16 each) + i32 encoding
)

// parseFramebufferUpdate frames and decodes one complete FramebufferUpdate
// message. buf[0] must already be MsgFramebufferUpdate.
//
// The scan pass walks every rectangle header to establish the total
// message length (per-rectangle pixel data length depends on the embedded
// width/height), and only when the whole message is buffered does the
// decode pass run. A truncated trailing rectangle therefore yields
// need-more-data, never a partial decode.
func parseFramebufferUpdate(buf []byte, format PixelFormat) (int, []Rectangle, error) {
	if len(buf) < updateHeaderLength {
		return 0, nil, nil
	}

	rectCount := int(binary.BigEndian.Uint16(buf[2:4]))
	bytesPerPixel := format.BytesPerPixel()

	// Scan pass: compute the full message length
	off := updateHeaderLength
	for i := 0; i < rectCount; i++ {
		if len(buf) < off+rectHeaderLength {
			return 0, nil, nil
		}

		width := int(binary.BigEndian.Uint16(buf[off+4 : off+6]))
		height := int(binary.BigEndian.Uint16(buf[off+6 : off+8]))
		encoding := int32(binary.BigEndian.Uint32(buf[off+8 : off+12]))

		// The encoding decides the data length; an encoding we don't
		// implement makes the rest of the stream unparseable
		if encoding != EncodingRaw {
			return 0, nil, fmt.Errorf("%w: encoding %d in rectangle %d of %d",
				ErrUnsupportedEncoding, encoding, i+1, rectCount)
		}

		off += rectHeaderLength + width*height*bytesPerPixel
	}

	if len(buf) < off {
		return 0, nil, nil
	}

	// Decode pass: the full message is buffered
	rects := make([]Rectangle, 0, rectCount)
	pos := updateHeaderLength
	for i := 0; i < rectCount; i++ {
		rect := Rectangle{
			X:      binary.BigEndian.Uint16(buf[pos : pos+2]),
			Y:      binary.BigEndian.Uint16(buf[pos+2 : pos+4]),
			Width:  binary.BigEndian.Uint16(buf[pos+4 : pos+6]),
			Height: binary.BigEndian.Uint16(buf[pos+6 : pos+8]),
		}
		pos += rectHeaderLength

		data := buf[pos : pos+int(rect.Width)*int(rect.Height)*bytesPerPixel]
		pixels, err := decodeRawRect(data, format)
		if err != nil {
			return 0, nil, err
		}
		rect.Pixels = pixels
		rects = append(rects, rect)
		pos += len(data)
	}

	return off, rects, nil
}

// decodeRawRect converts Raw-encoded pixel data (left-to-right,
// top-to-bottom) into normalized RGBA
func decodeRawRect(data []byte, format PixelFormat) ([]RGBA, error) {
	bytesPerPixel := format.BytesPerPixel()
	pixels := make([]RGBA, len(data)/bytesPerPixel)
	for i := range pixels {
		c, err := format.DecodePixel(data[i*bytesPerPixel : (i+1)*bytesPerPixel])
		if err != nil {
			return nil, err
		}
		pixels[i] = c
	}
	return pixels, nil
}

// parseSetColourMapEntries frames a SetColourMapEntries message. The
// entries are discarded: only true-color Raw streams are rendered, but the
// message is self-delimiting and must be removed from the stream.
func parseSetColourMapEntries(buf []byte) (int, error) {
	const header = 6 // type + pad + u16 first color + u16 count
	if len(buf) < header {
		return 0, nil
	}
	count := int(binary.BigEndian.Uint16(buf[4:6]))
	total := header + 6*count // 3 u16 intensities per entry
	if len(buf) < total {
		return 0, nil
	}
	return total, nil
}

// parseServerCutText frames a ServerCutText message. Clipboard contents
// are discarded, but the message must be consumed to keep the stream
// aligned.
func parseServerCutText(buf []byte) (int, error) {
	const header = 8 // type + 3 pad + u32 length
	if len(buf) < header {
		return 0, nil
	}
	length := binary.BigEndian.Uint32(buf[4:8])
	if length > 1<<20 {
		return 0, fmt.Errorf("%w: cut text length %d exceeds limit", ErrMalformed, length)
	}
	total := header + int(length)
	if len(buf) < total {
		return 0, nil
	}
	return total, nil
}
