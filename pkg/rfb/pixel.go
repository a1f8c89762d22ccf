package rfb

import (
	"encoding/binary"
	"fmt"
)

// PixelFormatLength - the pixel format block inside ServerInit and
// SetPixelFormat is a fixed 16 bytes
const PixelFormatLength = 16

// PixelFormat describes how one pixel sample on the wire maps to RGB
// components. Negotiated once during the handshake and immutable for the
// rest of the session.
type PixelFormat struct {
	// BPP is bits per pixel on the wire. Only 8, 16 and 32 are valid.
	BPP uint8

	// Depth is the number of useful bits within each pixel value
	Depth uint8

	// BigEndian selects the byte order for multi-byte pixel values
	BigEndian bool

	// TrueColor is true when pixels carry direct RGB values rather than
	// color map indices
	TrueColor bool

	// Maximum value of each color component
	RedMax   uint16
	GreenMax uint16
	BlueMax  uint16

	// Right-shift that moves each component to the least significant bits
	RedShift   uint8
	GreenShift uint8
	BlueShift  uint8
}

// RGBA is a normalized 8-bit-per-channel pixel. Alpha is always 255 - RFB
// carries no alpha channel.
type RGBA struct {
	R, G, B, A uint8
}

// PixelFormatRGBA32 is the common 32bpp little-endian true-color layout
// (depth 24, shifts 16/8/0)
var PixelFormatRGBA32 = PixelFormat{
	BPP:        32,
	Depth:      24,
	BigEndian:  false,
	TrueColor:  true,
	RedMax:     255,
	GreenMax:   255,
	BlueMax:    255,
	RedShift:   16,
	GreenShift: 8,
	BlueShift:  0,
}

// BytesPerPixel returns the wire size of one pixel sample
func (f PixelFormat) BytesPerPixel() int {
	return int(f.BPP) / 8
}

// Validate rejects formats this client cannot decode. Anything outside
// 8/16/32 bpp would require guessing a byte width, so it fails instead.
func (f PixelFormat) Validate() error {
	if f.BPP != 8 && f.BPP != 16 && f.BPP != 32 {
		return fmt.Errorf("%w: %d bits per pixel", ErrUnsupportedPixelFormat, f.BPP)
	}
	if f.Depth > f.BPP {
		return fmt.Errorf("%w: depth %d exceeds %d bits per pixel",
			ErrUnsupportedPixelFormat, f.Depth, f.BPP)
	}
	return nil
}

// ParsePixelFormat parses the 16-byte wire pixel format block.
// Layout: bpp(1) depth(1) bigEndian(1) trueColor(1) redMax(2) greenMax(2)
// blueMax(2) redShift(1) greenShift(1) blueShift(1) padding(3).
func ParsePixelFormat(data []byte) (PixelFormat, error) {
	if len(data) != PixelFormatLength {
		return PixelFormat{}, fmt.Errorf("%w: pixel format block is %d bytes, expected %d",
			ErrMalformed, len(data), PixelFormatLength)
	}

	f := PixelFormat{
		BPP:        data[0],
		Depth:      data[1],
		BigEndian:  data[2] != 0,
		TrueColor:  data[3] != 0,
		RedMax:     binary.BigEndian.Uint16(data[4:6]),
		GreenMax:   binary.BigEndian.Uint16(data[6:8]),
		BlueMax:    binary.BigEndian.Uint16(data[8:10]),
		RedShift:   data[10],
		GreenShift: data[11],
		BlueShift:  data[12],
	}
	// data[13:16] is padding

	return f, nil
}

// AppendWire appends the 16-byte wire representation of the format
func (f PixelFormat) AppendWire(dst []byte) []byte {
	var be, tc uint8
	if f.BigEndian {
		be = 1
	}
	if f.TrueColor {
		tc = 1
	}

	dst = append(dst, f.BPP, f.Depth, be, tc)
	dst = binary.BigEndian.AppendUint16(dst, f.RedMax)
	dst = binary.BigEndian.AppendUint16(dst, f.GreenMax)
	dst = binary.BigEndian.AppendUint16(dst, f.BlueMax)
	dst = append(dst, f.RedShift, f.GreenShift, f.BlueShift)
	dst = append(dst, 0, 0, 0) // padding
	return dst
}

// DecodePixel converts one raw wire sample into a normalized RGBA value.
// raw must be exactly BytesPerPixel long.
//
// Each component is extracted as (value >> shift) & max and scaled to the
// 0-255 range via component*255/max.
func (f PixelFormat) DecodePixel(raw []byte) (RGBA, error) {
	if err := f.Validate(); err != nil {
		return RGBA{}, err
	}
	if len(raw) != f.BytesPerPixel() {
		return RGBA{}, fmt.Errorf("%w: pixel sample is %d bytes, expected %d",
			ErrMalformed, len(raw), f.BytesPerPixel())
	}

	var value uint32
	switch f.BPP {
	case 8:
		value = uint32(raw[0])
	case 16:
		if f.BigEndian {
			value = uint32(binary.BigEndian.Uint16(raw))
		} else {
			value = uint32(binary.LittleEndian.Uint16(raw))
		}
	case 32:
		if f.BigEndian {
			value = binary.BigEndian.Uint32(raw)
		} else {
			value = binary.LittleEndian.Uint32(raw)
		}
	}

	return RGBA{
		R: scaleComponent(value, f.RedShift, f.RedMax),
		G: scaleComponent(value, f.GreenShift, f.GreenMax),
		B: scaleComponent(value, f.BlueShift, f.BlueMax),
		A: 255,
	}, nil
}

// EncodePixel converts a normalized RGBA value back into a wire sample.
// Exact round-trips hold only when each component max is 255; smaller
// maxes quantize.
func (f PixelFormat) EncodePixel(c RGBA) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	value := uint32(c.R)*uint32(f.RedMax)/255<<f.RedShift |
		uint32(c.G)*uint32(f.GreenMax)/255<<f.GreenShift |
		uint32(c.B)*uint32(f.BlueMax)/255<<f.BlueShift

	raw := make([]byte, f.BytesPerPixel())
	switch f.BPP {
	case 8:
		raw[0] = uint8(value)
	case 16:
		if f.BigEndian {
			binary.BigEndian.PutUint16(raw, uint16(value))
		} else {
			binary.LittleEndian.PutUint16(raw, uint16(value))
		}
	case 32:
		if f.BigEndian {
			binary.BigEndian.PutUint32(raw, value)
		} else {
			binary.LittleEndian.PutUint32(raw, value)
		}
	}
	return raw, nil
}

func scaleComponent(value uint32, shift uint8, max uint16) uint8 {
	if max == 0 {
		return 0
	}
	component := (value >> shift) & uint32(max)
	return uint8(component * 255 / uint32(max))
}
