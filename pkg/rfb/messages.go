package rfb

import (
	"encoding/binary"
)

// Client-to-server message encoders. Pure serialization: every message is
// fully built before it goes anywhere near the transport, so there are no
// partial writes. All multi-byte fields are big-endian per RFC 6143.

// EncodePointerEvent serializes a pointer move/click (6 bytes)
func EncodePointerEvent(x, y uint16, buttonMask uint8) []byte {
	msg := make([]byte, 0, 6)
	msg = append(msg, MsgPointerEvent, buttonMask)
	msg = binary.BigEndian.AppendUint16(msg, x)
	msg = binary.BigEndian.AppendUint16(msg, y)
	return msg
}

// EncodeKeyEvent serializes a key press or release (8 bytes)
func EncodeKeyEvent(keysym uint32, down bool) []byte {
	var downFlag uint8
	if down {
		downFlag = 1
	}
	msg := make([]byte, 0, 8)
	msg = append(msg, MsgKeyEvent, downFlag, 0, 0) // 2 bytes padding
	msg = binary.BigEndian.AppendUint32(msg, keysym)
	return msg
}

// EncodeFramebufferUpdateRequest serializes an update request (10 bytes).
// incremental=true asks only for regions changed since the last update.
func EncodeFramebufferUpdateRequest(x, y, width, height uint16, incremental bool) []byte {
	var incrementalFlag uint8
	if incremental {
		incrementalFlag = 1
	}
	msg := make([]byte, 0, 10)
	msg = append(msg, MsgFramebufferUpdateRequest, incrementalFlag)
	msg = binary.BigEndian.AppendUint16(msg, x)
	msg = binary.BigEndian.AppendUint16(msg, y)
	msg = binary.BigEndian.AppendUint16(msg, width)
	msg = binary.BigEndian.AppendUint16(msg, height)
	return msg
}

// EncodeSetEncodings serializes the client's encoding preference list
// (4 + 4n bytes, most preferred first)
func EncodeSetEncodings(encodings ...int32) []byte {
	msg := make([]byte, 0, 4+4*len(encodings))
	msg = append(msg, MsgSetEncodings, 0) // 1 byte padding
	msg = binary.BigEndian.AppendUint16(msg, uint16(len(encodings)))
	for _, e := range encodings {
		msg = binary.BigEndian.AppendUint32(msg, uint32(e))
	}
	return msg
}

// EncodeSetPixelFormat serializes a pixel format change request (20 bytes)
func EncodeSetPixelFormat(f PixelFormat) []byte {
	msg := make([]byte, 0, 20)
	msg = append(msg, MsgSetPixelFormat, 0, 0, 0) // 3 bytes padding
	return f.AppendWire(msg)
}

// EncodeClientInit serializes the ClientInit message (1 byte).
// shared=false asks the server to disconnect other clients.
func EncodeClientInit(shared bool) []byte {
	var sharedFlag uint8
	if shared {
		sharedFlag = 1
	}
	return []byte{sharedFlag}
}
