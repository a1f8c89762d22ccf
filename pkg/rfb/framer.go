package rfb

import (
	"encoding/binary"
	"fmt"
)

// Message framing. RFB has no self-delimiting envelope before streaming
// begins, so each parser here knows the exact shape expected in one
// connection phase. All parsers share the same contract:
//
//   - consumed == 0 with a nil error means the buffer does not yet hold a
//     complete message (need more data). The buffer is never touched.
//   - consumed > 0 means exactly that many bytes form one complete,
//     validated message. The caller advances the buffer.
//   - a non-nil error means the bytes cannot form a valid message; the
//     session must be torn down. consumed is 0.
//
// The full required length of a message is always computed before any
// byte is claimed; a partially buffered message is never half-consumed.

// maxReasonLength caps server-supplied failure reason strings to keep a
// hostile server from forcing a large allocation
const maxReasonLength = 4096

// maxNameLength caps the desktop name in ServerInit
const maxNameLength = 4096

// parseVersion frames the server's 12-byte protocol version string
func parseVersion(buf []byte) (int, *ProtocolVersion, error) {
	if len(buf) < ProtocolVersionLength {
		// A buffered prefix that can never become a valid version string
		// fails immediately instead of waiting for bytes that won't help
		if len(buf) >= 4 && string(buf[0:4]) != "RFB " {
			return 0, nil, fmt.Errorf("%w: expected 'RFB ' prefix, got %q",
				ErrMalformed, string(buf[0:4]))
		}
		return 0, nil, nil
	}

	version, err := ParseProtocolVersion(buf[:ProtocolVersionLength])
	if err != nil {
		return 0, nil, err
	}
	if !version.IsSupported() {
		return 0, nil, fmt.Errorf("%w: server offered %s", ErrUnsupportedVersion, version)
	}
	return ProtocolVersionLength, version, nil
}

// parseSecurityTypes frames the RFB 3.7+ security type list:
// count byte, then count type bytes. A zero count means the server refused
// the connection and a reason string follows.
func parseSecurityTypes(buf []byte) (int, []byte, error) {
	if len(buf) < 1 {
		return 0, nil, nil
	}

	count := int(buf[0])
	if count == 0 {
		n, reason, err := parseReasonString(buf[1:])
		if err != nil {
			return 0, nil, err
		}
		if n == 0 {
			return 0, nil, nil
		}
		return 0, nil, fmt.Errorf("%w: server refused connection: %s", ErrMalformed, reason)
	}

	if len(buf) < 1+count {
		return 0, nil, nil
	}
	return 1 + count, buf[1 : 1+count], nil
}

// parseSecurityType33 frames the RFB 3.3 fixed 4-byte server-chosen
// security type. Type 0 means the connection failed and a reason follows.
func parseSecurityType33(buf []byte) (int, SecurityType, error) {
	if len(buf) < 4 {
		return 0, SecurityTypeInvalid, nil
	}

	value := binary.BigEndian.Uint32(buf[:4])
	if value == 0 {
		n, reason, err := parseReasonString(buf[4:])
		if err != nil {
			return 0, SecurityTypeInvalid, err
		}
		if n == 0 {
			return 0, SecurityTypeInvalid, nil
		}
		return 0, SecurityTypeInvalid, fmt.Errorf("%w: server refused connection: %s", ErrMalformed, reason)
	}
	if value > 255 {
		return 0, SecurityTypeInvalid, fmt.Errorf("%w: security type %d out of range", ErrMalformed, value)
	}
	return 4, SecurityType(value), nil
}

// parseChallenge frames the fixed 16-byte VNC authentication challenge
func parseChallenge(buf []byte) (int, []byte, error) {
	if len(buf) < VNCAuthChallengeLength {
		return 0, nil, nil
	}
	return VNCAuthChallengeLength, buf[:VNCAuthChallengeLength], nil
}

// parseSecurityResult frames the 4-byte big-endian security result. On a
// nonzero result under RFB 3.8 the server appends a reason string; the
// whole message including that string is framed atomically.
func parseSecurityResult(buf []byte, expectReason bool) (int, uint32, string, error) {
	if len(buf) < 4 {
		return 0, 0, "", nil
	}

	result := binary.BigEndian.Uint32(buf[:4])
	if result == SecurityResultOK || !expectReason {
		return 4, result, "", nil
	}

	n, reason, err := parseReasonString(buf[4:])
	if err != nil {
		return 0, 0, "", err
	}
	if n == 0 {
		return 0, 0, "", nil
	}
	return 4 + n, result, reason, nil
}

// parseServerInit frames the ServerInit message: 2B width, 2B height, 16B
// pixel format, 4B name length, then the name bytes.
//
// The name length is read exactly once and validated against the buffered
// length in the same step. Consuming the fixed header before the name has
// arrived would violate the no-partial-consumption invariant.
func parseServerInit(buf []byte) (int, ServerInfo, PixelFormat, error) {
	const fixed = 2 + 2 + PixelFormatLength + 4
	if len(buf) < fixed {
		return 0, ServerInfo{}, PixelFormat{}, nil
	}

	nameLength := binary.BigEndian.Uint32(buf[20:24])
	if nameLength > maxNameLength {
		return 0, ServerInfo{}, PixelFormat{},
			fmt.Errorf("%w: desktop name length %d exceeds limit", ErrMalformed, nameLength)
	}

	total := fixed + int(nameLength)
	if len(buf) < total {
		return 0, ServerInfo{}, PixelFormat{}, nil
	}

	width := binary.BigEndian.Uint16(buf[0:2])
	height := binary.BigEndian.Uint16(buf[2:4])
	if width == 0 || height == 0 {
		return 0, ServerInfo{}, PixelFormat{},
			fmt.Errorf("%w: zero framebuffer dimension %dx%d", ErrMalformed, width, height)
	}

	format, err := ParsePixelFormat(buf[4:20])
	if err != nil {
		return 0, ServerInfo{}, PixelFormat{}, err
	}
	if err := format.Validate(); err != nil {
		return 0, ServerInfo{}, PixelFormat{}, err
	}

	info := ServerInfo{
		Width:  width,
		Height: height,
		Name:   string(buf[fixed : fixed+int(nameLength)]),
	}
	return total, info, format, nil
}

// parseReasonString frames a u32-length-prefixed failure reason string
func parseReasonString(buf []byte) (int, string, error) {
	if len(buf) < 4 {
		return 0, "", nil
	}

	length := binary.BigEndian.Uint32(buf[:4])
	if length > maxReasonLength {
		return 0, "", fmt.Errorf("%w: reason string length %d exceeds limit", ErrMalformed, length)
	}
	total := 4 + int(length)
	if len(buf) < total {
		return 0, "", nil
	}
	return total, string(buf[4:total]), nil
}
