package rfb

import (
	"fmt"
)

// RFB protocol versions supported by this implementation
const (
	// ProtocolVersion33 - RFB 3.3 (oldest, server-chosen security type)
	ProtocolVersion33 = "RFB 003.003\n"

	// ProtocolVersion37 - RFB 3.7 (client-selected security type)
	ProtocolVersion37 = "RFB 003.007\n"

	// ProtocolVersion38 - RFB 3.8 (most common, adds failure reason strings)
	ProtocolVersion38 = "RFB 003.008\n"

	// ProtocolVersionLength - All RFB version strings are exactly 12 bytes
	ProtocolVersionLength = 12
)

// Server-to-client message types (RFC 6143 Section 7.6)
const (
	MsgFramebufferUpdate   uint8 = 0
	MsgSetColourMapEntries uint8 = 1
	MsgBell                uint8 = 2
	MsgServerCutText       uint8 = 3
)

// Client-to-server message types (RFC 6143 Section 7.5)
const (
	MsgSetPixelFormat           uint8 = 0
	MsgSetEncodings             uint8 = 2
	MsgFramebufferUpdateRequest uint8 = 3
	MsgKeyEvent                 uint8 = 4
	MsgPointerEvent             uint8 = 5
)

// EncodingRaw is the only rectangle encoding this client accepts.
// Other encodings carry encoding-specific data lengths that cannot be
// skipped safely, so they fail the session instead.
const EncodingRaw int32 = 0

// SecurityType represents an RFB security type
type SecurityType uint8

// RFB security types define authentication methods
const (
	// SecurityTypeInvalid - Invalid security type (0 = connection failed in RFB 3.3)
	SecurityTypeInvalid SecurityType = 0

	// SecurityTypeNone - No authentication required
	SecurityTypeNone SecurityType = 1

	// SecurityTypeVNCAuth - VNC Authentication (DES challenge-response)
	SecurityTypeVNCAuth SecurityType = 2

	// VNC Authentication uses 16-byte challenge/response
	VNCAuthChallengeLength = 16
)

// Server response after authentication attempt
const (
	// SecurityResultOK - Authentication succeeded
	SecurityResultOK uint32 = 0

	// SecurityResultFailed - Authentication failed
	SecurityResultFailed uint32 = 1
)

// ProtocolVersion represents a parsed RFB protocol version
type ProtocolVersion struct {
	Major int
	Minor int
	Raw   string // Original 12-byte version string
}

// String returns the version as "RFB x.y"
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("RFB %d.%d", v.Major, v.Minor)
}

// IsSupported returns true if this version is supported by our implementation
func (v ProtocolVersion) IsSupported() bool {
	// RFB 3.3 through 3.8 (3.4-3.6 never shipped and are treated as 3.3)
	return v.Major == 3 && v.Minor >= 3
}

// ToWireFormat returns the 12-byte wire format version string
func (v ProtocolVersion) ToWireFormat() string {
	return fmt.Sprintf("RFB %03d.%03d\n", v.Major, v.Minor)
}

// Negotiate returns the highest mutually supported version for this server
// version: 3.8 for anything at or above 3.8, otherwise 3.7 or 3.3.
func (v ProtocolVersion) Negotiate() ProtocolVersion {
	switch {
	case v.Major > 3 || v.Minor >= 8:
		return ProtocolVersion{Major: 3, Minor: 8}
	case v.Minor == 7:
		return ProtocolVersion{Major: 3, Minor: 7}
	default:
		return ProtocolVersion{Major: 3, Minor: 3}
	}
}

// String returns the security type name
func (s SecurityType) String() string {
	switch s {
	case SecurityTypeNone:
		return "None"
	case SecurityTypeVNCAuth:
		return "VNC Authentication"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// IsSupported returns true if this security type is supported
func (s SecurityType) IsSupported() bool {
	return s == SecurityTypeNone || s == SecurityTypeVNCAuth
}

// ParseProtocolVersion parses a 12-byte RFB version string
// Format: "RFB xxx.yyy\n" (e.g., "RFB 003.008\n")
func ParseProtocolVersion(data []byte) (*ProtocolVersion, error) {
	if len(data) != ProtocolVersionLength {
		return nil, fmt.Errorf("%w: invalid version length: got %d bytes, expected %d",
			ErrMalformed, len(data), ProtocolVersionLength)
	}

	// Verify "RFB " prefix
	if string(data[0:4]) != "RFB " {
		return nil, fmt.Errorf("%w: invalid version format: expected 'RFB ' prefix, got %q",
			ErrMalformed, string(data[0:4]))
	}

	// Verify newline suffix
	if data[11] != '\n' {
		return nil, fmt.Errorf("%w: invalid version format: expected newline suffix, got %q",
			ErrMalformed, data[11])
	}

	// Parse major version (3 digits)
	major := 0
	for i := 4; i < 7; i++ {
		if data[i] < '0' || data[i] > '9' {
			return nil, fmt.Errorf("%w: invalid major version: non-digit character %q", ErrMalformed, data[i])
		}
		major = major*10 + int(data[i]-'0')
	}

	// Verify dot separator
	if data[7] != '.' {
		return nil, fmt.Errorf("%w: invalid version format: expected '.' separator, got %q", ErrMalformed, data[7])
	}

	// Parse minor version (3 digits)
	minor := 0
	for i := 8; i < 11; i++ {
		if data[i] < '0' || data[i] > '9' {
			return nil, fmt.Errorf("%w: invalid minor version: non-digit character %q", ErrMalformed, data[i])
		}
		minor = minor*10 + int(data[i]-'0')
	}

	return &ProtocolVersion{
		Major: major,
		Minor: minor,
		Raw:   string(data),
	}, nil
}

// formatSecurityTypes formats a list of security type bytes for error messages
func formatSecurityTypes(types []byte) string {
	if len(types) == 0 {
		return "none"
	}

	result := ""
	for i, t := range types {
		if i > 0 {
			result += ", "
		}
		result += SecurityType(t).String()
	}
	return result
}
