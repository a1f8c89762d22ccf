package vnc

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Transport is a duplex byte channel carrying the RFB protocol.
//
// Both native TCP and WebSocket transports implement this interface.
// WebSocket framing uses binary messages (opcode 0x2); TCP is a raw
// stream. Chunk boundaries carry no protocol meaning on either transport:
// the session layer reassembles messages from arbitrary fragments.
type Transport interface {
	// Read returns the next inbound chunk from the connection
	Read(ctx context.Context) ([]byte, error)

	// Write writes protocol data to the connection
	Write(ctx context.Context, data []byte) error

	// Close closes the connection
	Close() error

	// IsConnected returns true if the transport is currently connected
	IsConnected() bool
}

// EndpointType represents the type of VNC endpoint
type EndpointType int

const (
	// TypeUnknown - Unknown or unspecified transport type
	TypeUnknown EndpointType = iota

	// TypeNative - Native VNC TCP connection (port 5900)
	TypeNative

	// TypeWebSocket - WebSocket-based VNC/RFB connection (noVNC-style
	// gateways, OpenBMC KVM, enterprise BMC consoles)
	TypeWebSocket
)

// String returns the string representation of EndpointType
func (t EndpointType) String() string {
	switch t {
	case TypeNative:
		return "native"
	case TypeWebSocket:
		return "websocket"
	default:
		return "unknown"
	}
}

// ParseEndpointType parses a string into an EndpointType
func ParseEndpointType(s string) EndpointType {
	switch s {
	case "native":
		return TypeNative
	case "websocket":
		return TypeWebSocket
	default:
		return TypeUnknown
	}
}

// Endpoint represents a VNC connection endpoint configuration
type Endpoint struct {
	Endpoint string // URL with scheme (ws://, wss://, vnc://) or host:port (defaults to native TCP)
	Username string // HTTP Basic Auth user for WebSocket endpoints
	Password string // VNC password (and Basic Auth password for WebSocket)
	TLS      *TLSConfig
}

// TLSConfig represents TLS configuration for native VNC connections
type TLSConfig struct {
	Enabled            bool // Wrap the TCP connection in TLS
	InsecureSkipVerify bool // Skip certificate verification (self-signed certs)
}

// NewTransport creates the appropriate transport for an endpoint URL.
// Auto-detects the transport type from the scheme:
//   - ws://... or wss://... → WebSocket transport
//   - vnc://host:port or host:port → native TCP transport
func NewTransport(endpoint *Endpoint) (Transport, error) {
	if endpoint == nil {
		return nil, fmt.Errorf("VNC endpoint configuration is nil")
	}
	if endpoint.Endpoint == "" {
		return nil, fmt.Errorf("VNC endpoint is empty")
	}

	switch detectTransportType(endpoint.Endpoint) {
	case TypeNative:
		return NewNativeTransport(0), nil
	case TypeWebSocket:
		return NewWebSocketTransport(0), nil
	default:
		return nil, fmt.Errorf("unable to detect transport type from endpoint: %s", endpoint.Endpoint)
	}
}

// ConnectTransport dials the transport for an endpoint. The RFB handshake
// itself is not performed here; it is driven by the session's parse loop
// once bytes start flowing.
func ConnectTransport(ctx context.Context, transport Transport, endpoint *Endpoint) error {
	if endpoint == nil {
		return fmt.Errorf("VNC endpoint configuration is nil")
	}

	switch t := transport.(type) {
	case *NativeTransport:
		host, port, err := parseEndpoint(endpoint.Endpoint)
		if err != nil {
			return fmt.Errorf("invalid native VNC endpoint %s: %w", endpoint.Endpoint, err)
		}
		return t.ConnectWithTLS(ctx, host, port, endpoint.TLS)

	case *WebSocketTransport:
		return t.Connect(ctx, endpoint.Endpoint, endpoint.Username, endpoint.Password)

	default:
		return fmt.Errorf("unknown transport type: %T", transport)
	}
}

// detectTransportType determines the transport type from the endpoint URL scheme
func detectTransportType(endpoint string) EndpointType {
	if strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://") {
		return TypeWebSocket
	}
	if strings.HasPrefix(endpoint, "vnc://") || !strings.Contains(endpoint, "://") {
		return TypeNative
	}
	return TypeUnknown
}

// parseEndpoint extracts host and port from a native VNC endpoint.
// Supports "host:port", "vnc://host:port" and bare "host" (port 5900).
func parseEndpoint(endpoint string) (string, int, error) {
	if strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://") {
		return "", 0, fmt.Errorf("WebSocket URL provided for native VNC transport - use websocket transport type instead")
	}

	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return "", 0, fmt.Errorf("invalid URL format: %w", err)
		}
		if u.Port() == "" {
			return u.Hostname(), 5900, nil
		}
		port, err := strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, fmt.Errorf("invalid port %s: %w", u.Port(), err)
		}
		return u.Hostname(), port, nil
	}

	if strings.Contains(endpoint, ":") {
		parts := strings.Split(endpoint, ":")
		if len(parts) != 2 {
			return "", 0, fmt.Errorf("invalid host:port format")
		}
		port, err := strconv.Atoi(parts[1])
		if err != nil {
			return "", 0, fmt.Errorf("invalid port %s: %w", parts[1], err)
		}
		return parts[0], port, nil
	}

	// Bare hostname/IP - default VNC port
	return endpoint, 5900, nil
}
