package vnc

import (
	"testing"
)

func TestDetectTransportType(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     EndpointType
	}{
		// WebSocket endpoints
		{
			name:     "WebSocket with ws scheme",
			endpoint: "ws://localhost:8080/kvm/0",
			want:     TypeWebSocket,
		},
		{
			name:     "WebSocket with wss scheme",
			endpoint: "wss://bmc.example.com/kvm/0",
			want:     TypeWebSocket,
		},

		// Native TCP endpoints
		{
			name:     "Native VNC with vnc scheme",
			endpoint: "vnc://localhost:5900",
			want:     TypeNative,
		},
		{
			name:     "Host and port without scheme",
			endpoint: "192.168.1.100:5900",
			want:     TypeNative,
		},
		{
			name:     "Hostname without port",
			endpoint: "vnc-server",
			want:     TypeNative,
		},

		// Unknown schemes
		{
			name:     "HTTP URL is not a VNC endpoint",
			endpoint: "http://example.com",
			want:     TypeUnknown,
		},
		{
			name:     "Arbitrary scheme",
			endpoint: "ftp://example.com",
			want:     TypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectTransportType(tt.endpoint); got != tt.want {
				t.Errorf("detectTransportType(%q) = %v, want %v", tt.endpoint, got, tt.want)
			}
		})
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{
			name:     "host and port",
			endpoint: "192.168.1.100:5901",
			wantHost: "192.168.1.100",
			wantPort: 5901,
		},
		{
			name:     "vnc scheme with port",
			endpoint: "vnc://console.example.com:5900",
			wantHost: "console.example.com",
			wantPort: 5900,
		},
		{
			name:     "vnc scheme without port defaults to 5900",
			endpoint: "vnc://console.example.com",
			wantHost: "console.example.com",
			wantPort: 5900,
		},
		{
			name:     "bare hostname defaults to 5900",
			endpoint: "console.example.com",
			wantHost: "console.example.com",
			wantPort: 5900,
		},
		{
			name:     "WebSocket URL rejected for native transport",
			endpoint: "ws://example.com/kvm/0",
			wantErr:  true,
		},
		{
			name:     "non-numeric port",
			endpoint: "host:abc",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := parseEndpoint(tt.endpoint)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s:%d", host, port)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("parseEndpoint(%q) = %s:%d, want %s:%d",
					tt.endpoint, host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestNewTransport(t *testing.T) {
	transport, err := NewTransport(&Endpoint{Endpoint: "10.0.0.1:5900"})
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	if _, ok := transport.(*NativeTransport); !ok {
		t.Errorf("transport type = %T, want *NativeTransport", transport)
	}

	transport, err = NewTransport(&Endpoint{Endpoint: "wss://bmc/kvm/0"})
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	if _, ok := transport.(*WebSocketTransport); !ok {
		t.Errorf("transport type = %T, want *WebSocketTransport", transport)
	}

	if _, err := NewTransport(&Endpoint{Endpoint: "http://nope"}); err == nil {
		t.Error("expected error for unknown scheme")
	}
	if _, err := NewTransport(&Endpoint{}); err == nil {
		t.Error("expected error for empty endpoint")
	}
	if _, err := NewTransport(nil); err == nil {
		t.Error("expected error for nil endpoint")
	}
}

func TestEndpointTypeString(t *testing.T) {
	if TypeNative.String() != "native" || TypeWebSocket.String() != "websocket" || TypeUnknown.String() != "unknown" {
		t.Error("EndpointType String mismatch")
	}
	if ParseEndpointType("native") != TypeNative ||
		ParseEndpointType("websocket") != TypeWebSocket ||
		ParseEndpointType("bogus") != TypeUnknown {
		t.Error("ParseEndpointType mismatch")
	}
}
