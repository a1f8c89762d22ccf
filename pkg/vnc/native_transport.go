package vnc

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	keepaliveTime = 30 * time.Second
	lingerSec     = 5
)

// NativeTransport implements VNC transport over a direct TCP connection to
// the VNC port (typically 5900). Commonly used with QEMU, VirtualBMC and
// standalone VNC servers; optionally TLS-wrapped for RFB-over-TLS setups.
type NativeTransport struct {
	conn    net.Conn
	timeout time.Duration
}

// NewNativeTransport creates a new native VNC transport
func NewNativeTransport(timeout time.Duration) *NativeTransport {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &NativeTransport{
		timeout: timeout,
	}
}

// Connect establishes a TCP connection to the VNC server
func (t *NativeTransport) Connect(ctx context.Context, host string, port int) error {
	return t.ConnectWithTLS(ctx, host, port, nil)
}

// ConnectWithTLS establishes a TCP connection with optional TLS wrapping.
// Some servers (enterprise BMC consoles in particular) only speak RFB
// inside a TLS session.
func (t *NativeTransport) ConnectWithTLS(ctx context.Context, host string, port int, tlsConfig *TLSConfig) error {
	if port == 0 {
		port = 5900 // Default VNC port
	}

	address := fmt.Sprintf("%s:%d", host, port)

	log.Debug().
		Str("host", host).
		Int("port", port).
		Bool("tls_enabled", tlsConfig != nil && tlsConfig.Enabled).
		Msg("Connecting to VNC server")

	dialer := &net.Dialer{
		Timeout:   t.timeout,
		KeepAlive: keepaliveTime, // Long-lived connection, keep NATs and firewalls warm
	}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to connect to VNC server at %s: %w", address, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetKeepAlive(true)
		tcpConn.SetKeepAlivePeriod(keepaliveTime)
		// Allow a few seconds for queued input events to flush on close
		tcpConn.SetLinger(lingerSec)
	}

	if tlsConfig != nil && tlsConfig.Enabled {
		tlsConn := tls.Client(conn, &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: tlsConfig.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS12,
			MaxVersion:         tls.VersionTLS13,
		})

		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return fmt.Errorf("TLS handshake failed for VNC at %s: %w", address, err)
		}

		log.Info().
			Str("host", host).
			Int("port", port).
			Str("cipher_suite", tls.CipherSuiteName(tlsConn.ConnectionState().CipherSuite)).
			Msg("TLS handshake successful for VNC connection")

		conn = tlsConn
	}

	t.conn = conn
	return nil
}

// Read reads the next chunk from the VNC connection
func (t *NativeTransport) Read(ctx context.Context) ([]byte, error) {
	if t.conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	// Only apply a deadline when the context carries one; idle streaming
	// periods (no framebuffer changes) are normal
	if deadline, ok := ctx.Deadline(); ok {
		t.conn.SetReadDeadline(deadline)
	} else {
		t.conn.SetReadDeadline(time.Time{})
	}

	buf := make([]byte, 32*1024) // framebuffer updates arrive in large bursts
	n, err := t.conn.Read(buf)
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("VNC connection closed: %w", err)
		}
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, fmt.Errorf("VNC read timeout: %w", err)
		}
		return nil, fmt.Errorf("VNC read error: %w", err)
	}

	return buf[:n], nil
}

// Write writes data to the VNC connection
func (t *NativeTransport) Write(ctx context.Context, data []byte) error {
	if t.conn == nil {
		return fmt.Errorf("not connected")
	}

	if deadline, ok := ctx.Deadline(); ok {
		t.conn.SetWriteDeadline(deadline)
	} else {
		t.conn.SetWriteDeadline(time.Time{})
	}

	_, err := t.conn.Write(data)
	if err != nil {
		return fmt.Errorf("VNC write error: %w", err)
	}

	return nil
}

// Close closes the VNC connection
func (t *NativeTransport) Close() error {
	if t.conn == nil {
		return nil
	}

	err := t.conn.Close()
	t.conn = nil
	return err
}

// IsConnected returns true if the transport is connected
func (t *NativeTransport) IsConnected() bool {
	return t.conn != nil
}
