package vnc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"vnc-viewer/internal/metrics"
	"vnc-viewer/pkg/rfb"
)

// Status is the coarse session state surfaced to UI collaborators
type Status int

const (
	StatusConnecting Status = iota
	StatusHandshaking
	StatusStreaming
	StatusReconnecting
	StatusClosed
	StatusFailed
)

// String returns the status name
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusHandshaking:
		return "handshaking"
	case StatusStreaming:
		return "streaming"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RectangleHandler receives each decoded rectangle as an atomic unit,
// after it has been applied to the session framebuffer
type RectangleHandler func(rect rfb.Rectangle)

// StatusHandler receives connection status changes. err is non-nil for
// StatusFailed and StatusReconnecting.
type StatusHandler func(status Status, err error)

// BellHandler receives server bell events
type BellHandler func()

// SessionConfig configures a viewer session
type SessionConfig struct {
	Endpoint *Endpoint

	// Shared requests shared access instead of kicking other clients
	Shared bool

	// ForceFormat, when set, switches the session to this pixel format
	// right after the handshake
	ForceFormat *rfb.PixelFormat

	// ReconnectDelay is the fixed wait between reconnection attempts after
	// a transport failure. Zero disables reconnection. Protocol failures
	// (malformed data, rejected credentials) never reconnect.
	ReconnectDelay time.Duration

	// MaxReconnects caps reconnection attempts; zero means unlimited
	MaxReconnects int

	OnRectangle RectangleHandler
	OnStatus    StatusHandler
	OnBell      BellHandler
}

// Session drives one logical viewer connection: it owns the transport, the
// protocol state machine and the receive buffer, pumps inbound bytes
// through the parser, performs the sends the parser requests, and keeps
// the framebuffer current.
//
// All parsing happens on the Run goroutine as a synchronous reaction to
// inbound chunks. Input senders may be called from other goroutines; only
// the transport write path is locked for them.
type Session struct {
	cfg SessionConfig

	mu        sync.Mutex
	transport Transport
	conn      *rfb.Conn
	buf       *rfb.ReceiveBuffer
	fb        *Framebuffer

	// phase and serverInfo mirror the state machine under mu so that input
	// senders on other goroutines never touch conn directly while the Run
	// goroutine advances it
	phase      rfb.Phase
	serverInfo rfb.ServerInfo

	bytesReceived uint64
	bytesConsumed uint64

	// dial is replaceable in tests; nil means dial the configured endpoint
	dial func(ctx context.Context) (Transport, error)
}

// NewSession creates a session for an endpoint
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Endpoint == nil || cfg.Endpoint.Endpoint == "" {
		return nil, fmt.Errorf("VNC endpoint is required")
	}
	return &Session{cfg: cfg}, nil
}

// Run connects and processes the session until the context is cancelled,
// the connection fails terminally, or reconnection attempts are exhausted.
func (s *Session) Run(ctx context.Context) error {
	attempts := 0
	for {
		err := s.runOnce(ctx)

		if ctx.Err() != nil {
			s.notify(StatusClosed, nil)
			return ctx.Err()
		}
		if err == nil {
			s.notify(StatusClosed, nil)
			return nil
		}

		if !s.shouldReconnect(err, attempts) {
			s.notify(StatusFailed, err)
			return err
		}

		attempts++
		metrics.ReconnectsTotal.Inc()
		s.notify(StatusReconnecting, err)
		log.Warn().
			Err(err).
			Int("attempt", attempts).
			Dur("delay", s.cfg.ReconnectDelay).
			Msg("VNC session lost, reconnecting")

		select {
		case <-ctx.Done():
			s.notify(StatusClosed, nil)
			return ctx.Err()
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
}

// dialEndpoint builds and connects the transport for the configured endpoint
func (s *Session) dialEndpoint(ctx context.Context) (Transport, error) {
	transport, err := NewTransport(s.cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	if err := ConnectTransport(ctx, transport, s.cfg.Endpoint); err != nil {
		return nil, err
	}
	return transport, nil
}

// shouldReconnect decides whether an error is worth another attempt.
// Only transport-level failures are retryable: a protocol violation will
// repeat on the next connection, and rejected credentials will not improve
// without new credentials.
func (s *Session) shouldReconnect(err error, attempts int) bool {
	if s.cfg.ReconnectDelay <= 0 {
		return false
	}
	if s.cfg.MaxReconnects > 0 && attempts >= s.cfg.MaxReconnects {
		return false
	}
	switch {
	case errors.Is(err, rfb.ErrAuthRejected),
		errors.Is(err, rfb.ErrMalformed),
		errors.Is(err, rfb.ErrUnsupportedVersion),
		errors.Is(err, rfb.ErrUnsupportedSecurity),
		errors.Is(err, rfb.ErrUnsupportedEncoding),
		errors.Is(err, rfb.ErrUnsupportedPixelFormat):
		return false
	}
	return true
}

// runOnce performs a single connection attempt: dial, handshake, stream.
// Every attempt starts from a brand-new state machine and an empty buffer;
// nothing is carried over from a previous attempt.
func (s *Session) runOnce(ctx context.Context) error {
	s.notify(StatusConnecting, nil)

	dial := s.dial
	if dial == nil {
		dial = s.dialEndpoint
	}
	transport, err := dial(ctx)
	if err != nil {
		metrics.ConnectsTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.ConnectsTotal.WithLabelValues("ok").Inc()

	var responder rfb.ChallengeResponder
	if s.cfg.Endpoint.Password != "" {
		responder = rfb.NewPasswordResponder(s.cfg.Endpoint.Password)
	}
	conn := rfb.NewConn(rfb.Config{
		Responder:   responder,
		Shared:      s.cfg.Shared,
		ForceFormat: s.cfg.ForceFormat,
	})
	if err := conn.Start(); err != nil {
		transport.Close()
		return err
	}

	s.mu.Lock()
	s.transport = transport
	s.conn = conn
	s.buf = rfb.NewReceiveBuffer()
	s.fb = nil
	s.phase = conn.Phase()
	s.serverInfo = rfb.ServerInfo{}
	s.bytesReceived = 0
	s.bytesConsumed = 0
	s.mu.Unlock()

	defer s.teardown()

	s.notify(StatusHandshaking, nil)
	handshakeStart := time.Now()
	streaming := false

	for {
		data, err := transport.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("transport failure: %w", err)
		}

		s.mu.Lock()
		s.bytesReceived += uint64(len(data))
		s.mu.Unlock()
		metrics.BytesReceivedTotal.Add(float64(len(data)))

		if err := s.feed(ctx, data); err != nil {
			metrics.SessionFailuresTotal.WithLabelValues(metrics.FailureReason(err)).Inc()
			return err
		}

		if !streaming && conn.Phase() == rfb.PhaseStreaming {
			streaming = true
			metrics.HandshakeDuration.Observe(time.Since(handshakeStart).Seconds())
			info := conn.ServerInfo()
			log.Info().
				Uint16("width", info.Width).
				Uint16("height", info.Height).
				Str("name", info.Name).
				Str("security_type", conn.Security().String()).
				Str("rfb_version", conn.Version().String()).
				Msg("VNC handshake completed, streaming")
			s.notify(StatusStreaming, nil)
		}
	}
}

// feed appends one inbound chunk and drains the state machine until it
// reports need-more-data. Bytes leave the receive buffer only after the
// parser has claimed a complete message.
//
// Buffer and state machine mutations happen under mu so that Stats and the
// input senders can read consistent state from other goroutines. Transport
// writes and handler callbacks run outside the lock; a callback is free to
// call back into the session.
func (s *Session) feed(ctx context.Context, data []byte) error {
	s.mu.Lock()
	s.buf.Append(data)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		step, err := s.conn.Advance(s.buf.Bytes())
		if err != nil {
			s.phase = s.conn.Phase()
			s.mu.Unlock()
			return err
		}
		if step.Consumed == 0 {
			s.mu.Unlock()
			return nil
		}
		s.buf.Consume(step.Consumed)
		s.bytesConsumed += uint64(step.Consumed)
		s.phase = s.conn.Phase()
		s.serverInfo = s.conn.ServerInfo()
		// Allocate the framebuffer the moment the handshake completes, so
		// rectangles in the same inbound chunk as ServerInit land in it
		if s.fb == nil && s.phase == rfb.PhaseStreaming {
			s.fb = NewFramebuffer(int(s.serverInfo.Width), int(s.serverInfo.Height))
		}
		info := s.serverInfo
		fb := s.fb
		s.mu.Unlock()
		metrics.BytesConsumedTotal.Add(float64(step.Consumed))

		for _, msg := range step.Outgoing {
			if err := s.write(ctx, msg); err != nil {
				return err
			}
		}

		if len(step.Rectangles) > 0 {
			for _, rect := range step.Rectangles {
				if fb != nil {
					fb.Apply(rect)
				}
				if s.cfg.OnRectangle != nil {
					s.cfg.OnRectangle(rect)
				}
			}
			metrics.RectanglesDecodedTotal.Add(float64(len(step.Rectangles)))
		}

		if step.UpdateDone {
			metrics.UpdatesDecodedTotal.Inc()
			// Continuous pull: each processed update triggers the request
			// for the next one. Incremental keeps idle screens cheap.
			req := rfb.EncodeFramebufferUpdateRequest(0, 0, info.Width, info.Height, true)
			if err := s.write(ctx, req); err != nil {
				return err
			}
			metrics.UpdateRequestsTotal.WithLabelValues("incremental").Inc()
		}

		if step.Bell && s.cfg.OnBell != nil {
			s.cfg.OnBell()
		}
	}
}

// SendPointerEvent forwards a pointer move/click to the server. Valid only
// while streaming.
func (s *Session) SendPointerEvent(ctx context.Context, x, y uint16, buttonMask uint8) error {
	if err := s.requireStreaming(); err != nil {
		return err
	}
	metrics.InputEventsTotal.WithLabelValues("pointer").Inc()
	return s.write(ctx, rfb.EncodePointerEvent(x, y, buttonMask))
}

// SendKeyEvent forwards a key press or release to the server. Valid only
// while streaming.
func (s *Session) SendKeyEvent(ctx context.Context, keysym uint32, down bool) error {
	if err := s.requireStreaming(); err != nil {
		return err
	}
	metrics.InputEventsTotal.WithLabelValues("key").Inc()
	return s.write(ctx, rfb.EncodeKeyEvent(keysym, down))
}

// RequestUpdate asks the server for a framebuffer update outside the
// normal update-driven cadence (e.g. to force a full repaint)
func (s *Session) RequestUpdate(ctx context.Context, incremental bool) error {
	info, err := s.streamingInfo()
	if err != nil {
		return err
	}
	mode := "full"
	if incremental {
		mode = "incremental"
	}
	metrics.UpdateRequestsTotal.WithLabelValues(mode).Inc()
	return s.write(ctx, rfb.EncodeFramebufferUpdateRequest(0, 0, info.Width, info.Height, incremental))
}

// Framebuffer returns the session framebuffer, or nil before streaming
func (s *Session) Framebuffer() *Framebuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fb
}

// Stats returns the byte accounting for the current connection: total
// bytes received from the transport, bytes consumed as complete messages,
// and bytes still waiting in the receive buffer.
func (s *Session) Stats() (received, consumed, buffered uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf != nil {
		buffered = uint64(s.buf.Len())
	}
	return s.bytesReceived, s.bytesConsumed, buffered
}

func (s *Session) requireStreaming() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || s.phase != rfb.PhaseStreaming {
		return fmt.Errorf("%w: session is not streaming", rfb.ErrClosed)
	}
	return nil
}

// streamingInfo returns the framebuffer geometry while streaming. Reads the
// mirrored copy, never the state machine, so it is safe against a
// concurrent teardown.
func (s *Session) streamingInfo() (rfb.ServerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || s.phase != rfb.PhaseStreaming {
		return rfb.ServerInfo{}, fmt.Errorf("%w: session is not streaming", rfb.ErrClosed)
	}
	return s.serverInfo, nil
}

func (s *Session) write(ctx context.Context, msg []byte) error {
	s.mu.Lock()
	transport := s.transport
	s.mu.Unlock()
	if transport == nil {
		return fmt.Errorf("%w: no transport", rfb.ErrClosed)
	}
	return transport.Write(ctx, msg)
}

// teardown discards all per-connection state. After this no further
// messages are sent; the framebuffer is released so renderers see the
// image as stale.
func (s *Session) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transport != nil {
		s.transport.Close()
		s.transport = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if s.buf != nil {
		s.buf.Reset()
		s.buf = nil
	}
	s.fb = nil
	s.phase = rfb.PhaseClosed
}

func (s *Session) notify(status Status, err error) {
	if s.cfg.OnStatus != nil {
		s.cfg.OnStatus(status, err)
	}
}
