package rfb

import (
	"fmt"
)

// Step is the result of one Advance call: how many buffered bytes were
// consumed, what must be written to the transport, and what was decoded.
//
// A zero-value Step means the buffer does not yet hold a complete message.
// The parser itself never touches the transport; the caller performs every
// send, which keeps the state machine side-effect-free and testable
// against plain byte slices.
type Step struct {
	// Consumed is how many bytes the caller must drop from the front of
	// its receive buffer. Zero means need-more-data.
	Consumed int

	// Outgoing holds fully serialized messages to write to the transport,
	// in order
	Outgoing [][]byte

	// Rectangles holds the decoded regions of a framebuffer update
	Rectangles []Rectangle

	// UpdateDone is true when a complete FramebufferUpdate message was
	// consumed; the controller issues the next update request on it
	UpdateDone bool

	// Bell is true when the server rang the bell
	Bell bool
}

// Config carries the client-side handshake parameters for a connection
type Config struct {
	// Responder answers a VNC authentication challenge. Leave nil when no
	// credentials are available; the handshake then requires the server to
	// offer SecurityTypeNone.
	Responder ChallengeResponder

	// Shared requests shared access in ClientInit instead of kicking other
	// clients
	Shared bool

	// ForceFormat, when set, is sent as SetPixelFormat right after the
	// handshake and replaces the server's announced format for decoding
	ForceFormat *PixelFormat
}

// Conn is the RFB client protocol state machine. It owns the connection
// phase and everything negotiated during the handshake, but performs no
// I/O: the caller appends inbound transport bytes to a ReceiveBuffer and
// calls Advance until it reports need-more-data.
//
// Exactly one message is parsed per Advance call, and a message is either
// consumed whole or not at all. That single invariant is what makes
// parsing independent of how the transport fragments the stream.
type Conn struct {
	cfg Config

	phase    Phase
	version  ProtocolVersion
	security SecurityType
	// set once a security type is chosen while the challenge is still
	// outstanding
	awaitingChallenge bool

	format  PixelFormat
	info    ServerInfo
	failure error
}

// NewConn creates a connection state machine in the Disconnected phase
func NewConn(cfg Config) *Conn {
	return &Conn{cfg: cfg, phase: PhaseDisconnected}
}

// Start marks the transport as connected and begins waiting for the
// server's protocol version, which is the first thing an RFB server sends.
func (c *Conn) Start() error {
	if c.phase != PhaseDisconnected {
		return fmt.Errorf("%w: connection already started", ErrClosed)
	}
	c.phase = PhaseVersionPending
	return nil
}

// Phase returns the current connection phase
func (c *Conn) Phase() Phase {
	return c.phase
}

// Version returns the negotiated protocol version (valid after the version
// exchange)
func (c *Conn) Version() ProtocolVersion {
	return c.version
}

// Security returns the negotiated security type
func (c *Conn) Security() SecurityType {
	return c.security
}

// ServerInfo returns the framebuffer parameters (valid once Streaming)
func (c *Conn) ServerInfo() ServerInfo {
	return c.info
}

// PixelFormat returns the session pixel format (valid once Streaming)
func (c *Conn) PixelFormat() PixelFormat {
	return c.format
}

// Err returns the failure reason once the connection is in PhaseFailed
func (c *Conn) Err() error {
	return c.failure
}

// Close moves the connection to its terminal Closed phase. Idempotent;
// a failed connection keeps its failure reason.
func (c *Conn) Close() {
	if !c.phase.Terminal() {
		c.phase = PhaseClosed
	}
}

// Advance attempts to parse one message from the front of buf.
//
// It returns a zero Step when buf does not yet hold a complete message.
// On success the caller must consume Step.Consumed bytes and write each
// Step.Outgoing message to the transport, in order. On error the
// connection is in PhaseFailed, nothing was consumed, and nothing may be
// sent.
func (c *Conn) Advance(buf []byte) (Step, error) {
	switch c.phase {
	case PhaseVersionPending:
		return c.advanceVersion(buf)
	case PhaseSecurityPending:
		return c.advanceSecurity(buf)
	case PhaseAuthenticating:
		return c.advanceSecurityResult(buf)
	case PhaseAwaitingServerInit:
		return c.advanceServerInit(buf)
	case PhaseStreaming:
		return c.advanceStreaming(buf)
	default:
		return Step{}, fmt.Errorf("%w: cannot advance in phase %s", ErrClosed, c.phase)
	}
}

func (c *Conn) fail(err error) (Step, error) {
	c.phase = PhaseFailed
	c.failure = err
	return Step{}, err
}

func (c *Conn) advanceVersion(buf []byte) (Step, error) {
	n, serverVersion, err := parseVersion(buf)
	if err != nil {
		return c.fail(err)
	}
	if n == 0 {
		return Step{}, nil
	}

	c.version = serverVersion.Negotiate()
	c.phase = PhaseSecurityPending
	return Step{
		Consumed: n,
		Outgoing: [][]byte{[]byte(c.version.ToWireFormat())},
	}, nil
}

func (c *Conn) advanceSecurity(buf []byte) (Step, error) {
	if c.awaitingChallenge {
		return c.advanceChallenge(buf)
	}

	// RFB 3.3: server picks the type, no client selection byte.
	// RFB 3.7+: server lists its types, client answers with one byte.
	if c.version.Minor == 3 {
		n, chosen, err := parseSecurityType33(buf)
		if err != nil {
			return c.fail(err)
		}
		if n == 0 {
			return Step{}, nil
		}
		if !chosen.IsSupported() {
			return c.fail(fmt.Errorf("%w: server chose %s", ErrUnsupportedSecurity, chosen))
		}
		return c.securityChosen(chosen, n, nil)
	}

	n, offered, err := parseSecurityTypes(buf)
	if err != nil {
		return c.fail(err)
	}
	if n == 0 {
		return Step{}, nil
	}

	chosen := c.selectSecurityType(offered)
	if chosen == SecurityTypeInvalid {
		return c.fail(fmt.Errorf("%w: server offered %s", ErrUnsupportedSecurity, formatSecurityTypes(offered)))
	}
	return c.securityChosen(chosen, n, [][]byte{{uint8(chosen)}})
}

// selectSecurityType picks the best type from the server's list.
// VNC authentication is preferred when credentials are available,
// otherwise None.
func (c *Conn) selectSecurityType(offered []byte) SecurityType {
	hasNone := false
	hasVNCAuth := false
	for _, t := range offered {
		switch SecurityType(t) {
		case SecurityTypeNone:
			hasNone = true
		case SecurityTypeVNCAuth:
			hasVNCAuth = true
		}
	}

	if c.cfg.Responder != nil && hasVNCAuth {
		return SecurityTypeVNCAuth
	}
	if hasNone {
		return SecurityTypeNone
	}
	if hasVNCAuth {
		return SecurityTypeVNCAuth
	}
	return SecurityTypeInvalid
}

func (c *Conn) securityChosen(chosen SecurityType, consumed int, outgoing [][]byte) (Step, error) {
	c.security = chosen

	switch chosen {
	case SecurityTypeNone:
		// RFB 3.8 sends a SecurityResult even for None; earlier versions
		// go straight to initialization
		if c.version.Minor >= 8 {
			c.phase = PhaseAuthenticating
			return Step{Consumed: consumed, Outgoing: outgoing}, nil
		}
		c.phase = PhaseAwaitingServerInit
		return Step{
			Consumed: consumed,
			Outgoing: append(outgoing, EncodeClientInit(c.cfg.Shared)),
		}, nil

	case SecurityTypeVNCAuth:
		if c.cfg.Responder == nil {
			return c.fail(fmt.Errorf("%w: VNC authentication required but no credentials provided",
				ErrUnsupportedSecurity))
		}
		c.awaitingChallenge = true
		return Step{Consumed: consumed, Outgoing: outgoing}, nil

	default:
		return c.fail(fmt.Errorf("%w: %s", ErrUnsupportedSecurity, chosen))
	}
}

func (c *Conn) advanceChallenge(buf []byte) (Step, error) {
	n, challenge, err := parseChallenge(buf)
	if err != nil {
		return c.fail(err)
	}
	if n == 0 {
		return Step{}, nil
	}

	response, err := c.cfg.Responder.Respond(challenge)
	if err != nil {
		return c.fail(fmt.Errorf("challenge response failed: %w", err))
	}
	if len(response) != VNCAuthChallengeLength {
		return c.fail(fmt.Errorf("%w: challenge response is %d bytes, expected %d",
			ErrMalformed, len(response), VNCAuthChallengeLength))
	}

	c.awaitingChallenge = false
	c.phase = PhaseAuthenticating
	return Step{Consumed: n, Outgoing: [][]byte{response}}, nil
}

func (c *Conn) advanceSecurityResult(buf []byte) (Step, error) {
	// RFB 3.8 appends a reason string to a failed result
	n, result, reason, err := parseSecurityResult(buf, c.version.Minor >= 8)
	if err != nil {
		return c.fail(err)
	}
	if n == 0 {
		return Step{}, nil
	}

	if result != SecurityResultOK {
		if reason == "" {
			reason = "server did not provide a reason"
		}
		return c.fail(fmt.Errorf("%w: %s", ErrAuthRejected, reason))
	}

	c.phase = PhaseAwaitingServerInit
	return Step{
		Consumed: n,
		Outgoing: [][]byte{EncodeClientInit(c.cfg.Shared)},
	}, nil
}

func (c *Conn) advanceServerInit(buf []byte) (Step, error) {
	n, info, format, err := parseServerInit(buf)
	if err != nil {
		return c.fail(err)
	}
	if n == 0 {
		return Step{}, nil
	}

	c.info = info
	c.format = format

	var outgoing [][]byte
	if c.cfg.ForceFormat != nil {
		if err := c.cfg.ForceFormat.Validate(); err != nil {
			return c.fail(err)
		}
		c.format = *c.cfg.ForceFormat
		outgoing = append(outgoing, EncodeSetPixelFormat(c.format))
	}
	outgoing = append(outgoing,
		EncodeSetEncodings(EncodingRaw),
		// First request pulls the whole framebuffer; later incremental
		// requests are issued by the controller after each update
		EncodeFramebufferUpdateRequest(0, 0, info.Width, info.Height, false),
	)

	c.phase = PhaseStreaming
	return Step{Consumed: n, Outgoing: outgoing}, nil
}

func (c *Conn) advanceStreaming(buf []byte) (Step, error) {
	if len(buf) == 0 {
		return Step{}, nil
	}

	switch buf[0] {
	case MsgFramebufferUpdate:
		n, rects, err := parseFramebufferUpdate(buf, c.format)
		if err != nil {
			return c.fail(err)
		}
		if n == 0 {
			return Step{}, nil
		}
		return Step{Consumed: n, Rectangles: rects, UpdateDone: true}, nil

	case MsgSetColourMapEntries:
		// Parsed for stream alignment, contents discarded (true-color only)
		n, err := parseSetColourMapEntries(buf)
		if err != nil {
			return c.fail(err)
		}
		return Step{Consumed: n}, nil

	case MsgBell:
		return Step{Consumed: 1, Bell: true}, nil

	case MsgServerCutText:
		// Clipboard is out of scope; consume and discard
		n, err := parseServerCutText(buf)
		if err != nil {
			return c.fail(err)
		}
		return Step{Consumed: n}, nil

	default:
		return c.fail(fmt.Errorf("%w: unknown server message type %d", ErrMalformed, buf[0]))
	}
}
