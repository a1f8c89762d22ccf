package rfb

// Phase identifies the current position in the RFB connection lifecycle.
// Transitions are strictly forward; Closed and Failed are terminal and
// reachable from any phase.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseVersionPending
	PhaseSecurityPending
	PhaseAuthenticating
	PhaseAwaitingServerInit
	PhaseStreaming
	PhaseClosed
	PhaseFailed
)

// String returns the phase name for logging
func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseVersionPending:
		return "version-pending"
	case PhaseSecurityPending:
		return "security-pending"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAwaitingServerInit:
		return "awaiting-server-init"
	case PhaseStreaming:
		return "streaming"
	case PhaseClosed:
		return "closed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal returns true for phases the connection can never leave
func (p Phase) Terminal() bool {
	return p == PhaseClosed || p == PhaseFailed
}

// ServerInfo holds the framebuffer parameters announced in ServerInit.
// Set exactly once, when the handshake completes; read-only afterwards.
type ServerInfo struct {
	Width  uint16
	Height uint16
	Name   string
}
