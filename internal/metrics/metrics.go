package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vnc-viewer/pkg/rfb"
)

// Viewer session metrics collectors
var (
	// Connection lifecycle

	ConnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewer_connects_total",
			Help: "Total number of VNC connection attempts",
		},
		[]string{"status"},
	)

	ReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewer_reconnects_total",
			Help: "Total number of automatic reconnection attempts",
		},
	)

	SessionFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewer_session_failures_total",
			Help: "Total number of session failures by reason",
		},
		[]string{"reason"},
	)

	HandshakeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "viewer_handshake_duration_seconds",
			Help:    "RFB handshake duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// Stream progress

	BytesReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewer_bytes_received_total",
			Help: "Total bytes received from the VNC transport",
		},
	)

	BytesConsumedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewer_bytes_consumed_total",
			Help: "Total bytes consumed as complete protocol messages",
		},
	)

	UpdatesDecodedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewer_updates_decoded_total",
			Help: "Total number of FramebufferUpdate messages decoded",
		},
	)

	RectanglesDecodedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewer_rectangles_decoded_total",
			Help: "Total number of framebuffer rectangles decoded",
		},
	)

	UpdateRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewer_update_requests_total",
			Help: "Total number of FramebufferUpdateRequest messages sent",
		},
		[]string{"mode"},
	)

	InputEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewer_input_events_total",
			Help: "Total number of input events sent to the server",
		},
		[]string{"kind"},
	)
)

// FailureReason maps a session error to a low-cardinality label value
func FailureReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, rfb.ErrAuthRejected):
		return "auth_rejected"
	case errors.Is(err, rfb.ErrUnsupportedEncoding):
		return "unsupported_encoding"
	case errors.Is(err, rfb.ErrUnsupportedSecurity),
		errors.Is(err, rfb.ErrUnsupportedVersion),
		errors.Is(err, rfb.ErrUnsupportedPixelFormat):
		return "unsupported"
	case errors.Is(err, rfb.ErrMalformed):
		return "malformed"
	default:
		return "transport"
	}
}
