package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"vnc-viewer/pkg/rfb"
)

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "none"},
		{"auth rejected", rfb.ErrAuthRejected, "auth_rejected"},
		{"wrapped auth rejected", fmt.Errorf("handshake: %w", rfb.ErrAuthRejected), "auth_rejected"},
		{"unsupported encoding", rfb.ErrUnsupportedEncoding, "unsupported_encoding"},
		{"unsupported version", rfb.ErrUnsupportedVersion, "unsupported"},
		{"unsupported security", rfb.ErrUnsupportedSecurity, "unsupported"},
		{"unsupported pixel format", rfb.ErrUnsupportedPixelFormat, "unsupported"},
		{"malformed", fmt.Errorf("%w: junk", rfb.ErrMalformed), "malformed"},
		{"anything else is transport", errors.New("connection reset"), "transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FailureReason(tt.err); got != tt.want {
				t.Errorf("FailureReason(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestServerRoutes(t *testing.T) {
	srv := NewServer(":0")

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /healthz = %d", rec.Code)
	}
}
