package rfb

import "errors"

// Session-fatal protocol errors. RFB has no resynchronization marker, so a
// parse that fails against the expected message shape cannot be recovered
// by skipping ahead; the connection must be torn down.
var (
	// ErrMalformed - received bytes do not match the message shape expected
	// in the current connection phase
	ErrMalformed = errors.New("malformed RFB data")

	// ErrUnsupportedVersion - server protocol version outside RFB 3.x
	ErrUnsupportedVersion = errors.New("unsupported RFB version")

	// ErrUnsupportedSecurity - server offered no security type we implement
	ErrUnsupportedSecurity = errors.New("unsupported security type")

	// ErrAuthRejected - server returned a nonzero SecurityResult. Not
	// retryable: credentials must change first.
	ErrAuthRejected = errors.New("authentication rejected")

	// ErrUnsupportedEncoding - rectangle encoding other than Raw
	ErrUnsupportedEncoding = errors.New("unsupported rectangle encoding")

	// ErrUnsupportedPixelFormat - bits-per-pixel outside {8, 16, 32}
	ErrUnsupportedPixelFormat = errors.New("unsupported pixel format")

	// ErrClosed - operation attempted on a closed or failed connection
	ErrClosed = errors.New("connection closed")
)
