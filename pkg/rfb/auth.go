package rfb

import (
	"crypto/des"
	"fmt"
)

// ChallengeResponder answers a VNC authentication challenge. The state
// machine delegates here so the cipher stays a swappable, independently
// testable primitive.
type ChallengeResponder interface {
	// Respond produces the 16-byte response for a 16-byte challenge
	Respond(challenge []byte) ([]byte, error)
}

// PasswordResponder implements standard VNC password authentication:
// DES encryption of the challenge with the password as key.
//
// VNC DES quirks:
//   - Password is truncated/padded to 8 bytes
//   - Each key byte has its bits reversed before use
//   - Challenge is encrypted in two 8-byte blocks (ECB mode)
type PasswordResponder struct {
	password string
}

// NewPasswordResponder creates a responder for a VNC password
func NewPasswordResponder(password string) *PasswordResponder {
	return &PasswordResponder{password: password}
}

// Respond encrypts the challenge with the password
func (p *PasswordResponder) Respond(challenge []byte) ([]byte, error) {
	if len(challenge) != VNCAuthChallengeLength {
		return nil, fmt.Errorf("%w: challenge is %d bytes, expected %d",
			ErrMalformed, len(challenge), VNCAuthChallengeLength)
	}

	block, err := des.NewCipher(vncDESKey(p.password))
	if err != nil {
		return nil, fmt.Errorf("failed to create DES cipher: %w", err)
	}

	response := make([]byte, VNCAuthChallengeLength)
	block.Encrypt(response[0:8], challenge[0:8])
	block.Encrypt(response[8:16], challenge[8:16])
	return response, nil
}

// vncDESKey prepares the 8-byte DES key: truncate or null-pad the password
// to 8 bytes, then reverse the bits in each byte. The bit reversal is a
// VNC-specific quirk, not part of standard DES.
func vncDESKey(password string) []byte {
	key := make([]byte, 8)

	n := len(password)
	if n > 8 {
		n = 8
	}
	copy(key, password[:n])

	for i := 0; i < 8; i++ {
		key[i] = reverseBits(key[i])
	}
	return key
}

// reverseBits reverses the bits in a byte (0xB2 -> 0x4D)
func reverseBits(b byte) byte {
	var result byte
	for i := 0; i < 8; i++ {
		result <<= 1
		result |= b & 1
		b >>= 1
	}
	return result
}
