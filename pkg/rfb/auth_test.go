package rfb

import (
	"bytes"
	"crypto/des"
	"encoding/hex"
	"errors"
	"testing"
)

// decryptChallengeResponse plays the server side of the exchange: decrypt
// the client's response and recover the challenge
func decryptChallengeResponse(t *testing.T, response []byte, password string) []byte {
	t.Helper()
	block, err := des.NewCipher(vncDESKey(password))
	if err != nil {
		t.Fatalf("des.NewCipher: %v", err)
	}
	challenge := make([]byte, VNCAuthChallengeLength)
	block.Decrypt(challenge[0:8], response[0:8])
	block.Decrypt(challenge[8:16], response[8:16])
	return challenge
}

func TestReverseBits(t *testing.T) {
	tests := []struct {
		input    byte
		expected byte
	}{
		{0x00, 0x00},
		{0xFF, 0xFF},
		{0x01, 0x80},
		{0x80, 0x01},
		{0xB2, 0x4D}, // 10110010 -> 01001101
		{0xAA, 0x55}, // 10101010 -> 01010101
		{0x0F, 0xF0},
	}

	for _, tt := range tests {
		if got := reverseBits(tt.input); got != tt.expected {
			t.Errorf("reverseBits(0x%02X) = 0x%02X, want 0x%02X", tt.input, got, tt.expected)
		}
	}
}

func TestVNCDESKey(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantHex  string
	}{
		{
			name:     "empty password",
			password: "",
			wantHex:  "0000000000000000",
		},
		{
			name:     "short password null-padded",
			password: "a",
			wantHex:  "8600000000000000",
		},
		{
			name:     "exactly 8 characters",
			password: "12345678",
			wantHex:  "8c4ccc2cac6cec1c",
		},
		{
			name:     "long password truncated",
			password: "verylongpassword",
			wantHex:  "6ea64e9e36f676e6",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := vncDESKey(tt.password)
			if got := hex.EncodeToString(key); got != tt.wantHex {
				t.Errorf("vncDESKey(%q) = %s, want %s", tt.password, got, tt.wantHex)
			}
		})
	}
}

func TestVNCDESKeyTruncationMatchesPrefix(t *testing.T) {
	// Only the first 8 password bytes matter
	a := vncDESKey("verylongpassword")
	b := vncDESKey("verylong")
	if !bytes.Equal(a, b) {
		t.Error("truncated key differs from 8-character prefix key")
	}
}

func TestPasswordResponderRoundTrip(t *testing.T) {
	challenge := []byte{
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10,
	}

	responder := NewPasswordResponder("secret")
	response, err := responder.Respond(challenge)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if len(response) != VNCAuthChallengeLength {
		t.Fatalf("response length = %d, want %d", len(response), VNCAuthChallengeLength)
	}
	if bytes.Equal(response, challenge) {
		t.Fatal("response equals challenge; encryption did not happen")
	}

	decrypted := decryptChallengeResponse(t, response, "secret")
	if !bytes.Equal(decrypted, challenge) {
		t.Errorf("decrypt(encrypt(challenge)) = % x, want % x", decrypted, challenge)
	}
}

func TestPasswordResponderWrongPassword(t *testing.T) {
	challenge := make([]byte, VNCAuthChallengeLength)
	for i := range challenge {
		challenge[i] = byte(i * 7)
	}

	response, err := NewPasswordResponder("correct").Respond(challenge)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	decrypted := decryptChallengeResponse(t, response, "wrong")
	if bytes.Equal(decrypted, challenge) {
		t.Error("wrong password recovered the challenge")
	}
}

func TestPasswordResponderDeterministic(t *testing.T) {
	challenge := make([]byte, VNCAuthChallengeLength)
	responder := NewPasswordResponder("pw")

	first, err := responder.Respond(challenge)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	second, err := responder.Respond(challenge)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("same challenge and password produced different responses")
	}
}

func TestPasswordResponderBadChallengeLength(t *testing.T) {
	responder := NewPasswordResponder("pw")
	for _, n := range []int{0, 8, 15, 17} {
		if _, err := responder.Respond(make([]byte, n)); !errors.Is(err, ErrMalformed) {
			t.Errorf("challenge length %d: expected ErrMalformed, got %v", n, err)
		}
	}
}
