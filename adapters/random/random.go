// Package random generates secrets for operators.
package random

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// MinTokenBytes is the shortest admin token Token will produce.
const MinTokenBytes = 16

// ErrShortToken is returned when fewer than MinTokenBytes are requested.
var ErrShortToken = errors.New("token too short")

// Token returns n random bytes from src, hex encoded.
// A nil src reads from crypto/rand.
func Token(src io.Reader, n int) (string, error) {
	if n < MinTokenBytes {
		return "", fmt.Errorf("%w: %d bytes, need at least %d", ErrShortToken, n, MinTokenBytes)
	}
	if src == nil {
		src = rand.Reader
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(src, b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
