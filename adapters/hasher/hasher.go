// Package hasher hashes and checks the admin bearer token.
package hasher

import (
	"errors"
	"strings"

	"github.com/eurekapx/orderdesk/ports"
	"golang.org/x/crypto/bcrypt"
)

// ErrNoHash is returned by NewTokenVerifier when no token hash is configured.
var ErrNoHash = errors.New("admin token hash is not configured")

// Bcrypt uses bcrypt for hashing.
type Bcrypt struct {
	cost int
}

// NewBcrypt creates a bcrypt hasher with the given cost.
// Out of range costs fall back to bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Hash generates a bcrypt hash from plaintext.
func (h *Bcrypt) Hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
}

// Compare checks if plaintext matches hash.
func (h *Bcrypt) Compare(hash []byte, plaintext string) bool {
	if len(hash) == 0 || plaintext == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}

// TokenVerifier checks presented tokens against one configured hash.
type TokenVerifier struct {
	hash   []byte
	hasher ports.Hasher
}

// NewTokenVerifier builds a verifier for a stored token hash.
func NewTokenVerifier(h ports.Hasher, tokenHash string) (*TokenVerifier, error) {
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		return nil, ErrNoHash
	}
	return &TokenVerifier{hash: []byte(tokenHash), hasher: h}, nil
}

// Verify reports whether token matches the configured hash.
func (v *TokenVerifier) Verify(token string) bool {
	return v.hasher.Compare(v.hash, token)
}

// Fake stores plaintext. Tests only.
type Fake struct{}

// Hash returns the plaintext as bytes.
func (Fake) Hash(plaintext string) ([]byte, error) {
	return []byte(plaintext), nil
}

// Compare does a simple equality check.
func (Fake) Compare(hash []byte, plaintext string) bool {
	return plaintext != "" && string(hash) == plaintext
}

// Ensure interface compliance.
var (
	_ ports.Hasher = (*Bcrypt)(nil)
	_ ports.Hasher = Fake{}
)
