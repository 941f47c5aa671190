// Package idgen provides ports.IDGenerator implementations.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/eurekapx/orderdesk/ports"
	"github.com/google/uuid"
)

// UUID generates random UUIDs, optionally prefixed ("task_", "rem_").
type UUID struct {
	Prefix string
}

// New generates a new UUID v4.
func (g UUID) New() string {
	return g.Prefix + uuid.New().String()
}

// Sequential generates predictable IDs for tests.
type Sequential struct {
	prefix  string
	counter uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	n := atomic.AddUint64(&s.counter, 1)
	return s.prefix + strconv.FormatUint(n, 10)
}

// Ensure interface compliance.
var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = (*Sequential)(nil)
)
