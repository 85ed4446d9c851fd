package identity

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces document identifiers: 128-bit ULIDs that sort
// lexicographically by creation time and stay strictly increasing within the
// same millisecond through monotonic entropy.
//
// A Generator is safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewGenerator constructs a Generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// New returns a fresh identifier. Identifiers are never reused or regenerated.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), g.entropy).String()
}

// Validate reports whether s is a well-formed identifier.
func Validate(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
