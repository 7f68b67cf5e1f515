// Package id generates identifiers for sessions and requests.
package id

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator produces string identifiers.
type Generator interface {
	Generate() string
}

// UUIDGenerator generates random (version 4) UUIDs.
type UUIDGenerator struct{}

// NewUUIDGenerator creates a UUID generator.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// Generate returns a new UUID string.
func (g *UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// IsValidUUID reports whether s parses as a UUID.
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// ULIDGenerator generates monotonic ULIDs. Safe for concurrent use.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewULIDGenerator creates a ULID generator backed by crypto/rand.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate returns a new ULID string.
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// IsValidULID reports whether s parses as a ULID.
func IsValidULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// Short returns the first n characters of an identifier, or the identifier itself if shorter.
func Short(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var (
	defaultSession Generator = NewUUIDGenerator()
	defaultRequest Generator = NewULIDGenerator()
)

// NewSessionID returns a new session identifier.
func NewSessionID() string {
	return defaultSession.Generate()
}

// NewRequestID returns a new request identifier.
func NewRequestID() string {
	return defaultRequest.Generate()
}
