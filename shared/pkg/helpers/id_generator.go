package helpers

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IDGenerator generates various types of IDs
type IDGenerator struct {
	mu   sync.Mutex
	rand *rand.Rand
	now  func() time.Time
}

// NewIDGenerator creates a new ID generator
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
		now:  time.Now,
	}
}

// GenerateUUID generates a UUID v4
func (g *IDGenerator) GenerateUUID() string {
	return uuid.New().String()
}

// GenerateRequestID generates a request correlation ID
// Format: REQ-YYYYMMDD-XXXXXXXX (e.g., REQ-20241029-A1B2C3D4)
func (g *IDGenerator) GenerateRequestID() string {
	return fmt.Sprintf("REQ-%s-%s", g.now().UTC().Format("20060102"), g.randomAlphanumeric(8))
}

// randomAlphanumeric generates a random alphanumeric string
func (g *IDGenerator) randomAlphanumeric(length int) string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	g.mu.Lock()
	defer g.mu.Unlock()

	result := make([]byte, length)
	for i := range result {
		result[i] = chars[g.rand.Intn(len(chars))]
	}
	return string(result)
}
