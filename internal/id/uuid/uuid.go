// Package uuid generates crawl run ids and request ids.
package uuid

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

// Generator creates UUID strings.
type Generator struct{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a time-ordered UUIDv7, used for crawl run ids.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// NewRequestID returns a random UUIDv4 for inbound HTTP requests.
func (Generator) NewRequestID() string {
	return uuid.NewString()
}

var _ crawler.IDGenerator = Generator{}
