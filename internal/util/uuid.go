package util

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateUUID returns a random v4 id for outbox messages.
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate uuid: %w", err)
	}
	return id.String(), nil
}
