package domain

import (
	"strings"

	"github.com/google/uuid"
)

// NewID generates a prefixed entity id, e.g. "t_1a2b3c4d5e6f".
func NewID(prefix string) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + "_" + hex[:12]
}
