package helper

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// NewID creates a random UUID string for document/chunk/query identities.
func NewID() string {
	return uuid.NewString()
}

// HashContent returns the hex sha256 of the content, the idempotency key
// for re-ingestion.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// CreateFolder ensures the directory exists.
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("creating folder %s: %w", path, err)
	}
	return nil
}
