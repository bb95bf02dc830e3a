package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrObjectNotFound indicates no object is stored under the requested id.
var ErrObjectNotFound = errors.New("encrypted object not found")

// ContentID is the SHA-256 digest of an encrypted object's canonical bytes.
type ContentID [32]byte

// ContentIDForData computes the content id of raw object bytes.
func ContentIDForData(data []byte) ContentID {
	return ContentID(sha256.Sum256(data))
}

// ContentIDFromHex parses a hex-encoded 32-byte content id.
func ContentIDFromHex(s string) (ContentID, error) {
	var id ContentID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ContentID{}, fmt.Errorf("invalid content id: %w", err)
	}
	if len(raw) != len(id) {
		return ContentID{}, errors.New("invalid content id: must be 32 bytes")
	}
	copy(id[:], raw)
	return id, nil
}

// Hex returns the lowercase hex encoding of the content id.
func (id ContentID) Hex() string {
	return hex.EncodeToString(id[:])
}

// Store persists encrypted object bytes under their content id.
type Store interface {
	// Put stores data and returns its content id.
	Put(ctx context.Context, data []byte) (ContentID, error)

	// Get retrieves the bytes stored under id. Returns ErrObjectNotFound if
	// nothing is stored there.
	Get(ctx context.Context, id ContentID) ([]byte, error)

	// Available reports whether the backend is currently usable.
	Available(ctx context.Context) bool
}
