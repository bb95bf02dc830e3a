package seal

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/seal-labs/ibte/ibe"
)

// ServerID is an opaque 32-byte key server identifier.
type ServerID [32]byte

// RandomServerID samples a fresh server id from the given random source.
func RandomServerID(rng io.Reader) (ServerID, error) {
	var id ServerID
	if _, err := io.ReadFull(rng, id[:]); err != nil {
		return ServerID{}, fmt.Errorf("%w: %w", ibe.ErrRandomness, err)
	}
	return id, nil
}

// ServerIDFromHex parses a hex-encoded 32-byte server id.
func ServerIDFromHex(s string) (ServerID, error) {
	var id ServerID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ServerID{}, fmt.Errorf("invalid server id: %w", err)
	}
	if len(raw) != len(id) {
		return ServerID{}, errors.New("invalid server id: must be 32 bytes")
	}
	copy(id[:], raw)
	return id, nil
}

// Hex returns the lowercase hex encoding of the server id.
func (id ServerID) Hex() string {
	return hex.EncodeToString(id[:])
}

// KeyServerDescriptor pairs a server id with its public key share. The
// ordered descriptor list fixed at seal time determines share positions for
// the object's whole lifetime.
type KeyServerDescriptor struct {
	ID        ServerID
	PublicKey ibe.PublicKeyShare
}

// Mode tags the symmetric scheme an encrypted object's payload uses.
type Mode uint8

const (
	// ModeAes256Gcm is authenticated encryption with associated data.
	ModeAes256Gcm Mode = 1

	// ModeHmac256Ctr is a stream cipher with a separate HMAC authenticator.
	ModeHmac256Ctr Mode = 2

	// ModePlain carries no payload; the object exists to transport the
	// threshold-encapsulated content key for external key wrapping.
	ModePlain Mode = 3
)

func (m Mode) valid() bool {
	return m == ModeAes256Gcm || m == ModeHmac256Ctr || m == ModePlain
}

// Input selects the symmetric scheme and payload for Seal.
type Input interface {
	mode() Mode
}

// Aes256Gcm seals data with AES-256-GCM; the optional associated data is
// bound into the authentication tag and stored alongside the ciphertext.
type Aes256Gcm struct {
	Data []byte
	AAD  []byte
}

func (Aes256Gcm) mode() Mode { return ModeAes256Gcm }

// Hmac256Ctr seals data with AES-256-CTR plus an HMAC-SHA256 authenticator
// under an independent sub-key.
type Hmac256Ctr struct {
	Data []byte
	AAD  []byte
}

func (Hmac256Ctr) mode() Mode { return ModeHmac256Ctr }

// Plain requests no payload encryption: Seal returns the derived content
// key, deterministically tied to (package, identity, server set, threshold),
// for external use.
type Plain struct{}

func (Plain) mode() Mode { return ModePlain }
