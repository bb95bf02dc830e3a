package ibe

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
)

// PackageID identifies the package or tenant an identity belongs to. Two
// equal identity strings under different package IDs bind to unrelated keys.
type PackageID [32]byte

// FullIdentity is the canonical, namespaced form of an identity: a fixed-size
// digest of the package ID and the raw identity bytes. It is produced only by
// CreateFullID and never constructed by hand.
type FullIdentity [32]byte

// Domain separation tags. Changing any of these changes every derived key.
var (
	fullIDTag         = []byte("ibte-full-id-v1")
	identityScalarTag = []byte("ibte-identity-scalar-v1")
	masterDeriveTag   = []byte("ibte-derive-master-v1")
)

// CreateFullID deterministically combines a package ID and arbitrary identity
// bytes into a full identity. Equal inputs always yield equal output; a
// different package ID or identity yields a different output with
// overwhelming probability. The package ID is fixed-size, so the
// concatenation is unambiguous.
func CreateFullID(packageID PackageID, identity []byte) FullIdentity {
	var full FullIdentity
	copy(full[:], crypto.Keccak256(fullIDTag, packageID[:], identity))
	return full
}

// RandomPackageID samples a fresh package ID from the given random source.
func RandomPackageID(rng io.Reader) (PackageID, error) {
	var id PackageID
	if _, err := io.ReadFull(rng, id[:]); err != nil {
		return PackageID{}, fmt.Errorf("%w: %w", ErrRandomness, err)
	}
	return id, nil
}

// PackageIDFromHex parses a hex-encoded 32-byte package ID.
func PackageIDFromHex(s string) (PackageID, error) {
	var id PackageID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return PackageID{}, fmt.Errorf("invalid package id: %w", err)
	}
	if len(raw) != len(id) {
		return PackageID{}, errors.New("invalid package id: must be 32 bytes")
	}
	copy(id[:], raw)
	return id, nil
}

// Hex returns the lowercase hex encoding of the package ID.
func (id PackageID) Hex() string {
	return hex.EncodeToString(id[:])
}

// Hex returns the lowercase hex encoding of the full identity.
func (id FullIdentity) Hex() string {
	return hex.EncodeToString(id[:])
}

// FullIdentityFromBytes validates and copies a 32-byte full identity. It is
// intended for transport boundaries (HTTP handlers, CLI input) where the
// value arrives as raw bytes rather than from CreateFullID.
func FullIdentityFromBytes(raw []byte) (FullIdentity, error) {
	var id FullIdentity
	if len(raw) != len(id) {
		return FullIdentity{}, errors.New("invalid full identity: must be 32 bytes")
	}
	copy(id[:], raw)
	return id, nil
}
