package ibe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
	kyber "go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/xof/blake2xb"
)

var (
	// ErrRandomness indicates the injected entropy source failed. This is
	// fatal and non-retryable.
	ErrRandomness = errors.New("randomness source failure")

	// ErrVerificationFailed indicates a user secret key share does not match
	// the claimed (full identity, public key share) pair.
	ErrVerificationFailed = errors.New("user secret key share verification failed")
)

// The pairing suite is package-global and immutable. All key material in the
// engine lives in its groups: master key shares are scalars, public key
// shares are G2 elements, and user secret key shares are G1 elements.
var (
	suite  = bn256.NewSuite()
	g1Base = suite.G1().Point().Base()
	g2Base = suite.G2().Point().Base()
	gtBase = suite.Pair(g1Base, g2Base)
)

// Seed is fixed-size entropy for deterministic master key derivation.
type Seed [32]byte

// MasterKeyShare is one key server's secret scalar. It is never transmitted;
// MarshalBinary exists only to support local share-split backup.
type MasterKeyShare struct {
	s kyber.Scalar
}

// PublicKeyShare is the public group element paired with a master key share.
// Safe to distribute.
type PublicKeyShare struct {
	p kyber.Point
}

// UserSecretKeyShare is an identity-bound decryption share, produced by
// Extract for a single (master key share, full identity) pair. It is
// ephemeral: callers hold it only as long as needed to reconstruct a content
// key.
type UserSecretKeyShare struct {
	p kyber.Point
}

// GenerateSeed produces a fresh seed for deterministic key derivation.
func GenerateSeed(rng io.Reader) (Seed, error) {
	var seed Seed
	if _, err := io.ReadFull(rng, seed[:]); err != nil {
		return Seed{}, fmt.Errorf("%w: %w", ErrRandomness, err)
	}
	return seed, nil
}

// GenerateKeyPair samples a uniformly random master key share and derives its
// public key share. It fails only if the entropy source fails.
func GenerateKeyPair(rng io.Reader) (MasterKeyShare, PublicKeyShare, error) {
	var entropy [32]byte
	sk := suite.G2().Scalar().Zero()
	for sk.Equal(suite.G2().Scalar().Zero()) {
		if _, err := io.ReadFull(rng, entropy[:]); err != nil {
			return MasterKeyShare{}, PublicKeyShare{}, fmt.Errorf("%w: %w", ErrRandomness, err)
		}
		sk = suite.G2().Scalar().Pick(blake2xb.New(entropy[:]))
	}
	master, pub := KeyPairFromMaster(MasterKeyShare{s: sk})
	return master, pub, nil
}

// DeriveMasterKey deterministically derives a master key share from a seed
// and an index. Identical (seed, index) pairs always yield the identical
// key; distinct indices under the same seed yield independent-looking keys.
func DeriveMasterKey(seed Seed, index uint64) MasterKeyShare {
	buf := make([]byte, 0, len(masterDeriveTag)+len(seed)+8)
	buf = append(buf, masterDeriveTag...)
	buf = append(buf, seed[:]...)
	buf = binary.BigEndian.AppendUint64(buf, index)
	return MasterKeyShare{s: suite.G2().Scalar().Pick(blake2xb.New(buf))}
}

// KeyPairFromMaster recomputes the public key share for an existing master
// key share. Pure, no failure mode.
func KeyPairFromMaster(master MasterKeyShare) (MasterKeyShare, PublicKeyShare) {
	return master, PublicKeyShare{p: suite.G2().Point().Mul(master.s, nil)}
}

// identityScalar maps a full identity to a nonzero-w.o.p. field element.
func identityScalar(id FullIdentity) kyber.Scalar {
	return suite.G2().Scalar().SetBytes(crypto.Keccak256(identityScalarTag, id[:]))
}

// Extract produces the user secret key share binding a master key share to a
// full identity: g1^(1/(master + H(id))). Deterministic and total; the same
// inputs always produce the same share.
func Extract(master MasterKeyShare, id FullIdentity) UserSecretKeyShare {
	d := suite.G2().Scalar().Add(master.s, identityScalar(id))
	d.Inv(d)
	return UserSecretKeyShare{p: suite.G1().Point().Mul(d, nil)}
}

// Verify checks that a user secret key share was produced by Extract under
// the master key share matching pub, for exactly this full identity. It
// evaluates the pairing equation
//
//	e(usk, pub + g2^H(id)) == e(g1, g2)
//
// and needs no secret material. Any mismatch (wrong identity, wrong server,
// corrupted share) returns ErrVerificationFailed.
func Verify(usk UserSecretKeyShare, id FullIdentity, pub PublicKeyShare) error {
	if usk.p == nil || pub.p == nil {
		return fmt.Errorf("%w: missing key material", ErrVerificationFailed)
	}
	q := suite.G2().Point().Add(pub.p, suite.G2().Point().Mul(identityScalar(id), nil))
	if !suite.Pair(usk.p, q).Equal(gtBase) {
		return ErrVerificationFailed
	}
	return nil
}

// MarshalBinary encodes the master key share scalar. Intended only for local
// backup splitting; master key shares must never be transmitted.
func (m MasterKeyShare) MarshalBinary() ([]byte, error) {
	return m.s.MarshalBinary()
}

// Equal reports whether two master key shares are the same scalar.
func (m MasterKeyShare) Equal(other MasterKeyShare) bool {
	return m.s != nil && other.s != nil && m.s.Equal(other.s)
}

// MasterKeyShareFromBytes decodes a master key share produced by
// MarshalBinary.
func MasterKeyShareFromBytes(raw []byte) (MasterKeyShare, error) {
	s := suite.G2().Scalar()
	if err := s.UnmarshalBinary(raw); err != nil {
		return MasterKeyShare{}, fmt.Errorf("invalid master key share encoding: %w", err)
	}
	return MasterKeyShare{s: s}, nil
}

// MarshalBinary encodes the public key share group element.
func (p PublicKeyShare) MarshalBinary() ([]byte, error) {
	return p.p.MarshalBinary()
}

// Equal reports whether two public key shares are the same group element.
func (p PublicKeyShare) Equal(other PublicKeyShare) bool {
	return p.p != nil && other.p != nil && p.p.Equal(other.p)
}

// PublicKeyShareFromBytes decodes a public key share produced by
// MarshalBinary.
func PublicKeyShareFromBytes(raw []byte) (PublicKeyShare, error) {
	p := suite.G2().Point()
	if err := p.UnmarshalBinary(raw); err != nil {
		return PublicKeyShare{}, fmt.Errorf("invalid public key share encoding: %w", err)
	}
	return PublicKeyShare{p: p}, nil
}

// MarshalBinary encodes the user secret key share group element.
func (u UserSecretKeyShare) MarshalBinary() ([]byte, error) {
	return u.p.MarshalBinary()
}

// Equal reports whether two user secret key shares are the same group
// element.
func (u UserSecretKeyShare) Equal(other UserSecretKeyShare) bool {
	return u.p != nil && other.p != nil && u.p.Equal(other.p)
}

// UserSecretKeyShareFromBytes decodes a user secret key share produced by
// MarshalBinary.
func UserSecretKeyShareFromBytes(raw []byte) (UserSecretKeyShare, error) {
	p := suite.G1().Point()
	if err := p.UnmarshalBinary(raw); err != nil {
		return UserSecretKeyShare{}, fmt.Errorf("invalid user secret key share encoding: %w", err)
	}
	return UserSecretKeyShare{p: p}, nil
}
