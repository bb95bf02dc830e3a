package kms

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/seal-labs/ibte/ibe"
	"github.com/seal-labs/ibte/seal"
)

var serverIDTag = []byte("ibte-server-id-v1")

// Authority is one key server's share of the threshold system: a master key
// share, its public counterpart, and the server id derived from the public
// key share. Authorities are immutable after construction and safe for
// concurrent use.
type Authority struct {
	id     seal.ServerID
	master ibe.MasterKeyShare
	public ibe.PublicKeyShare
}

// NewAuthority generates an authority with a fresh random master key share.
func NewAuthority(rng io.Reader) (*Authority, error) {
	master, public, err := ibe.GenerateKeyPair(rng)
	if err != nil {
		return nil, fmt.Errorf("failed to generate master key share: %w", err)
	}
	return newAuthority(master, public)
}

// AuthorityFromSeed deterministically derives an authority from a seed and a
// key index. The same (seed, index) pair always yields the same authority,
// which lets operators rebuild a key server from backed-up seed material.
func AuthorityFromSeed(seed ibe.Seed, index uint64) (*Authority, error) {
	master, public := ibe.KeyPairFromMaster(ibe.DeriveMasterKey(seed, index))
	return newAuthority(master, public)
}

// AuthorityFromMaster wraps an existing master key share, typically one
// recovered by RestoreMasterShare.
func AuthorityFromMaster(master ibe.MasterKeyShare) (*Authority, error) {
	master, public := ibe.KeyPairFromMaster(master)
	return newAuthority(master, public)
}

func newAuthority(master ibe.MasterKeyShare, public ibe.PublicKeyShare) (*Authority, error) {
	id, err := ServerIDForPublicKey(public)
	if err != nil {
		return nil, err
	}
	return &Authority{id: id, master: master, public: public}, nil
}

// ServerIDForPublicKey derives the canonical server id for a public key
// share. Anyone holding the public key share can recompute it, so the id
// needs no separate distribution channel.
func ServerIDForPublicKey(public ibe.PublicKeyShare) (seal.ServerID, error) {
	raw, err := public.MarshalBinary()
	if err != nil {
		return seal.ServerID{}, fmt.Errorf("failed to encode public key share: %w", err)
	}
	var id seal.ServerID
	copy(id[:], crypto.Keccak256(serverIDTag, raw))
	return id, nil
}

// ID returns the authority's server id.
func (a *Authority) ID() seal.ServerID { return a.id }

// PublicKey returns the authority's public key share.
func (a *Authority) PublicKey() ibe.PublicKeyShare { return a.public }

// Descriptor returns the (id, public key share) pair sealers place in their
// server lists.
func (a *Authority) Descriptor() seal.KeyServerDescriptor {
	return seal.KeyServerDescriptor{ID: a.id, PublicKey: a.public}
}

// Extract produces the user secret key share binding this authority's master
// key share to the given full identity. Deterministic: repeated calls for
// the same identity return equal shares.
func (a *Authority) Extract(id ibe.FullIdentity) ibe.UserSecretKeyShare {
	return ibe.Extract(a.master, id)
}
