package ibe

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	kyber "go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/xof/blake2xb"
	"golang.org/x/crypto/hkdf"
)

var encapPadTag = []byte("ibte-encap-pad-v1")

// EncapsulationOverhead is the number of bytes EncapsulateShare prepends to a
// share: one G2 group element carrying the per-share encapsulation.
var EncapsulationOverhead = suite.G2().PointLen()

// EncapsulateShare wraps an opaque byte share for the holder of the user
// secret key share extracted under (pub, id). The returned blob is the
// encapsulation element followed by the masked share:
//
//	C = (pub + g2^H(id))^r,  blob = C || share XOR KDF(e(g1,g2)^r)
//
// with fresh randomness r per call. The info bytes (typically the server id
// and share index) are bound into the KDF so blobs are not interchangeable
// between servers. Fails only on entropy-source failure.
func EncapsulateShare(rng io.Reader, id FullIdentity, pub PublicKeyShare, info, share []byte) ([]byte, error) {
	var entropy [32]byte
	if _, err := io.ReadFull(rng, entropy[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRandomness, err)
	}
	r := suite.G2().Scalar().Pick(blake2xb.New(entropy[:]))

	q := suite.G2().Point().Add(pub.p, suite.G2().Point().Mul(identityScalar(id), nil))
	c := suite.G2().Point().Mul(r, q)
	k := suite.GT().Point().Mul(r, gtBase)

	cBytes, err := c.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode encapsulation: %w", err)
	}
	pad, err := encapPad(k, cBytes, id, info, len(share))
	if err != nil {
		return nil, err
	}

	blob := make([]byte, 0, len(cBytes)+len(share))
	blob = append(blob, cBytes...)
	for i, b := range share {
		blob = append(blob, b^pad[i])
	}
	return blob, nil
}

// DecapsulateShare recovers the share wrapped by EncapsulateShare using the
// user secret key share extracted for the same full identity by the same
// server. A wrong key share yields garbage bytes, not an error; correctness
// of the recovered share is gated downstream by the unsealer's threshold
// count check or the symmetric authentication tag.
func DecapsulateShare(usk UserSecretKeyShare, id FullIdentity, info, blob []byte) ([]byte, error) {
	pointLen := suite.G2().PointLen()
	if len(blob) < pointLen {
		return nil, errors.New("encapsulated share too short")
	}

	c := suite.G2().Point()
	if err := c.UnmarshalBinary(blob[:pointLen]); err != nil {
		return nil, fmt.Errorf("invalid encapsulation element: %w", err)
	}
	k := suite.Pair(usk.p, c)

	masked := blob[pointLen:]
	pad, err := encapPad(k, blob[:pointLen], id, info, len(masked))
	if err != nil {
		return nil, err
	}

	share := make([]byte, len(masked))
	for i, b := range masked {
		share[i] = b ^ pad[i]
	}
	return share, nil
}

// encapPad derives a masking pad from the shared GT element, binding the
// encapsulation element, full identity, and caller info into the KDF.
func encapPad(k kyber.Point, cBytes []byte, id FullIdentity, info []byte, n int) ([]byte, error) {
	kBytes, err := k.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode shared element: %w", err)
	}

	material := make([]byte, 0, len(encapPadTag)+len(cBytes)+len(id)+len(info))
	material = append(material, encapPadTag...)
	material = append(material, cBytes...)
	material = append(material, id[:]...)
	material = append(material, info...)

	pad := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, kBytes, nil, material), pad); err != nil {
		return nil, fmt.Errorf("failed to derive encapsulation pad: %w", err)
	}
	return pad, nil
}
