package seal

import (
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/vault/shamir"
	"golang.org/x/crypto/hkdf"

	"github.com/seal-labs/ibte/dem"
	"github.com/seal-labs/ibte/ibe"
)

var contentKeyTag = []byte("ibte-content-key-v1")

// Seal encrypts a payload to an identity under a t-of-n key server set.
//
// The server ids must be distinct and in order-correspondence with the
// public key shares; the threshold must satisfy 1 <= t <= n. Violations are
// reported before any key material is sampled.
//
// A fresh base key is sampled from rng, split into one share per server so
// that any threshold-sized subset reconstructs it while smaller subsets
// carry no information about it, and each share is encapsulated to the full
// identity under the matching server's public key share. The content key is
// derived from the base key and bound to the package, identity, server list,
// and threshold.
//
// For Aes256Gcm and Hmac256Ctr inputs the payload is wrapped under the
// content key and the returned key is nil. For Plain input there is no
// payload and the content key itself is returned for external wrapping.
func Seal(rng io.Reader, packageID ibe.PackageID, identity []byte, serverIDs []ServerID, publicKeys []ibe.PublicKeyShare, threshold uint8, input Input) (*EncryptedObject, []byte, error) {
	if err := validateServerList(serverIDs, len(publicKeys)); err != nil {
		return nil, nil, err
	}
	if threshold < 1 || int(threshold) > len(serverIDs) {
		return nil, nil, fmt.Errorf("%w: threshold %d with %d servers", ErrInvalidThreshold, threshold, len(serverIDs))
	}

	fullID := ibe.CreateFullID(packageID, identity)

	baseKey := make([]byte, dem.KeySize)
	if _, err := io.ReadFull(rng, baseKey); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ibe.ErrRandomness, err)
	}

	shares, err := splitBaseKey(baseKey, len(serverIDs), threshold)
	if err != nil {
		return nil, nil, err
	}

	encapsulated := make([][]byte, len(serverIDs))
	for i := range serverIDs {
		encapsulated[i], err = ibe.EncapsulateShare(rng, fullID, publicKeys[i], shareInfo(serverIDs[i], i), shares[i])
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encapsulate share for server %s: %w", serverIDs[i].Hex(), err)
		}
	}

	contentKey := deriveContentKey(baseKey, fullID, threshold, serverIDs)

	obj := &EncryptedObject{
		PackageID:          packageID,
		Identity:           append([]byte(nil), identity...),
		Threshold:          threshold,
		ServerIDs:          append([]ServerID(nil), serverIDs...),
		Mode:               input.mode(),
		EncapsulatedShares: encapsulated,
	}

	switch in := input.(type) {
	case Aes256Gcm:
		iv := make([]byte, dem.IVSizeAesGcm)
		if _, err := io.ReadFull(rng, iv); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ibe.ErrRandomness, err)
		}
		ciphertext, tag, err := dem.EncryptAesGcm(contentKey, iv, in.Data, in.AAD)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encrypt payload: %w", err)
		}
		obj.IV, obj.AAD, obj.Ciphertext, obj.Tag = iv, append([]byte(nil), in.AAD...), ciphertext, tag
		return obj, nil, nil

	case Hmac256Ctr:
		iv := make([]byte, dem.IVSizeHmacCtr)
		if _, err := io.ReadFull(rng, iv); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ibe.ErrRandomness, err)
		}
		ciphertext, tag, err := dem.EncryptHmacCtr(contentKey, iv, in.Data, in.AAD)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encrypt payload: %w", err)
		}
		obj.IV, obj.AAD, obj.Ciphertext, obj.Tag = iv, append([]byte(nil), in.AAD...), ciphertext, tag
		return obj, nil, nil

	case Plain:
		return obj, contentKey, nil

	default:
		return nil, nil, fmt.Errorf("unsupported input type %T", input)
	}
}

// Unseal reconstructs the content key of an encrypted object from user
// secret key shares and opens the payload.
//
// keyShares maps server ids to the identity-bound shares obtained from the
// individual key servers. Every id must belong to the object's server set.
// If publicKeys is non-nil each offered share is verified before use;
// shares that fail verification are dropped and their servers reported.
// Fewer than threshold valid shares fail with ErrInsufficientShares without
// attempting reconstruction.
//
// For payload modes the plaintext is returned only after the symmetric
// authentication check passes. For Plain objects the re-derived content key
// is returned, gated by the threshold count check alone.
func Unseal(obj *EncryptedObject, keyShares map[ServerID]ibe.UserSecretKeyShare, publicKeys map[ServerID]ibe.PublicKeyShare) ([]byte, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	inSet := make(map[ServerID]struct{}, len(obj.ServerIDs))
	for _, id := range obj.ServerIDs {
		inSet[id] = struct{}{}
	}
	for id := range keyShares {
		if _, ok := inSet[id]; !ok {
			return nil, fmt.Errorf("%w: %s not in the object's server set", ErrUnknownServer, id.Hex())
		}
	}

	fullID := ibe.CreateFullID(obj.PackageID, obj.Identity)

	// Collect valid shares in the object's server order so reconstruction is
	// deterministic regardless of map iteration.
	var validIdx []int
	var rejected []string
	for i, id := range obj.ServerIDs {
		usk, ok := keyShares[id]
		if !ok {
			continue
		}
		if publicKeys != nil {
			pub, ok := publicKeys[id]
			if !ok {
				return nil, fmt.Errorf("%w: missing public key share for server %s", ErrInvalidServerList, id.Hex())
			}
			if err := ibe.Verify(usk, fullID, pub); err != nil {
				rejected = append(rejected, id.Hex())
				continue
			}
		}
		validIdx = append(validIdx, i)
	}

	if len(validIdx) < int(obj.Threshold) {
		if len(rejected) > 0 {
			return nil, fmt.Errorf("%w: %d valid shares, %d required (rejected servers: %s)",
				ErrInsufficientShares, len(validIdx), obj.Threshold, strings.Join(rejected, ", "))
		}
		return nil, fmt.Errorf("%w: %d shares, %d required", ErrInsufficientShares, len(validIdx), obj.Threshold)
	}

	recovered := make([][]byte, 0, len(validIdx))
	for _, i := range validIdx {
		id := obj.ServerIDs[i]
		share, err := ibe.DecapsulateShare(keyShares[id], fullID, shareInfo(id, i), obj.EncapsulatedShares[i])
		if err != nil {
			return nil, fmt.Errorf("%w: share for server %s: %w", ErrSerialization, id.Hex(), err)
		}
		recovered = append(recovered, share)
	}

	baseKey, err := combineShares(recovered, obj.Threshold)
	if err != nil {
		return nil, err
	}
	contentKey := deriveContentKey(baseKey, fullID, obj.Threshold, obj.ServerIDs)

	switch obj.Mode {
	case ModeAes256Gcm:
		plaintext, err := dem.DecryptAesGcm(contentKey, obj.IV, obj.Ciphertext, obj.Tag, obj.AAD)
		if err != nil {
			return nil, fmt.Errorf("failed to open payload: %w", err)
		}
		return plaintext, nil

	case ModeHmac256Ctr:
		plaintext, err := dem.DecryptHmacCtr(contentKey, obj.IV, obj.Ciphertext, obj.Tag, obj.AAD)
		if err != nil {
			return nil, fmt.Errorf("failed to open payload: %w", err)
		}
		return plaintext, nil

	case ModePlain:
		return contentKey, nil

	default:
		return nil, fmt.Errorf("%w: unsupported mode %d", ErrSerialization, obj.Mode)
	}
}

func validateServerList(serverIDs []ServerID, publicKeyCount int) error {
	if len(serverIDs) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidServerList)
	}
	if len(serverIDs) > 255 {
		return fmt.Errorf("%w: %d servers, at most 255 supported", ErrInvalidServerList, len(serverIDs))
	}
	if publicKeyCount != len(serverIDs) {
		return fmt.Errorf("%w: %d server ids but %d public key shares", ErrInvalidServerList, len(serverIDs), publicKeyCount)
	}
	seen := make(map[ServerID]struct{}, len(serverIDs))
	for _, id := range serverIDs {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: duplicate server id %s", ErrInvalidServerList, id.Hex())
		}
		seen[id] = struct{}{}
	}
	return nil
}

// splitBaseKey produces one share per server, any threshold of which
// reconstruct the base key. Threshold 1 is a degree-0 polynomial: the share
// is the secret itself, which the shamir library (threshold >= 2) does not
// model.
func splitBaseKey(baseKey []byte, parts int, threshold uint8) ([][]byte, error) {
	if threshold == 1 {
		shares := make([][]byte, parts)
		for i := range shares {
			shares[i] = append([]byte(nil), baseKey...)
		}
		return shares, nil
	}
	shares, err := shamir.Split(baseKey, parts, int(threshold))
	if err != nil {
		return nil, fmt.Errorf("failed to split content key: %w", err)
	}
	return shares, nil
}

func combineShares(shares [][]byte, threshold uint8) ([]byte, error) {
	if threshold == 1 {
		key := shares[0]
		if len(key) != dem.KeySize {
			return nil, fmt.Errorf("%w: recovered key has %d bytes", ErrSerialization, len(key))
		}
		return key, nil
	}
	key, err := shamir.Combine(shares)
	if err != nil {
		return nil, fmt.Errorf("failed to combine shares: %w", err)
	}
	if len(key) != dem.KeySize {
		return nil, fmt.Errorf("%w: recovered key has %d bytes", ErrSerialization, len(key))
	}
	return key, nil
}

// deriveContentKey binds the content key to everything that identifies the
// sealed object: base key, full identity, threshold, and the ordered server
// list.
func deriveContentKey(baseKey []byte, fullID ibe.FullIdentity, threshold uint8, serverIDs []ServerID) []byte {
	info := make([]byte, 0, len(contentKeyTag)+len(fullID)+2+len(serverIDs)*32)
	info = append(info, contentKeyTag...)
	info = append(info, fullID[:]...)
	info = append(info, threshold, uint8(len(serverIDs)))
	for _, id := range serverIDs {
		info = append(info, id[:]...)
	}

	key := make([]byte, dem.KeySize)
	// HKDF cannot fail for a 32-byte read with SHA-256.
	_, _ = io.ReadFull(hkdf.New(sha256.New, baseKey, nil, info), key)
	return key
}

// shareInfo binds an encapsulated share to its server and position.
func shareInfo(id ServerID, index int) []byte {
	return append(append([]byte(nil), id[:]...), uint8(index))
}
