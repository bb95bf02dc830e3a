package kms

import (
	"fmt"

	"github.com/hashicorp/vault/shamir"

	"github.com/seal-labs/ibte/ibe"
)

// BackupMasterShare splits an authority's master key share into parts
// share-split pieces, any threshold of which recover it. Pieces are meant
// for distribution to independent custodians; threshold must be at least 2
// so no single piece reveals the master key share.
func BackupMasterShare(a *Authority, parts, threshold int) ([][]byte, error) {
	raw, err := a.master.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode master key share: %w", err)
	}
	pieces, err := shamir.Split(raw, parts, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to split master key share: %w", err)
	}
	return pieces, nil
}

// RestoreMasterShare recombines backup pieces into the original master key
// share. At least the backup threshold of distinct pieces must be supplied.
func RestoreMasterShare(pieces [][]byte) (ibe.MasterKeyShare, error) {
	raw, err := shamir.Combine(pieces)
	if err != nil {
		return ibe.MasterKeyShare{}, fmt.Errorf("failed to combine backup pieces: %w", err)
	}
	master, err := ibe.MasterKeyShareFromBytes(raw)
	if err != nil {
		return ibe.MasterKeyShare{}, fmt.Errorf("failed to decode recovered master key share: %w", err)
	}
	return master, nil
}

// RestoreAuthority rebuilds a full authority from backup pieces.
func RestoreAuthority(pieces [][]byte) (*Authority, error) {
	master, err := RestoreMasterShare(pieces)
	if err != nil {
		return nil, err
	}
	return AuthorityFromMaster(master)
}
