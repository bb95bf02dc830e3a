package seal

import (
	"errors"

	"github.com/seal-labs/ibte/dem"
	"github.com/seal-labs/ibte/ibe"
)

var (
	// ErrInvalidThreshold indicates a threshold outside 1..len(servers).
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidServerList indicates duplicate server ids or a server list
	// inconsistent with the supplied public key shares.
	ErrInvalidServerList = errors.New("invalid server list")

	// ErrUnknownServer indicates a key share referencing a server id that is
	// not part of the encrypted object's server set.
	ErrUnknownServer = errors.New("unknown server")

	// ErrInsufficientShares indicates fewer than threshold valid, distinct
	// key shares were supplied. Reconstruction is never attempted in this
	// state.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrSerialization indicates malformed encrypted object bytes.
	ErrSerialization = errors.New("malformed encrypted object")

	// ErrAuthenticationFailure is the symmetric layer's tag/MAC mismatch,
	// re-exported for callers that only import this package.
	ErrAuthenticationFailure = dem.ErrAuthenticationFailure

	// ErrVerificationFailed is the key share verification failure,
	// re-exported for callers that only import this package.
	ErrVerificationFailed = ibe.ErrVerificationFailed
)
