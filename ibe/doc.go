// Package ibe implements the identity-based key layer of the threshold
// encryption engine.
//
// Each key server owns a master key share (a scalar) and publishes the
// matching public key share (a G2 element). Given a full identity, a server
// extracts a user secret key share that is cryptographically bound to that
// identity: the share decrypts encapsulations made for the identity under
// that server's public key share, and nothing else.
//
// The package provides:
//
//   - Full identity binding: CreateFullID combines a package identifier and
//     arbitrary identity bytes into a canonical, domain-separated 32-byte
//     value. Identities are namespaced per package.
//
//   - Key authority operations: GenerateKeyPair and GenerateSeed consume an
//     injected CSPRNG; DeriveMasterKey and KeyPairFromMaster are pure and
//     deterministic, so a single seed can drive a whole fleet of key servers.
//
//   - Extraction and verification: Extract binds a master key share to a full
//     identity; Verify checks a user secret key share against the public key
//     share and identity using a pairing equation, with no access to the
//     master secret.
//
//   - Share encapsulation: EncapsulateShare wraps an opaque byte share so
//     that only the holder of the matching user secret key share can unwrap
//     it (DecapsulateShare).
//
// All operations are stateless and safe for concurrent use. The only shared
// resource is the caller-provided random source, which is read exactly once
// per generation call. Constant-time group arithmetic is delegated to the
// underlying pairing library.
package ibe
