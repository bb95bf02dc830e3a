// Package seal implements the threshold seal/unseal protocol on top of the
// ibe key layer and the dem symmetric codec.
//
// Sealing encapsulates a fresh symmetric content key into n per-server
// shares such that any t of them reconstruct it while fewer than t carry no
// information about it, then encrypts the payload under the content key with
// the requested symmetric scheme. Unsealing reverses the process given user
// secret key shares from at least t of the listed servers.
//
// Every seal or unseal call moves through the same terminal states:
// validating the inputs, reconstructing (or splitting) the content key, and
// opening (or wrapping) the payload. Validation failures are reported before
// any cryptographic work happens, and no call retries internally.
//
// The EncryptedObject wire format is canonical and length-prefixed with a
// fixed field order, so independently produced encodings of the same object
// are byte-identical and round-trip exactly. See EncryptedObject.
package seal
