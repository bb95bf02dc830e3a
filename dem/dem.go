// Package dem implements the symmetric payload layer of the threshold
// encryption engine: the data-encapsulation mechanisms a reconstructed
// content key is fed into.
//
// Two schemes are offered. Aes256Gcm is standard authenticated encryption
// with the associated data bound into the tag. Hmac256Ctr is AES-256-CTR
// with a separate HMAC-SHA256 authenticator computed under an independent
// sub-key, useful when ciphertext and authenticator need to travel
// separately. Both fail closed: a tag mismatch returns
// ErrAuthenticationFailure and never partial plaintext.
package dem

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrAuthenticationFailure indicates a tag or MAC mismatch: wrong key,
// tampered ciphertext, or wrong associated data.
var ErrAuthenticationFailure = errors.New("authentication failure")

const (
	// KeySize is the content key size for both schemes.
	KeySize = 32

	// IVSizeAesGcm is the nonce size for the AES-256-GCM scheme.
	IVSizeAesGcm = 12

	// IVSizeHmacCtr is the counter-block size for the AES-256-CTR scheme.
	IVSizeHmacCtr = 16

	// TagSizeAesGcm is the GCM authentication tag size.
	TagSizeAesGcm = 16

	// TagSizeHmacCtr is the HMAC-SHA256 authenticator size.
	TagSizeHmacCtr = sha256.Size
)

var (
	hmacCtrEncTag = []byte("ibte-hmac-ctr-enc-v1")
	hmacCtrMacTag = []byte("ibte-hmac-ctr-mac-v1")
)

// EncryptAesGcm encrypts plaintext under key with a caller-supplied IV and
// optional associated data. Returns ciphertext and authentication tag
// separately.
func EncryptAesGcm(key, iv, plaintext, aad []byte) (ciphertext, tag []byte, err error) {
	aead, err := newGCM(key, len(iv))
	if err != nil {
		return nil, nil, err
	}
	sealed := aead.Seal(nil, iv, plaintext, aad)
	split := len(sealed) - aead.Overhead()
	return sealed[:split], sealed[split:], nil
}

// DecryptAesGcm opens an AES-256-GCM ciphertext. Any mismatch of key, IV,
// ciphertext, tag, or associated data fails with ErrAuthenticationFailure.
func DecryptAesGcm(key, iv, ciphertext, tag, aad []byte) ([]byte, error) {
	aead, err := newGCM(key, len(iv))
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := aead.Open(nil, iv, sealed, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailure, err)
	}
	return plaintext, nil
}

// EncryptHmacCtr encrypts plaintext with AES-256-CTR and authenticates
// associated data, IV, and ciphertext with HMAC-SHA256. Encryption and MAC
// sub-keys are derived independently from key.
func EncryptHmacCtr(key, iv, plaintext, aad []byte) (ciphertext, tag []byte, err error) {
	encKey, macKey, err := hmacCtrSubkeys(key)
	if err != nil {
		return nil, nil, err
	}

	stream, err := newCTR(encKey, iv)
	if err != nil {
		return nil, nil, err
	}
	ciphertext = make([]byte, len(plaintext))
	stream.XORKeyStream(ciphertext, plaintext)

	return ciphertext, hmacCtrTag(macKey, iv, ciphertext, aad), nil
}

// DecryptHmacCtr verifies the HMAC-SHA256 authenticator and, only on
// success, decrypts the ciphertext. A mismatch fails with
// ErrAuthenticationFailure before any plaintext is produced.
func DecryptHmacCtr(key, iv, ciphertext, tag, aad []byte) ([]byte, error) {
	encKey, macKey, err := hmacCtrSubkeys(key)
	if err != nil {
		return nil, err
	}

	if !hmac.Equal(tag, hmacCtrTag(macKey, iv, ciphertext, aad)) {
		return nil, ErrAuthenticationFailure
	}

	stream, err := newCTR(encKey, iv)
	if err != nil {
		return nil, err
	}
	plaintext := make([]byte, len(ciphertext))
	stream.XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}

func newGCM(key []byte, nonceSize int) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key size %d, expected %d", len(key), KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if nonceSize != IVSizeAesGcm {
		return nil, fmt.Errorf("invalid IV size %d, expected %d", nonceSize, IVSizeAesGcm)
	}
	return cipher.NewGCM(block)
}

func newCTR(key, iv []byte) (cipher.Stream, error) {
	if len(iv) != IVSizeHmacCtr {
		return nil, fmt.Errorf("invalid IV size %d, expected %d", len(iv), IVSizeHmacCtr)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewCTR(block, iv), nil
}

// hmacCtrSubkeys derives independent encryption and MAC sub-keys so that a
// MAC-key compromise cannot reveal plaintext and vice versa.
func hmacCtrSubkeys(key []byte) (encKey, macKey []byte, err error) {
	if len(key) != KeySize {
		return nil, nil, fmt.Errorf("invalid key size %d, expected %d", len(key), KeySize)
	}
	encKey = make([]byte, KeySize)
	macKey = make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, hmacCtrEncTag), encKey); err != nil {
		return nil, nil, fmt.Errorf("failed to derive encryption subkey: %w", err)
	}
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, hmacCtrMacTag), macKey); err != nil {
		return nil, nil, fmt.Errorf("failed to derive mac subkey: %w", err)
	}
	return encKey, macKey, nil
}

// hmacCtrTag authenticates length-prefixed associated data, the IV, and the
// ciphertext. The length prefix keeps (aad, iv) boundaries unambiguous.
func hmacCtrTag(macKey, iv, ciphertext, aad []byte) []byte {
	mac := hmac.New(sha256.New, macKey)
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(aad)))
	mac.Write(lenBuf[:])
	mac.Write(aad)
	mac.Write(iv)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}
