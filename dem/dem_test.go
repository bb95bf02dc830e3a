package dem

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyIV(t *testing.T, ivSize int) (key, iv []byte) {
	t.Helper()
	key = make([]byte, KeySize)
	iv = make([]byte, ivSize)
	_, err := rand.Read(key)
	require.NoError(t, err, "Failed to generate test key")
	_, err = rand.Read(iv)
	require.NoError(t, err, "Failed to generate test IV")
	return key, iv
}

func TestAesGcmRoundTrip(t *testing.T) {
	key, iv := testKeyIV(t, IVSizeAesGcm)
	plaintext := []byte("hello")
	aad := []byte("header")

	ciphertext, tag, err := EncryptAesGcm(key, iv, plaintext, aad)
	require.NoError(t, err, "Encryption should succeed")
	assert.Equal(t, len(plaintext), len(ciphertext), "GCM ciphertext should match plaintext length")
	assert.Equal(t, TagSizeAesGcm, len(tag), "GCM tag should be 16 bytes")

	recovered, err := DecryptAesGcm(key, iv, ciphertext, tag, aad)
	require.NoError(t, err, "Decryption should succeed")
	assert.Equal(t, plaintext, recovered, "Plaintext should round-trip")
}

func TestAesGcmTamperDetection(t *testing.T) {
	key, iv := testKeyIV(t, IVSizeAesGcm)
	ciphertext, tag, err := EncryptAesGcm(key, iv, []byte("hello"), nil)
	require.NoError(t, err, "Encryption should succeed")

	tampered := append([]byte(nil), ciphertext...)
	tampered[0] ^= 1
	_, err = DecryptAesGcm(key, iv, tampered, tag, nil)
	assert.ErrorIs(t, err, ErrAuthenticationFailure, "A flipped ciphertext bit should be detected")

	badTag := append([]byte(nil), tag...)
	badTag[0] ^= 1
	_, err = DecryptAesGcm(key, iv, ciphertext, badTag, nil)
	assert.ErrorIs(t, err, ErrAuthenticationFailure, "A flipped tag bit should be detected")

	_, err = DecryptAesGcm(key, iv, ciphertext, tag, []byte("wrong aad"))
	assert.ErrorIs(t, err, ErrAuthenticationFailure, "Wrong associated data should be detected")
}

func TestHmacCtrRoundTrip(t *testing.T) {
	key, iv := testKeyIV(t, IVSizeHmacCtr)
	plaintext := []byte("stream me")
	aad := []byte("bound")

	ciphertext, tag, err := EncryptHmacCtr(key, iv, plaintext, aad)
	require.NoError(t, err, "Encryption should succeed")
	assert.Equal(t, len(plaintext), len(ciphertext), "CTR ciphertext should match plaintext length")
	assert.Equal(t, TagSizeHmacCtr, len(tag), "HMAC tag should be 32 bytes")
	assert.NotEqual(t, plaintext, ciphertext, "Ciphertext should differ from plaintext")

	recovered, err := DecryptHmacCtr(key, iv, ciphertext, tag, aad)
	require.NoError(t, err, "Decryption should succeed")
	assert.Equal(t, plaintext, recovered, "Plaintext should round-trip")
}

func TestHmacCtrTamperDetection(t *testing.T) {
	key, iv := testKeyIV(t, IVSizeHmacCtr)
	ciphertext, tag, err := EncryptHmacCtr(key, iv, []byte("stream me"), []byte("bound"))
	require.NoError(t, err, "Encryption should succeed")

	tampered := append([]byte(nil), ciphertext...)
	tampered[0] ^= 1
	_, err = DecryptHmacCtr(key, iv, tampered, tag, []byte("bound"))
	assert.ErrorIs(t, err, ErrAuthenticationFailure, "A flipped ciphertext bit should be detected")

	_, err = DecryptHmacCtr(key, iv, ciphertext, tag, []byte("other"))
	assert.ErrorIs(t, err, ErrAuthenticationFailure, "Wrong associated data should be detected")

	otherKey := make([]byte, KeySize)
	_, err = DecryptHmacCtr(otherKey, iv, ciphertext, tag, []byte("bound"))
	assert.ErrorIs(t, err, ErrAuthenticationFailure, "A wrong key should be detected")
}

func TestInvalidParameters(t *testing.T) {
	key, _ := testKeyIV(t, IVSizeAesGcm)

	_, _, err := EncryptAesGcm(key[:16], make([]byte, IVSizeAesGcm), []byte("x"), nil)
	assert.Error(t, err, "A short key should be rejected")

	_, _, err = EncryptAesGcm(key, make([]byte, 8), []byte("x"), nil)
	assert.Error(t, err, "A wrong-size GCM IV should be rejected")

	_, _, err = EncryptHmacCtr(key, make([]byte, 8), []byte("x"), nil)
	assert.Error(t, err, "A wrong-size CTR IV should be rejected")
}

func TestEmptyPlaintext(t *testing.T) {
	key, iv := testKeyIV(t, IVSizeAesGcm)

	ciphertext, tag, err := EncryptAesGcm(key, iv, nil, nil)
	require.NoError(t, err, "Encrypting an empty payload should succeed")
	assert.Empty(t, ciphertext, "Empty plaintext should yield empty ciphertext")

	recovered, err := DecryptAesGcm(key, iv, ciphertext, tag, nil)
	require.NoError(t, err, "Decryption should succeed")
	assert.Empty(t, recovered, "Empty plaintext should round-trip")
}
