package seal

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seal-labs/ibte/ibe"
)

func sealedTestObject(t *testing.T, input Input) *EncryptedObject {
	t.Helper()
	servers := makeServers(t, 3)
	ids, pubs := serverLists(servers)

	var pkg ibe.PackageID
	pkg[31] = 9
	obj, _, err := Seal(rand.Reader, pkg, []byte("hello"), ids, pubs, 2, input)
	require.NoError(t, err, "Sealing should succeed")
	return obj
}

func TestObjectWireRoundTrip(t *testing.T) {
	for name, input := range map[string]Input{
		"aes-gcm":  Aes256Gcm{Data: []byte("payload"), AAD: []byte("ctx")},
		"hmac-ctr": Hmac256Ctr{Data: []byte("payload"), AAD: []byte("ctx")},
		"plain":    Plain{},
	} {
		t.Run(name, func(t *testing.T) {
			obj := sealedTestObject(t, input)

			encoded, err := obj.MarshalBinary()
			require.NoError(t, err, "Encoding should succeed")

			decoded, err := ParseEncryptedObject(encoded)
			require.NoError(t, err, "Decoding should succeed")
			assert.Equal(t, obj, decoded, "Object should round-trip through the wire format")

			reencoded, err := decoded.MarshalBinary()
			require.NoError(t, err, "Re-encoding should succeed")
			assert.Equal(t, encoded, reencoded, "Encoding should be canonical")
		})
	}
}

func TestObjectDecodeTruncated(t *testing.T) {
	obj := sealedTestObject(t, Aes256Gcm{Data: []byte("payload")})
	encoded, err := obj.MarshalBinary()
	require.NoError(t, err, "Encoding should succeed")

	for _, cut := range []int{1, 16, 33, len(encoded) / 2, len(encoded) - 1} {
		_, err := ParseEncryptedObject(encoded[:cut])
		assert.ErrorIs(t, err, ErrSerialization, "Truncation at %d bytes should be rejected", cut)
	}

	_, err = ParseEncryptedObject(nil)
	assert.ErrorIs(t, err, ErrSerialization, "Empty input should be rejected")
}

func TestObjectDecodeTrailingBytes(t *testing.T) {
	obj := sealedTestObject(t, Aes256Gcm{Data: []byte("payload")})
	encoded, err := obj.MarshalBinary()
	require.NoError(t, err, "Encoding should succeed")

	_, err = ParseEncryptedObject(append(encoded, 0))
	assert.ErrorIs(t, err, ErrSerialization, "Trailing bytes should be rejected")
}

func TestObjectDecodeInvalidStructure(t *testing.T) {
	obj := sealedTestObject(t, Aes256Gcm{Data: []byte("payload")})

	// Break the threshold invariant, then re-encode through the raw layout.
	broken := *obj
	broken.Threshold = 0
	encoded, err := (&broken).MarshalBinary()
	assert.Error(t, err, "Encoding an object with threshold zero should fail")
	assert.Nil(t, encoded, "No bytes should be produced for an invalid object")

	broken.Threshold = uint8(len(broken.ServerIDs) + 1)
	_, err = (&broken).MarshalBinary()
	assert.ErrorIs(t, err, ErrInvalidThreshold, "A threshold above the server count should fail validation")
}

func TestObjectValidate(t *testing.T) {
	obj := sealedTestObject(t, Aes256Gcm{Data: []byte("payload")})
	require.NoError(t, obj.Validate(), "A sealed object should validate")

	dup := *obj
	dup.ServerIDs = append([]ServerID(nil), obj.ServerIDs...)
	dup.ServerIDs[1] = dup.ServerIDs[0]
	assert.ErrorIs(t, dup.Validate(), ErrInvalidServerList, "Duplicate server ids should fail validation")

	short := *obj
	short.EncapsulatedShares = obj.EncapsulatedShares[:2]
	assert.ErrorIs(t, short.Validate(), ErrSerialization, "A share count mismatch should fail validation")

	badMode := *obj
	badMode.Mode = Mode(200)
	assert.ErrorIs(t, badMode.Validate(), ErrSerialization, "An unknown mode should fail validation")
}

func TestObjectFullIdentity(t *testing.T) {
	obj := sealedTestObject(t, Plain{})
	assert.Equal(t, ibe.CreateFullID(obj.PackageID, obj.Identity), obj.FullIdentity(),
		"FullIdentity should match the derivation from package id and identity")
}
