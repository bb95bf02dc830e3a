package seal

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seal-labs/ibte/ibe"
)

type testServer struct {
	id     ServerID
	master ibe.MasterKeyShare
	public ibe.PublicKeyShare
}

func makeServers(t *testing.T, n int) []testServer {
	t.Helper()
	servers := make([]testServer, n)
	for i := range servers {
		master, public, err := ibe.GenerateKeyPair(rand.Reader)
		require.NoError(t, err, "Failed to generate server key pair")
		id, err := RandomServerID(rand.Reader)
		require.NoError(t, err, "Failed to generate server id")
		servers[i] = testServer{id: id, master: master, public: public}
	}
	return servers
}

func serverLists(servers []testServer) ([]ServerID, []ibe.PublicKeyShare) {
	ids := make([]ServerID, len(servers))
	pubs := make([]ibe.PublicKeyShare, len(servers))
	for i, s := range servers {
		ids[i] = s.id
		pubs[i] = s.public
	}
	return ids, pubs
}

// extractShares collects key shares from the given subset of servers for the
// object's full identity.
func extractShares(obj *EncryptedObject, servers []testServer, subset ...int) map[ServerID]ibe.UserSecretKeyShare {
	fullID := obj.FullIdentity()
	shares := make(map[ServerID]ibe.UserSecretKeyShare, len(subset))
	for _, i := range subset {
		shares[servers[i].id] = ibe.Extract(servers[i].master, fullID)
	}
	return shares
}

func TestSealUnsealThresholdSubsets(t *testing.T) {
	servers := makeServers(t, 3)
	ids, pubs := serverLists(servers)

	var pkg ibe.PackageID
	pkg[0] = 7
	plaintext := []byte("secret")

	obj, key, err := Seal(rand.Reader, pkg, []byte("hello"), ids, pubs, 2, Aes256Gcm{Data: plaintext})
	require.NoError(t, err, "Sealing should succeed")
	assert.Nil(t, key, "Payload modes should not return a content key")

	// Every 2-of-3 subset and the full set should unseal.
	for _, subset := range [][]int{{0, 1}, {0, 2}, {1, 2}, {0, 1, 2}} {
		recovered, err := Unseal(obj, extractShares(obj, servers, subset...), nil)
		require.NoError(t, err, "Unsealing with subset %v should succeed", subset)
		assert.Equal(t, plaintext, recovered, "Plaintext should round-trip with subset %v", subset)
	}
}

func TestUnsealInsufficientShares(t *testing.T) {
	servers := makeServers(t, 3)
	ids, pubs := serverLists(servers)

	var pkg ibe.PackageID
	obj, _, err := Seal(rand.Reader, pkg, []byte("hello"), ids, pubs, 2, Aes256Gcm{Data: []byte("secret")})
	require.NoError(t, err, "Sealing should succeed")

	_, err = Unseal(obj, extractShares(obj, servers, 1), nil)
	assert.ErrorIs(t, err, ErrInsufficientShares, "One share should not meet a threshold of two")

	_, err = Unseal(obj, nil, nil)
	assert.ErrorIs(t, err, ErrInsufficientShares, "No shares should not meet the threshold")
}

func TestUnsealUnknownServer(t *testing.T) {
	servers := makeServers(t, 2)
	ids, pubs := serverLists(servers)
	outsider := makeServers(t, 1)[0]

	var pkg ibe.PackageID
	obj, _, err := Seal(rand.Reader, pkg, []byte("hello"), ids, pubs, 2, Aes256Gcm{Data: []byte("secret")})
	require.NoError(t, err, "Sealing should succeed")

	shares := extractShares(obj, servers, 0, 1)
	shares[outsider.id] = ibe.Extract(outsider.master, obj.FullIdentity())

	_, err = Unseal(obj, shares, nil)
	assert.ErrorIs(t, err, ErrUnknownServer, "A share from a server outside the object's set should be rejected")
}

func TestUnsealTamperDetection(t *testing.T) {
	servers := makeServers(t, 3)
	ids, pubs := serverLists(servers)

	var pkg ibe.PackageID
	obj, _, err := Seal(rand.Reader, pkg, []byte("hello"), ids, pubs, 2, Aes256Gcm{Data: []byte("secret"), AAD: []byte("ctx")})
	require.NoError(t, err, "Sealing should succeed")
	shares := extractShares(obj, servers, 0, 1)

	tamperedCt := *obj
	tamperedCt.Ciphertext = append([]byte(nil), obj.Ciphertext...)
	tamperedCt.Ciphertext[0] ^= 1
	_, err = Unseal(&tamperedCt, shares, nil)
	assert.ErrorIs(t, err, ErrAuthenticationFailure, "A flipped ciphertext bit should be detected")

	tamperedTag := *obj
	tamperedTag.Tag = append([]byte(nil), obj.Tag...)
	tamperedTag.Tag[0] ^= 1
	_, err = Unseal(&tamperedTag, shares, nil)
	assert.ErrorIs(t, err, ErrAuthenticationFailure, "A flipped tag bit should be detected")

	tamperedAAD := *obj
	tamperedAAD.AAD = append([]byte(nil), obj.AAD...)
	tamperedAAD.AAD[0] ^= 1
	_, err = Unseal(&tamperedAAD, shares, nil)
	assert.ErrorIs(t, err, ErrAuthenticationFailure, "Tampered associated data should be detected")
}

func TestSealHmacCtrMode(t *testing.T) {
	servers := makeServers(t, 3)
	ids, pubs := serverLists(servers)

	var pkg ibe.PackageID
	plaintext := []byte("stream sealed payload")
	obj, key, err := Seal(rand.Reader, pkg, []byte("hello"), ids, pubs, 2, Hmac256Ctr{Data: plaintext, AAD: []byte("ctx")})
	require.NoError(t, err, "Sealing should succeed")
	assert.Nil(t, key, "Payload modes should not return a content key")
	assert.Equal(t, ModeHmac256Ctr, obj.Mode, "Object should record the HMAC-CTR mode")

	recovered, err := Unseal(obj, extractShares(obj, servers, 0, 2), nil)
	require.NoError(t, err, "Unsealing should succeed")
	assert.Equal(t, plaintext, recovered, "Plaintext should round-trip")

	tampered := *obj
	tampered.Ciphertext = append([]byte(nil), obj.Ciphertext...)
	tampered.Ciphertext[0] ^= 1
	_, err = Unseal(&tampered, extractShares(obj, servers, 0, 2), nil)
	assert.ErrorIs(t, err, ErrAuthenticationFailure, "A flipped ciphertext bit should be detected")
}

func TestSealPlainMode(t *testing.T) {
	servers := makeServers(t, 3)
	ids, pubs := serverLists(servers)

	var pkg ibe.PackageID
	obj, key, err := Seal(rand.Reader, pkg, []byte("hello"), ids, pubs, 2, Plain{})
	require.NoError(t, err, "Sealing should succeed")
	require.NotNil(t, key, "Plain mode should return the content key")
	assert.Len(t, key, 32, "Content key should be 32 bytes")
	assert.Empty(t, obj.Ciphertext, "Plain objects carry no payload")

	recovered, err := Unseal(obj, extractShares(obj, servers, 1, 2), nil)
	require.NoError(t, err, "Unsealing should succeed")
	assert.Equal(t, key, recovered, "Unsealing a plain object should re-derive the sealed content key")
}

func TestSealThresholdOne(t *testing.T) {
	servers := makeServers(t, 2)
	ids, pubs := serverLists(servers)

	var pkg ibe.PackageID
	plaintext := []byte("low threshold")
	obj, _, err := Seal(rand.Reader, pkg, []byte("hello"), ids, pubs, 1, Aes256Gcm{Data: plaintext})
	require.NoError(t, err, "Sealing with threshold one should succeed")

	for i := range servers {
		recovered, err := Unseal(obj, extractShares(obj, servers, i), nil)
		require.NoError(t, err, "Any single share should unseal at threshold one")
		assert.Equal(t, plaintext, recovered, "Plaintext should round-trip")
	}
}

func TestSealConfigRejection(t *testing.T) {
	servers := makeServers(t, 3)
	ids, pubs := serverLists(servers)
	var pkg ibe.PackageID
	input := Aes256Gcm{Data: []byte("x")}

	_, _, err := Seal(rand.Reader, pkg, []byte("id"), ids, pubs, 0, input)
	assert.ErrorIs(t, err, ErrInvalidThreshold, "Threshold zero should be rejected")

	_, _, err = Seal(rand.Reader, pkg, []byte("id"), ids, pubs, 4, input)
	assert.ErrorIs(t, err, ErrInvalidThreshold, "Threshold above the server count should be rejected")

	_, _, err = Seal(rand.Reader, pkg, []byte("id"), nil, nil, 1, input)
	assert.ErrorIs(t, err, ErrInvalidServerList, "An empty server list should be rejected")

	dup := []ServerID{ids[0], ids[0], ids[1]}
	_, _, err = Seal(rand.Reader, pkg, []byte("id"), dup, pubs, 2, input)
	assert.ErrorIs(t, err, ErrInvalidServerList, "Duplicate server ids should be rejected")

	_, _, err = Seal(rand.Reader, pkg, []byte("id"), ids, pubs[:2], 2, input)
	assert.ErrorIs(t, err, ErrInvalidServerList, "Mismatched server and public key counts should be rejected")
}

func TestUnsealDropsInvalidShares(t *testing.T) {
	servers := makeServers(t, 3)
	ids, pubs := serverLists(servers)

	var pkg ibe.PackageID
	plaintext := []byte("secret")
	obj, _, err := Seal(rand.Reader, pkg, []byte("hello"), ids, pubs, 2, Aes256Gcm{Data: plaintext})
	require.NoError(t, err, "Sealing should succeed")

	publicKeys := make(map[ServerID]ibe.PublicKeyShare, len(servers))
	for _, s := range servers {
		publicKeys[s.id] = s.public
	}

	// Server 0 returns a share bound to the wrong identity. With two honest
	// servers the threshold is still met after dropping it.
	wrongID := ibe.CreateFullID(pkg, []byte("mallory"))
	shares := extractShares(obj, servers, 1, 2)
	shares[servers[0].id] = ibe.Extract(servers[0].master, wrongID)

	recovered, err := Unseal(obj, shares, publicKeys)
	require.NoError(t, err, "Unsealing should succeed after dropping the invalid share")
	assert.Equal(t, plaintext, recovered, "Plaintext should round-trip")

	// With only one honest server left the invalid share drops the count
	// below the threshold.
	shares = extractShares(obj, servers, 1)
	shares[servers[0].id] = ibe.Extract(servers[0].master, wrongID)

	_, err = Unseal(obj, shares, publicKeys)
	assert.ErrorIs(t, err, ErrInsufficientShares, "Dropped shares should count against the threshold")
	assert.Contains(t, err.Error(), servers[0].id.Hex(), "The rejected server should be reported")
}

func TestUnsealIdentityBinding(t *testing.T) {
	servers := makeServers(t, 2)
	ids, pubs := serverLists(servers)

	var pkgA, pkgB ibe.PackageID
	pkgA[0], pkgB[0] = 1, 2

	obj, _, err := Seal(rand.Reader, pkgA, []byte("hello"), ids, pubs, 2, Aes256Gcm{Data: []byte("secret")})
	require.NoError(t, err, "Sealing should succeed")

	// Shares extracted for the same identity string under another package
	// must not open the object.
	otherFullID := ibe.CreateFullID(pkgB, []byte("hello"))
	shares := make(map[ServerID]ibe.UserSecretKeyShare, len(servers))
	for _, s := range servers {
		shares[s.id] = ibe.Extract(s.master, otherFullID)
	}

	_, err = Unseal(obj, shares, nil)
	assert.ErrorIs(t, err, ErrAuthenticationFailure, "Shares for a different package should not unseal the object")
}

func TestSealFailingEntropy(t *testing.T) {
	servers := makeServers(t, 2)
	ids, pubs := serverLists(servers)

	var pkg ibe.PackageID
	_, _, err := Seal(failingReader{}, pkg, []byte("hello"), ids, pubs, 2, Aes256Gcm{Data: []byte("secret")})
	require.Error(t, err, "Sealing should fail with a broken entropy source")
	assert.ErrorIs(t, err, ibe.ErrRandomness, "Failure should be tagged as a randomness error")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, assert.AnError
}
