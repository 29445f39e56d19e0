package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSHA256KnownVector(t *testing.T) {
	d := SHA256([]byte("abc"))
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		hex.EncodeToString(d[:]))

	// Concatenation hashes the same as a single write.
	assert.Equal(t, SHA256([]byte("abc")), SHA256([]byte("a"), []byte("bc")))
}

func TestBlake2b256KnownVector(t *testing.T) {
	d := Blake2b256([]byte("abc"))
	assert.Equal(t,
		"bddd813c634239723171ef3fee98579b94964e3bb1cb3e427262c8c068d52319",
		hex.EncodeToString(d[:]))
}

func TestKeccak256KnownVector(t *testing.T) {
	d := Keccak256([]byte(""))
	assert.Equal(t,
		"c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		hex.EncodeToString(d[:]))
}

func TestBase58RoundTrip(t *testing.T) {
	payload := []byte{0, 1, 2, 255, 254, 128, 7}
	s := EncodeBase58(payload)
	back, err := DecodeBase58(s, 100)
	require.NoError(t, err)
	assert.Equal(t, payload, back)

	_, err = DecodeBase58(s, 2)
	assert.Error(t, err)

	_, err = DecodeBase58("0OIl", 10) // characters outside the alphabet
	assert.Error(t, err)
}

func TestBase64RoundTrip(t *testing.T) {
	payload := []byte("binary \x00 payload")
	s := EncodeBase64(payload)
	back, err := DecodeBase64(s, 100)
	require.NoError(t, err)
	assert.Equal(t, payload, back)

	_, err = DecodeBase64(s, 3)
	assert.Error(t, err)
}

func TestSignVerify(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, SecretKeySize)
	pk, sk, err := GenerateKeyPair(seed)
	require.NoError(t, err)

	msg := []byte("settle this")
	sig := Sign(sk, msg)
	assert.True(t, Verify(pk, sig, msg))
	assert.False(t, Verify(pk, sig, []byte("settle that")))

	var tampered Signature
	copy(tampered[:], sig[:])
	tampered[0] ^= 1
	assert.False(t, Verify(pk, tampered, msg))

	otherPK, _, err := GenerateKeyPair(bytes.Repeat([]byte{8}, SecretKeySize))
	require.NoError(t, err)
	assert.False(t, Verify(otherPK, sig, msg))
}

func TestKeyPairDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{42}, SecretKeySize)
	pk1, _, err := GenerateKeyPair(seed)
	require.NoError(t, err)
	pk2, _, err := GenerateKeyPair(seed)
	require.NoError(t, err)
	assert.Equal(t, pk1, pk2)

	_, _, err = GenerateKeyPair([]byte("short"))
	assert.Error(t, err)
}

func TestDigestBase58RoundTrip(t *testing.T) {
	d := SHA256([]byte("id"))
	back, err := DigestFromBase58(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, back)
}

func TestMerkleProof(t *testing.T) {
	// Two-leaf tree: root = H(leaf0 || leaf1).
	leaf0 := SHA256([]byte("left"))
	leaf1 := SHA256([]byte("right"))
	root := SHA256(leaf0[:], leaf1[:])

	// Prove leaf0: sibling leaf1 sits on the right.
	proof := append(leaf1.Bytes(), 1)
	ok, err := VerifyMerkleProof(root, leaf0, proof)
	require.NoError(t, err)
	assert.True(t, ok)

	// Prove leaf1: sibling leaf0 sits on the left.
	proof = append(leaf0.Bytes(), 0)
	ok, err = VerifyMerkleProof(root, leaf1, proof)
	require.NoError(t, err)
	assert.True(t, ok)

	// Wrong side byte fails.
	proof = append(leaf1.Bytes(), 0)
	ok, err = VerifyMerkleProof(root, leaf0, proof)
	require.NoError(t, err)
	assert.False(t, ok)

	// Malformed length is an error.
	_, err = VerifyMerkleProof(root, leaf0, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestMerkleProofTwoLevels(t *testing.T) {
	leaves := make([]Digest, 4)
	for i := range leaves {
		leaves[i] = SHA256([]byte{byte(i)})
	}
	n01 := SHA256(leaves[0][:], leaves[1][:])
	n23 := SHA256(leaves[2][:], leaves[3][:])
	root := SHA256(n01[:], n23[:])

	// Prove leaves[2]: sibling leaves[3] right, then n01 left.
	proof := append(leaves[3].Bytes(), n01.Bytes()...)
	proof = append(proof, 1, 0)
	ok, err := VerifyMerkleProof(root, leaves[2], proof)
	require.NoError(t, err)
	assert.True(t, ok)

	// An empty proof only verifies the root itself.
	ok, err = VerifyMerkleProof(root, root, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}
