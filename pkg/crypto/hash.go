// Package crypto bundles the hashing, signing and encoding primitives the
// matcher relies on: 32-byte digests, curve25519 keys with 64-byte
// signatures, bounded base58/base64 codecs and merkle proof verification.
package crypto

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

const DigestSize = 32

// Digest is a 32-byte hash value. Renders as base58 in text form.
type Digest [DigestSize]byte

func (d Digest) String() string {
	return base58.Encode(d[:])
}

func (d Digest) Bytes() []byte {
	out := make([]byte, DigestSize)
	copy(out, d[:])
	return out
}

func (d Digest) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Digest) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := DigestFromBase58(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func NewDigest(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, fmt.Errorf("crypto: digest must be %d bytes, got %d", DigestSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}

func DigestFromBase58(s string) (Digest, error) {
	b, err := DecodeBase58(s, DigestSize*2)
	if err != nil {
		return Digest{}, err
	}
	return NewDigest(b)
}

// SHA256 hashes the concatenation of the given byte slices.
func SHA256(b ...[]byte) Digest {
	h := sha256.New()
	for _, e := range b {
		h.Write(e)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// Blake2b256 hashes the concatenation of the given byte slices.
func Blake2b256(b ...[]byte) Digest {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only fails for a bad key, and we pass none
		panic(err)
	}
	for _, e := range b {
		h.Write(e)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// Keccak256 hashes the concatenation of the given byte slices with the
// legacy (pre-NIST) Keccak permutation.
func Keccak256(b ...[]byte) Digest {
	h := sha3.NewLegacyKeccak256()
	for _, e := range b {
		h.Write(e)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}
