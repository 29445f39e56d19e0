package crypto

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
)

const (
	PublicKeySize = 32
	SecretKeySize = 32
	SignatureSize = 64
)

// PublicKey is a 32-byte curve25519 public key.
type PublicKey [PublicKeySize]byte

// SecretKey is a 32-byte signing key seed.
type SecretKey [SecretKeySize]byte

// Signature is a 64-byte signature.
type Signature [SignatureSize]byte

func (k PublicKey) String() string { return base58String(k[:]) }

func (k PublicKey) Bytes() []byte {
	out := make([]byte, PublicKeySize)
	copy(out, k[:])
	return out
}

func (k PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *PublicKey) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := PublicKeyFromBase58(s)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func (s Signature) String() string { return base58String(s[:]) }

func (s Signature) Bytes() []byte {
	out := make([]byte, SignatureSize)
	copy(out, s[:])
	return out
}

func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Signature) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	v, err := SignatureFromBase58(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func PublicKeyFromBase58(s string) (PublicKey, error) {
	var k PublicKey
	b, err := DecodeBase58(s, PublicKeySize*2)
	if err != nil {
		return k, err
	}
	if len(b) != PublicKeySize {
		return k, fmt.Errorf("crypto: public key must be %d bytes, got %d", PublicKeySize, len(b))
	}
	copy(k[:], b)
	return k, nil
}

func SignatureFromBase58(s string) (Signature, error) {
	var sig Signature
	b, err := DecodeBase58(s, SignatureSize*2)
	if err != nil {
		return sig, err
	}
	if len(b) != SignatureSize {
		return sig, fmt.Errorf("crypto: signature must be %d bytes, got %d", SignatureSize, len(b))
	}
	copy(sig[:], b)
	return sig, nil
}

// GenerateKeyPair derives a key pair from a 32-byte seed.
func GenerateKeyPair(seed []byte) (PublicKey, SecretKey, error) {
	var pk PublicKey
	var sk SecretKey
	if len(seed) != SecretKeySize {
		return pk, sk, fmt.Errorf("crypto: seed must be %d bytes, got %d", SecretKeySize, len(seed))
	}
	copy(sk[:], seed)
	priv := ed25519.NewKeyFromSeed(seed)
	copy(pk[:], priv.Public().(ed25519.PublicKey))
	return pk, sk, nil
}

// Sign signs msg with the secret key.
func Sign(sk SecretKey, msg []byte) Signature {
	priv := ed25519.NewKeyFromSeed(sk[:])
	var sig Signature
	copy(sig[:], ed25519.Sign(priv, msg))
	return sig
}

// Verify reports whether sig is a valid signature of msg under pk.
func Verify(pk PublicKey, sig Signature, msg []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pk[:]), msg, sig[:])
}
