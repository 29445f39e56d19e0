package crypto

import "fmt"

// VerifyMerkleProof checks a serialized merkle proof of leaf against root.
//
// The serialized form is n 32-byte sibling digests followed by n side bytes,
// one per level bottom-up: 0 places the sibling on the left, any other value
// on the right. Parent digests are SHA-256 over the concatenated children.
func VerifyMerkleProof(root, leaf Digest, proof []byte) (bool, error) {
	if len(proof)%(DigestSize+1) != 0 {
		return false, fmt.Errorf("crypto: merkle proof length %d is not a whole number of levels", len(proof))
	}
	levels := len(proof) / (DigestSize + 1)
	sides := proof[levels*DigestSize:]

	cur := leaf
	for i := 0; i < levels; i++ {
		sibling := proof[i*DigestSize : (i+1)*DigestSize]
		if sides[i] == 0 {
			cur = SHA256(sibling, cur[:])
		} else {
			cur = SHA256(cur[:], sibling)
		}
	}
	return cur == root, nil
}
