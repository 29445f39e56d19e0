package crypto

import (
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
)

// Encoded strings coming off the wire are length-capped before decoding so a
// hostile payload cannot force a large allocation.

func base58String(b []byte) string {
	return base58.Encode(b)
}

// EncodeBase58 renders b as a base58 string.
func EncodeBase58(b []byte) string {
	return base58.Encode(b)
}

// DecodeBase58 decodes s, rejecting inputs longer than maxLen characters.
func DecodeBase58(s string, maxLen int) ([]byte, error) {
	if len(s) > maxLen {
		return nil, fmt.Errorf("crypto: base58 string of %d chars exceeds limit %d", len(s), maxLen)
	}
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid base58: %w", err)
	}
	return b, nil
}

// EncodeBase64 renders b as a standard base64 string.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 decodes s, rejecting inputs longer than maxLen characters.
func DecodeBase64(s string, maxLen int) ([]byte, error) {
	if len(s) > maxLen {
		return nil, fmt.Errorf("crypto: base64 string of %d chars exceeds limit %d", len(s), maxLen)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid base64: %w", err)
	}
	return b, nil
}
