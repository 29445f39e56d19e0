package middleware

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	tbTypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"
)

// AccessClaims authorizes one client account, identified by its base58
// public key, to use the mutating endpoints.
type AccessClaims struct {
	Account string `json:"account"`
	jwt.RegisteredClaims
}

func NewAccessClaims(account string, duration time.Duration) (*AccessClaims, error) {
	tokenID := tbTypes.ID().String()
	return &AccessClaims{
		Account: account,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   account,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
		},
	}, nil
}
