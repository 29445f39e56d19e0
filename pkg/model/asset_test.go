package model

import (
	"encoding/json"
	"testing"

	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetJSON(t *testing.T) {
	b, err := json.Marshal(NativeAsset)
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	token := IssuedAsset(crypto.SHA256([]byte("token")))
	b, err = json.Marshal(token)
	require.NoError(t, err)

	var back Asset
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, token, back)

	require.NoError(t, json.Unmarshal([]byte("null"), &back))
	assert.Equal(t, NativeAsset, back)
}

func TestAssetPairValidate(t *testing.T) {
	token := IssuedAsset(crypto.SHA256([]byte("token")))
	assert.NoError(t, AssetPair{AmountAsset: token, PriceAsset: NativeAsset}.Validate())
	assert.ErrorIs(t,
		AssetPair{AmountAsset: token, PriceAsset: token}.Validate(),
		ErrInvalidAssetPair)
	assert.ErrorIs(t,
		AssetPair{}.Validate(),
		ErrInvalidAssetPair)
}

func TestSideText(t *testing.T) {
	b, err := json.Marshal(struct {
		Side Side `json:"side"`
	}{Sell})
	require.NoError(t, err)
	assert.JSONEq(t, `{"side":"sell"}`, string(b))

	var v struct {
		Side Side `json:"side"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"side":"buy"}`), &v))
	assert.Equal(t, Buy, v.Side)
}
