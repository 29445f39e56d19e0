package registry

import (
	"context"
	"testing"

	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticRegistryNativeAlwaysKnown(t *testing.T) {
	r := NewStaticRegistry()
	dec, err := r.Decimals(context.Background(), model.NativeAsset)
	require.NoError(t, err)
	assert.Equal(t, model.NativeAssetDecimals, dec)
}

func TestStaticRegistryIssuedAssets(t *testing.T) {
	token := model.IssuedAsset(crypto.SHA256([]byte("token")))
	r := NewStaticRegistry(AssetInfo{Asset: token, Name: "TOKEN", Decimals: 2})

	info, err := r.AssetInfo(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "TOKEN", info.Name)
	assert.Equal(t, uint8(2), info.Decimals)

	unknown := model.IssuedAsset(crypto.SHA256([]byte("other")))
	_, err = r.AssetInfo(context.Background(), unknown)
	assert.ErrorIs(t, err, ErrUnknownAsset)
}

func TestStaticRegistryRegisterBounds(t *testing.T) {
	r := NewStaticRegistry()
	token := model.IssuedAsset(crypto.SHA256([]byte("t")))
	assert.Error(t, r.Register(AssetInfo{Asset: token, Decimals: 9}))
	assert.NoError(t, r.Register(AssetInfo{Asset: token, Decimals: 8}))
}
