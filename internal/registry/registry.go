// Package registry resolves per-asset decimal precision and descriptions.
// The registry is a shared read-only collaborator: implementations must be
// safe for concurrent snapshot reads.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/money"
)

// ErrUnknownAsset wraps lookups of assets the registry has no record of.
var ErrUnknownAsset = errors.New("registry: unknown asset")

// AssetInfo describes one known asset.
type AssetInfo struct {
	Asset       model.Asset
	Name        string
	Description string
	Decimals    uint8
}

// Registry is the read interface the matcher depends on.
type Registry interface {
	// AssetInfo resolves a single asset; ErrUnknownAsset wraps unknown ids.
	AssetInfo(ctx context.Context, asset model.Asset) (*AssetInfo, error)
	// Decimals is a shortcut for the precision of an asset.
	Decimals(ctx context.Context, asset model.Asset) (uint8, error)
}

// StaticRegistry serves an in-memory asset set that Register can extend. The
// native asset is always present.
type StaticRegistry struct {
	mu     sync.RWMutex
	assets map[model.Asset]AssetInfo
}

func NewStaticRegistry(assets ...AssetInfo) *StaticRegistry {
	r := &StaticRegistry{assets: make(map[model.Asset]AssetInfo, len(assets)+1)}
	r.assets[model.NativeAsset] = AssetInfo{
		Asset:    model.NativeAsset,
		Name:     "native",
		Decimals: model.NativeAssetDecimals,
	}
	for _, a := range assets {
		r.assets[a.Asset] = a
	}
	return r
}

// Register adds or replaces an asset description.
func (r *StaticRegistry) Register(info AssetInfo) error {
	if info.Decimals > money.MaxDecimals {
		return fmt.Errorf("registry: decimals %d out of range for %s", info.Decimals, info.Asset)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[info.Asset] = info
	return nil
}

func (r *StaticRegistry) AssetInfo(_ context.Context, asset model.Asset) (*AssetInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.assets[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	return &info, nil
}

func (r *StaticRegistry) Decimals(ctx context.Context, asset model.Asset) (uint8, error) {
	info, err := r.AssetInfo(ctx, asset)
	if err != nil {
		return 0, err
	}
	return info.Decimals, nil
}
