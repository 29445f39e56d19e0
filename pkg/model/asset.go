// Package model holds the value types shared across the matcher: assets and
// pairs, signed orders, accepted orders with their remaining quantities, and
// order statuses.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
)

// NativeAssetDecimals is the decimals value of the chain's native asset.
const NativeAssetDecimals uint8 = 8

// Asset identifies the native asset (no id) or an issued asset by its
// 32-byte id.
type Asset struct {
	ID      crypto.Digest
	Present bool
}

// NativeAsset is the zero Asset.
var NativeAsset = Asset{}

func IssuedAsset(id crypto.Digest) Asset {
	return Asset{ID: id, Present: true}
}

func (a Asset) String() string {
	if !a.Present {
		return "native"
	}
	return a.ID.String()
}

// WriteTo appends the wire form: flag byte, then the id for issued assets.
func (a Asset) WriteTo(buf *bytes.Buffer) {
	if !a.Present {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	buf.Write(a.ID[:])
}

func readAsset(r *bytes.Reader) (Asset, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return Asset{}, err
	}
	if flag == 0 {
		return NativeAsset, nil
	}
	var id crypto.Digest
	if err := readFull(r, id[:]); err != nil {
		return Asset{}, err
	}
	return IssuedAsset(id), nil
}

// MarshalJSON renders the native asset as null and issued assets as their
// base58 id.
func (a Asset) MarshalJSON() ([]byte, error) {
	if !a.Present {
		return []byte("null"), nil
	}
	return json.Marshal(a.ID.String())
}

func (a *Asset) UnmarshalJSON(b []byte) error {
	if string(b) == "null" || string(b) == `""` {
		*a = NativeAsset
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	id, err := crypto.DigestFromBase58(s)
	if err != nil {
		return err
	}
	*a = IssuedAsset(id)
	return nil
}

// AssetPair is the ordered (amountAsset, priceAsset) pair of a market. The
// price expresses priceAsset units per amountAsset unit.
type AssetPair struct {
	AmountAsset Asset
	PriceAsset  Asset
}

func (p AssetPair) Validate() error {
	if p.AmountAsset == p.PriceAsset {
		return fmt.Errorf("%w: amount and price asset are both %s", ErrInvalidAssetPair, p.AmountAsset)
	}
	return nil
}

func (p AssetPair) String() string {
	return p.AmountAsset.String() + "/" + p.PriceAsset.String()
}
