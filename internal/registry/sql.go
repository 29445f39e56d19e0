package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/jmoiron/sqlx"
)

type assetRow struct {
	AssetID     *string `db:"asset_id"` // base58 digest; NULL for the native asset
	Name        string  `db:"name"`
	Description string  `db:"description"`
	Decimals    uint8   `db:"decimals"`
}

// SQLRegistry reads asset descriptions from the assets table. Reads are
// plain SELECTs on a pooled connection, safe for concurrent use.
type SQLRegistry struct {
	db *sqlx.DB
}

func NewSQLRegistry(db *sqlx.DB) *SQLRegistry {
	return &SQLRegistry{db: db}
}

func (r *SQLRegistry) AssetInfo(ctx context.Context, asset model.Asset) (*AssetInfo, error) {
	var row assetRow
	var err error
	if asset.Present {
		err = r.db.GetContext(ctx, &row,
			`SELECT asset_id, name, description, decimals FROM assets WHERE asset_id=$1`,
			asset.ID.String())
	} else {
		err = r.db.GetContext(ctx, &row,
			`SELECT asset_id, name, description, decimals FROM assets WHERE asset_id IS NULL`)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: query asset %s: %w", asset, err)
	}
	return rowToInfo(row)
}

func (r *SQLRegistry) Decimals(ctx context.Context, asset model.Asset) (uint8, error) {
	info, err := r.AssetInfo(ctx, asset)
	if err != nil {
		return 0, err
	}
	return info.Decimals, nil
}

// CreateAsset registers an issued asset.
func (r *SQLRegistry) CreateAsset(ctx context.Context, info AssetInfo) error {
	var id *string
	if info.Asset.Present {
		s := info.Asset.ID.String()
		id = &s
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO assets (asset_id, name, description, decimals) VALUES ($1,$2,$3,$4)`,
		id, info.Name, info.Description, info.Decimals)
	if err != nil {
		return fmt.Errorf("registry: insert asset %s: %w", info.Asset, err)
	}
	return nil
}

func rowToInfo(row assetRow) (*AssetInfo, error) {
	info := &AssetInfo{
		Name:        row.Name,
		Description: row.Description,
		Decimals:    row.Decimals,
	}
	if row.AssetID != nil {
		id, err := crypto.DigestFromBase58(*row.AssetID)
		if err != nil {
			return nil, fmt.Errorf("registry: stored asset id: %w", err)
		}
		info.Asset = model.IssuedAsset(id)
	}
	return info, nil
}
