// Package order persists admitted orders and settled trades, and sums each
// order's executed amount over its recorded trades.
package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/jmoiron/sqlx"
)

// OrderRecord mirrors the orders table. Keys and ids are stored base58.
type OrderRecord struct {
	ID          string     `db:"id"`
	Sender      string     `db:"sender"`
	Matcher     string     `db:"matcher"`
	AmountAsset *string    `db:"amount_asset"` // NULL = native
	PriceAsset  *string    `db:"price_asset"`
	Side        int8       `db:"side"`
	Price       uint64     `db:"price"`
	Amount      uint64     `db:"amount"`
	MatcherFee  uint64     `db:"matcher_fee"`
	FeeAsset    *string    `db:"fee_asset"`
	Timestamp   int64      `db:"timestamp"`
	Expiration  int64      `db:"expiration"`
	Status      string     `db:"status"`
	Filled      uint64     `db:"filled"`
	ClosedAt    *time.Time `db:"closed_at"`
}

// TradeRecord mirrors the trades table; one row per settled fill.
type TradeRecord struct {
	TxID        string `db:"tx_id"`
	BuyOrderID  string `db:"buy_order_id"`
	SellOrderID string `db:"sell_order_id"`
	Price       uint64 `db:"price"`
	Amount      uint64 `db:"amount"`
	MatcherFee  uint64 `db:"matcher_fee"`
	Fee         uint64 `db:"fee"`
	Timestamp   int64  `db:"timestamp"`
}

type Repository interface {
	CreateOrder(ctx context.Context, tx *sqlx.Tx, o *model.Order, status model.OrderStatus) error
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id crypto.Digest, status model.OrderStatus) error
	GetOrderByID(ctx context.Context, tx *sqlx.Tx, id crypto.Digest) (*OrderRecord, error)
	HasOrder(ctx context.Context, tx *sqlx.Tx, id crypto.Digest) (bool, error)
	CreateTrade(ctx context.Context, tx *sqlx.Tx, trade TradeRecord) error
	SumExecuted(ctx context.Context, tx *sqlx.Tx, orderID crypto.Digest) (model.Amount, error)
	ListTradesByOrder(ctx context.Context, tx *sqlx.Tx, orderID crypto.Digest) ([]TradeRecord, error)
}

type repositoryImpl struct{}

func NewRepository(db *sqlx.DB) Repository {
	return &repositoryImpl{}
}

func assetColumn(a model.Asset) *string {
	if !a.Present {
		return nil
	}
	s := a.ID.String()
	return &s
}

func (r *repositoryImpl) CreateOrder(ctx context.Context, tx *sqlx.Tx, o *model.Order, status model.OrderStatus) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO orders (id, sender, matcher, amount_asset, price_asset, side, price, amount,
                             matcher_fee, fee_asset, timestamp, expiration, status, filled)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID().String(), o.Sender.String(), o.Matcher.String(),
		assetColumn(o.Pair.AmountAsset), assetColumn(o.Pair.PriceAsset),
		int8(o.Side), uint64(o.Price), uint64(o.Amount),
		uint64(o.MatcherFee), assetColumn(o.FeeAsset),
		o.Timestamp, o.Expiration, status.Kind.String(), uint64(status.Filled))
	return err
}

func (r *repositoryImpl) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id crypto.Digest, status model.OrderStatus) error {
	var closedAt any
	if status.Final() {
		closedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET status=$1, filled=$2, closed_at=$3 WHERE id=$4`,
		status.Kind.String(), uint64(status.Filled), closedAt, id.String())
	return err
}

func (r *repositoryImpl) GetOrderByID(ctx context.Context, tx *sqlx.Tx, id crypto.Digest) (*OrderRecord, error) {
	var rec OrderRecord
	err := tx.GetContext(ctx, &rec,
		`SELECT id, sender, matcher, amount_asset, price_asset, side, price, amount,
                matcher_fee, fee_asset, timestamp, expiration, status, filled, closed_at
         FROM orders WHERE id=$1`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repositoryImpl) HasOrder(ctx context.Context, tx *sqlx.Tx, id crypto.Digest) (bool, error) {
	var n int
	err := tx.GetContext(ctx, &n, `SELECT count(1) FROM orders WHERE id=$1`, id.String())
	return n > 0, err
}

func (r *repositoryImpl) CreateTrade(ctx context.Context, tx *sqlx.Tx, trade TradeRecord) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO trades (tx_id, buy_order_id, sell_order_id, price, amount, matcher_fee, fee, timestamp)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		trade.TxID, trade.BuyOrderID, trade.SellOrderID,
		trade.Price, trade.Amount, trade.MatcherFee, trade.Fee, trade.Timestamp)
	return err
}

func (r *repositoryImpl) SumExecuted(ctx context.Context, tx *sqlx.Tx, orderID crypto.Digest) (model.Amount, error) {
	var total uint64
	err := tx.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(amount), 0) FROM trades WHERE buy_order_id=$1 OR sell_order_id=$1`,
		orderID.String())
	return model.Amount(total), err
}

func (r *repositoryImpl) ListTradesByOrder(ctx context.Context, tx *sqlx.Tx, orderID crypto.Digest) ([]TradeRecord, error) {
	var list []TradeRecord
	err := tx.SelectContext(ctx, &list,
		`SELECT tx_id, buy_order_id, sell_order_id, price, amount, matcher_fee, fee, timestamp
         FROM trades WHERE buy_order_id=$1 OR sell_order_id=$1 ORDER BY timestamp`,
		orderID.String())
	return list, err
}
