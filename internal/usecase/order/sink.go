package order

import (
	"context"
	"fmt"

	orderrepo "github.com/Yusufzhafir/go-dexmatcher/internal/repository/order"
	"github.com/Yusufzhafir/go-dexmatcher/internal/settlement"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// Applier posts a settlement's balance deltas to the ledger.
type Applier interface {
	ApplySettlement(ctx context.Context, diff settlement.BalanceDiff) error
}

// RecordingSink persists settled trades and their embedded orders in one
// database transaction, then applies the balance deltas to the ledger.
type RecordingSink struct {
	db      *sqlx.DB
	repo    orderrepo.Repository
	applier Applier
	log     zerolog.Logger
}

func NewRecordingSink(db *sqlx.DB, repo orderrepo.Repository, applier Applier, log zerolog.Logger) *RecordingSink {
	return &RecordingSink{
		db:      db,
		repo:    repo,
		applier: applier,
		log:     log.With().Str("component", "sink").Logger(),
	}
}

func (s *RecordingSink) RecordSettlement(ctx context.Context, tx *settlement.ExchangeTransaction, diff settlement.BalanceDiff) error {
	dbtx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sink: begin: %w", err)
	}
	defer dbtx.Rollback()

	for _, o := range []*model.Order{tx.BuyOrder, tx.SellOrder} {
		known, err := s.repo.HasOrder(ctx, dbtx, o.ID())
		if err != nil {
			return fmt.Errorf("sink: order lookup: %w", err)
		}
		if !known {
			if err := s.repo.CreateOrder(ctx, dbtx, o, model.OrderStatus{Kind: model.StatusAccepted}); err != nil {
				return fmt.Errorf("sink: persist order: %w", err)
			}
		}
	}

	if err := s.repo.CreateTrade(ctx, dbtx, orderrepo.TradeRecord{
		TxID:        tx.ID().String(),
		BuyOrderID:  tx.BuyOrder.ID().String(),
		SellOrderID: tx.SellOrder.ID().String(),
		Price:       uint64(tx.Price),
		Amount:      uint64(tx.Amount),
		MatcherFee:  uint64(tx.MatcherFee),
		Fee:         uint64(tx.Fee),
		Timestamp:   tx.Timestamp,
	}); err != nil {
		return fmt.Errorf("sink: persist trade: %w", err)
	}

	for _, o := range []*model.Order{tx.BuyOrder, tx.SellOrder} {
		filled, err := s.repo.SumExecuted(ctx, dbtx, o.ID())
		if err != nil {
			return fmt.Errorf("sink: sum executed: %w", err)
		}
		st := model.OrderStatus{Kind: model.StatusPartiallyFilled, Filled: filled}
		if filled >= o.Amount {
			st.Kind = model.StatusFilled
		}
		if err := s.repo.UpdateStatus(ctx, dbtx, o.ID(), st); err != nil {
			return fmt.Errorf("sink: update status: %w", err)
		}
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("sink: commit: %w", err)
	}

	if s.applier != nil {
		if err := s.applier.ApplySettlement(ctx, diff); err != nil {
			return fmt.Errorf("sink: apply balances: %w", err)
		}
	}
	s.log.Info().
		Str("tx", tx.ID().String()).
		Uint64("amount", uint64(tx.Amount)).
		Uint64("price", uint64(tx.Price)).
		Msg("trade settled")
	return nil
}
