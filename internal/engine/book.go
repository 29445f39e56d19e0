// Package engine implements the per-pair order book and the matching loop
// that pairs submitted orders against the best resting counter-orders.
package engine

import (
	"fmt"

	enginemodel "github.com/Yusufzhafir/go-dexmatcher/internal/engine/model"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/money"
	"github.com/google/btree"
)

const btreeDegree = 32

// OrderBook keeps resting limit orders of one pair in price-time priority.
// It owns its entries exclusively; everything handed out is a copy or an
// immutable pointer.
type OrderBook struct {
	pair model.AssetPair

	bids, asks *btree.BTree
	byID       map[crypto.Digest]model.Side
}

func NewOrderBook(pair model.AssetPair) *OrderBook {
	return &OrderBook{
		pair: pair,
		bids: btree.New(btreeDegree),
		asks: btree.New(btreeDegree),
		byID: make(map[crypto.Digest]model.Side),
	}
}

func (b *OrderBook) Pair() model.AssetPair { return b.pair }

// Len is the number of resting orders across both sides.
func (b *OrderBook) Len() int { return len(b.byID) }

// Add rests a limit order on its own side. The caller guarantees the
// remainder is at or above the dust floor for its price.
func (b *OrderBook) Add(o *model.AcceptedOrder) error {
	if o.Market {
		return fmt.Errorf("market order %s cannot rest", o.ID())
	}
	if o.Amount == 0 {
		return fmt.Errorf("empty order %s cannot rest", o.ID())
	}
	id := o.Order.ID()
	if _, ok := b.byID[id]; ok {
		return fmt.Errorf("%w: %s", model.ErrDuplicateOrder, o.ID())
	}
	switch o.Side() {
	case model.Buy:
		key := &enginemodel.BidPriceLevel{Price: o.Price()}
		level, ok := b.bids.Get(key).(*enginemodel.BidPriceLevel)
		if !ok || level == nil {
			level = key
			b.bids.ReplaceOrInsert(level)
		}
		level.Orders = append(level.Orders, o)
		level.TotalAmount += o.Amount
	case model.Sell:
		key := &enginemodel.AskPriceLevel{Price: o.Price()}
		level, ok := b.asks.Get(key).(*enginemodel.AskPriceLevel)
		if !ok || level == nil {
			level = key
			b.asks.ReplaceOrInsert(level)
		}
		level.Orders = append(level.Orders, o)
		level.TotalAmount += o.Amount
	}
	b.byID[id] = o.Side()
	return nil
}

// Best peeks the highest-priority resting order on the given side, or nil.
func (b *OrderBook) Best(side model.Side) *model.AcceptedOrder {
	if side == model.Buy {
		if b.bids.Len() == 0 {
			return nil
		}
		return b.bids.Min().(*enginemodel.BidPriceLevel).Orders[0]
	}
	if b.asks.Len() == 0 {
		return nil
	}
	return b.asks.Min().(*enginemodel.AskPriceLevel).Orders[0]
}

// PopBest removes and returns the highest-priority resting order on the
// given side, or nil for an empty side.
func (b *OrderBook) PopBest(side model.Side) *model.AcceptedOrder {
	if side == model.Buy {
		if b.bids.Len() == 0 {
			return nil
		}
		level := b.bids.Min().(*enginemodel.BidPriceLevel)
		o := level.Orders[0]
		level.Orders = level.Orders[1:]
		level.TotalAmount -= o.Amount
		if len(level.Orders) == 0 {
			b.bids.Delete(level)
		}
		delete(b.byID, o.Order.ID())
		return o
	}
	if b.asks.Len() == 0 {
		return nil
	}
	level := b.asks.Min().(*enginemodel.AskPriceLevel)
	o := level.Orders[0]
	level.Orders = level.Orders[1:]
	level.TotalAmount -= o.Amount
	if len(level.Orders) == 0 {
		b.asks.Delete(level)
	}
	delete(b.byID, o.Order.ID())
	return o
}

// ReplaceBest swaps the highest-priority order on the given side for its
// remainder, keeping its queue position. The remainder must carry the same
// price and id.
func (b *OrderBook) ReplaceBest(side model.Side, remainder *model.AcceptedOrder) error {
	cur := b.Best(side)
	if cur == nil {
		return fmt.Errorf("%w: no resting order on %s side", model.ErrOrderNotFound, side)
	}
	if cur.Order.ID() != remainder.Order.ID() {
		return fmt.Errorf("remainder id %s does not match resting %s", remainder.ID(), cur.ID())
	}
	if side == model.Buy {
		level := b.bids.Min().(*enginemodel.BidPriceLevel)
		level.TotalAmount -= cur.Amount - remainder.Amount
		level.Orders[0] = remainder
		return nil
	}
	level := b.asks.Min().(*enginemodel.AskPriceLevel)
	level.TotalAmount += remainder.Amount - cur.Amount
	level.Orders[0] = remainder
	return nil
}

// Cancel removes the identified resting order from the book.
func (b *OrderBook) Cancel(id crypto.Digest) (*model.AcceptedOrder, error) {
	side, ok := b.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrOrderNotFound, id)
	}
	var removed *model.AcceptedOrder
	var emptied btree.Item
	if side == model.Buy {
		b.bids.Ascend(func(item btree.Item) bool {
			level := item.(*enginemodel.BidPriceLevel)
			if o := level.RemoveOrderByID(id); o != nil {
				removed = o
				if len(level.Orders) == 0 {
					emptied = level
				}
				return false
			}
			return true
		})
		if emptied != nil {
			b.bids.Delete(emptied)
		}
	} else {
		b.asks.Ascend(func(item btree.Item) bool {
			level := item.(*enginemodel.AskPriceLevel)
			if o := level.RemoveOrderByID(id); o != nil {
				removed = o
				if len(level.Orders) == 0 {
					emptied = level
				}
				return false
			}
			return true
		})
		if emptied != nil {
			b.asks.Delete(emptied)
		}
	}
	if removed == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrOrderNotFound, id)
	}
	delete(b.byID, id)
	return removed, nil
}

// Levels aggregates one side by price. Bids come highest first, asks lowest
// first.
func (b *OrderBook) Levels(side model.Side) []model.LevelAgg {
	var out []model.LevelAgg
	if side == model.Buy {
		b.bids.Ascend(func(item btree.Item) bool {
			level := item.(*enginemodel.BidPriceLevel)
			out = append(out, model.LevelAgg{Price: level.Price, Amount: level.TotalAmount})
			return true
		})
		return out
	}
	b.asks.Ascend(func(item btree.Item) bool {
		level := item.(*enginemodel.AskPriceLevel)
		out = append(out, model.LevelAgg{Price: level.Price, Amount: level.TotalAmount})
		return true
	})
	return out
}

// Depth snapshots both sides at the given timestamp.
func (b *OrderBook) Depth(ts int64) model.MarketDepth {
	return model.MarketDepth{
		Bids:      b.Levels(model.Buy),
		Asks:      b.Levels(model.Sell),
		Timestamp: ts,
	}
}

// Top returns the best level of each side.
func (b *OrderBook) Top() model.TopOfBook {
	var top model.TopOfBook
	if b.bids.Len() > 0 {
		level := b.bids.Min().(*enginemodel.BidPriceLevel)
		top.BestBid = &model.LevelAgg{Price: level.Price, Amount: level.TotalAmount}
	}
	if b.asks.Len() > 0 {
		level := b.asks.Min().(*enginemodel.AskPriceLevel)
		top.BestAsk = &model.LevelAgg{Price: level.Price, Amount: level.TotalAmount}
	}
	return top
}

// Resting walks every resting order, bids then asks, in priority order.
func (b *OrderBook) Resting(visit func(*model.AcceptedOrder) bool) {
	stop := false
	b.bids.Ascend(func(item btree.Item) bool {
		for _, o := range item.(*enginemodel.BidPriceLevel).Orders {
			if !visit(o) {
				stop = true
				return false
			}
		}
		return true
	})
	if stop {
		return
	}
	b.asks.Ascend(func(item btree.Item) bool {
		for _, o := range item.(*enginemodel.AskPriceLevel).Orders {
			if !visit(o) {
				return false
			}
		}
		return true
	})
}

// checkRestable enforces the dust-floor invariant for resting orders.
func checkRestable(o *model.AcceptedOrder) bool {
	floor, err := money.MinAmountForPrice(uint64(o.Price()))
	if err != nil {
		return false
	}
	return uint64(o.Amount) >= floor
}
