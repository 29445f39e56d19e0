// Package model holds the btree items backing the order book sides.
package model

import (
	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/google/btree"
)

// AskPriceLevel sorts ascending by price; orders within a level keep
// insertion order, which is the time-then-sequence priority.
type AskPriceLevel struct {
	Price       model.Price
	Orders      []*model.AcceptedOrder
	TotalAmount model.Amount
}

func (pl *AskPriceLevel) Less(than btree.Item) bool {
	return pl.Price < than.(*AskPriceLevel).Price
}

func (pl *AskPriceLevel) RemoveOrderByID(id crypto.Digest) *model.AcceptedOrder {
	for i, o := range pl.Orders {
		if o.Order.ID() == id {
			pl.Orders = append(pl.Orders[:i], pl.Orders[i+1:]...)
			pl.TotalAmount -= o.Amount
			return o
		}
	}
	return nil
}

// BidPriceLevel sorts descending by price.
type BidPriceLevel struct {
	Price       model.Price
	Orders      []*model.AcceptedOrder
	TotalAmount model.Amount
}

func (pl *BidPriceLevel) Less(than btree.Item) bool {
	return pl.Price > than.(*BidPriceLevel).Price
}

func (pl *BidPriceLevel) RemoveOrderByID(id crypto.Digest) *model.AcceptedOrder {
	for i, o := range pl.Orders {
		if o.Order.ID() == id {
			pl.Orders = append(pl.Orders[:i], pl.Orders[i+1:]...)
			pl.TotalAmount -= o.Amount
			return o
		}
	}
	return nil
}
