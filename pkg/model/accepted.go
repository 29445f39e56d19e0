package model

import (
	"fmt"

	"github.com/Yusufzhafir/go-dexmatcher/pkg/money"
)

// AcceptedOrder is an order admitted by the matcher together with its
// remaining executable amount and the fee proportionate to it. Market orders
// additionally carry the cap on spent-asset balance the matcher may consume.
type AcceptedOrder struct {
	Amount Amount // remaining amount-asset quantity
	Fee    Amount // remaining matcher fee
	Order  *Order

	Market               bool
	AvailableForSpending Amount // market orders only
}

// NewLimitOrder wraps a freshly admitted limit order.
func NewLimitOrder(o *Order) *AcceptedOrder {
	return &AcceptedOrder{Amount: o.Amount, Fee: o.MatcherFee, Order: o}
}

// NewMarketOrder wraps a market order with an explicit spendable cap.
func NewMarketOrder(o *Order, available Amount) *AcceptedOrder {
	return &AcceptedOrder{
		Amount:               o.Amount,
		Fee:                  o.MatcherFee,
		Order:                o,
		Market:               true,
		AvailableForSpending: available,
	}
}

// NewMarketOrderFromBalance caps a market order's spending by the sender's
// tradable balance in the spent asset, never above what a limit order of the
// same size would lock.
func NewMarketOrderFromBalance(o *Order, tradable func(Asset) (Amount, error)) (*AcceptedOrder, error) {
	limit := NewLimitOrder(o)
	required, err := limit.RequiredBalance()
	if err != nil {
		return nil, err
	}
	spendAsset := o.SpendAsset()
	balance, err := tradable(spendAsset)
	if err != nil {
		return nil, err
	}
	afs := min(balance, required[spendAsset])
	return NewMarketOrder(o, afs), nil
}

// Partial returns a copy with reduced remainders. The receiver is untouched.
func (a *AcceptedOrder) Partial(amount, fee Amount) *AcceptedOrder {
	p := *a
	p.Amount = amount
	p.Fee = fee
	return &p
}

// WithAvailableForSpending returns a copy with the spendable cap replaced.
func (a *AcceptedOrder) WithAvailableForSpending(afs Amount) *AcceptedOrder {
	p := *a
	p.AvailableForSpending = afs
	return &p
}

func (a *AcceptedOrder) ID() string   { return a.Order.ID().String() }
func (a *AcceptedOrder) Side() Side   { return a.Order.Side }
func (a *AcceptedOrder) Price() Price { return a.Order.Price }
func (a *AcceptedOrder) SpendAsset() Asset {
	return a.Order.SpendAsset()
}
func (a *AcceptedOrder) ReceiveAsset() Asset {
	return a.Order.ReceiveAsset()
}
func (a *AcceptedOrder) FeeAsset() Asset { return a.Order.FeeAsset }

// AmountOfAmountAsset is the remaining amount trimmed of dust at the order's
// own price.
func (a *AcceptedOrder) AmountOfAmountAsset() (Amount, error) {
	v, err := money.Correct(uint64(a.Amount), uint64(a.Order.Price))
	return Amount(v), err
}

// AmountOfPriceAsset is the price-asset total the remaining amount settles
// to at the order's own price.
func (a *AcceptedOrder) AmountOfPriceAsset() (Amount, error) {
	v, err := money.Cost(uint64(a.Amount), uint64(a.Order.Price))
	return Amount(v), err
}

// SpendAmountAt is how much spent asset a fill of the full remainder at the
// given price would cost this order.
func (a *AcceptedOrder) SpendAmountAt(price Price) (Amount, error) {
	if a.Order.Side == Buy {
		v, err := money.Cost(uint64(a.Amount), uint64(price))
		return Amount(v), err
	}
	return a.Amount, nil
}

// ReceiveAmountAt is how much receive asset a fill of the full remainder at
// the given price would yield.
func (a *AcceptedOrder) ReceiveAmountAt(price Price) (Amount, error) {
	if a.Order.Side == Sell {
		v, err := money.Cost(uint64(a.Amount), uint64(price))
		return Amount(v), err
	}
	return a.Amount, nil
}

// RequiredFee is the fee still owed, discounted by the incoming funds when
// the fee is paid in the receive asset.
func (a *AcceptedOrder) RequiredFee() (Amount, error) {
	if a.FeeAsset() != a.ReceiveAsset() {
		return a.Fee, nil
	}
	receive, err := a.ReceiveAmountAt(a.Order.Price)
	if err != nil {
		return 0, err
	}
	if receive >= a.Fee {
		return 0, nil
	}
	return a.Fee - receive, nil
}

// RequiredBalance maps assets to the units the sender must hold for the
// remainder to be fundable.
func (a *AcceptedOrder) RequiredBalance() (map[Asset]Amount, error) {
	spend, err := a.SpendAmountAt(a.Order.Price)
	if err != nil {
		return nil, err
	}
	fee, err := a.RequiredFee()
	if err != nil {
		return nil, err
	}
	out := map[Asset]Amount{a.SpendAsset(): spend}
	if fee > 0 {
		out[a.FeeAsset()] += fee
	}
	return out, nil
}

// ReservableBalance is what the matcher locks for this order: identical to
// RequiredBalance for limit orders; market orders lock their spendable cap
// instead of the raw spend amount.
func (a *AcceptedOrder) ReservableBalance() (map[Asset]Amount, error) {
	if !a.Market {
		return a.RequiredBalance()
	}
	fee, err := a.RequiredFee()
	if err != nil {
		return nil, err
	}
	out := map[Asset]Amount{a.SpendAsset(): a.AvailableForSpending}
	if fee > 0 {
		out[a.FeeAsset()] += fee
	}
	return out, nil
}

// IsValid reports whether the remainder can execute against the given
// counter price: non-zero, above the dust floor, in range, and settling to
// non-zero quantities on both legs. Arithmetic failure counts as invalid.
func (a *AcceptedOrder) IsValid(counterPrice Price) bool {
	if a.Amount == 0 || uint64(a.Amount) >= money.MaxAmount {
		return false
	}
	floor, err := money.MinAmountForPrice(uint64(counterPrice))
	if err != nil || uint64(a.Amount) < floor {
		return false
	}
	spend, err := a.SpendAmountAt(counterPrice)
	if err != nil || spend == 0 {
		return false
	}
	receive, err := a.ReceiveAmountAt(counterPrice)
	if err != nil || receive == 0 {
		return false
	}
	return true
}

func (a *AcceptedOrder) String() string {
	kind := "limit"
	if a.Market {
		kind = "market"
	}
	return fmt.Sprintf("%s %s %s amount=%d price=%d fee=%d", kind, a.Side(), a.ID(), a.Amount, a.Order.Price, a.Fee)
}
