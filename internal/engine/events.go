package engine

import "github.com/Yusufzhafir/go-dexmatcher/pkg/model"

// Event is one step of a processed submission. Events are self-contained
// value records; they never reference live book state.
type Event interface {
	When() int64
}

// OrderAdded reports a limit order resting on the book.
type OrderAdded struct {
	Order *model.AcceptedOrder
	Ts    int64
}

func (e OrderAdded) When() int64 { return e.Ts }

// OrderExecuted reports a fill of the submitted order against the best
// resting counter-order. Submitted and Counter carry the pre-fill state;
// the remainders are what is left after it.
type OrderExecuted struct {
	Submitted model.AcceptedOrder
	Counter   model.AcceptedOrder
	Ts        int64

	// Price is the trading price: always the resting order's.
	Price model.Price
	// Executed is the filled quantity in amount-asset units.
	Executed model.Amount
	// ExecutedPriceAsset is the filled quantity settled to price-asset units.
	ExecutedPriceAsset model.Amount
	// SubmittedFee and CounterFee are each side's proportional matcher fee.
	SubmittedFee model.Amount
	CounterFee   model.Amount

	SubmittedRemaining *model.AcceptedOrder
	CounterRemaining   *model.AcceptedOrder
}

func (e OrderExecuted) When() int64 { return e.Ts }

// IsBuySubmitted reports whether the taker was the buying side.
func (e OrderExecuted) IsBuySubmitted() bool { return e.Submitted.Side() == model.Buy }

// Buy and Sell pick the two legs regardless of which one was submitted.
func (e OrderExecuted) Buy() *model.AcceptedOrder {
	if e.Submitted.Side() == model.Buy {
		s := e.Submitted
		return &s
	}
	c := e.Counter
	return &c
}

func (e OrderExecuted) Sell() *model.AcceptedOrder {
	if e.Submitted.Side() == model.Sell {
		s := e.Submitted
		return &s
	}
	c := e.Counter
	return &c
}

// BuyFee and SellFee are the proportional fees keyed by leg.
func (e OrderExecuted) BuyFee() model.Amount {
	if e.Submitted.Side() == model.Buy {
		return e.SubmittedFee
	}
	return e.CounterFee
}

func (e OrderExecuted) SellFee() model.Amount {
	if e.Submitted.Side() == model.Sell {
		return e.SubmittedFee
	}
	return e.CounterFee
}

// OrderCanceled reports an order leaving the matcher unfilled or partially
// filled. System cancels cover dust remainders, expired orders and market
// orders that could not execute; Reason carries the cause when one exists.
type OrderCanceled struct {
	Order  model.AcceptedOrder
	System bool
	Ts     int64
	Reason error
}

func (e OrderCanceled) When() int64 { return e.Ts }
