package engine

import (
	"fmt"

	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/money"
	"github.com/rs/zerolog"
)

// Engine matches submitted orders against one book. It is not safe for
// concurrent use; the submission driver serializes access.
type Engine struct {
	book *OrderBook
	log  zerolog.Logger
}

func NewEngine(book *OrderBook, log zerolog.Logger) *Engine {
	return &Engine{
		book: book,
		log:  log.With().Str("component", "engine").Str("pair", book.Pair().String()).Logger(),
	}
}

func (e *Engine) Book() *OrderBook { return e.book }

// Process runs one submission to completion, including cascading fills, and
// returns the emitted events in order. The trading price of every fill is
// the resting order's price.
func (e *Engine) Process(submitted *model.AcceptedOrder, now int64) []Event {
	var events []Event
	cur := submitted

	if !cur.IsValid(cur.Price()) {
		return append(events, OrderCanceled{
			Order: *cur, System: true, Ts: now,
			Reason: fmt.Errorf("%w: unexecutable at own price %d", model.ErrOrderRejected, cur.Price()),
		})
	}

	counterSide := cur.Side().Opposite()
	for {
		counter := e.book.Best(counterSide)
		if counter != nil && counter.Order.Expired(now) {
			// An expired resting order is swept as soon as matching reaches it.
			e.book.PopBest(counterSide)
			events = append(events, OrderCanceled{
				Order: *counter, System: true, Ts: now,
				Reason: fmt.Errorf("%w: expired at %d", model.ErrOrderRejected, counter.Order.Expiration),
			})
			continue
		}
		if counter == nil || !pricesCross(cur, counter) {
			events = append(events, e.restOrCancel(cur, now, false))
			return events
		}

		executed, err := e.executedAmount(cur, counter)
		if err != nil {
			// Arithmetic failure is a domain error; the submission is
			// system-cancelled with the cause attached.
			e.log.Error().Err(err).Str("order", cur.ID()).Msg("execution arithmetic failed")
			return append(events, OrderCanceled{Order: *cur, System: true, Ts: now, Reason: err})
		}
		if executed == 0 {
			events = append(events, e.restOrCancel(cur, now, true))
			return events
		}

		ev, next, err := e.execute(cur, counter, executed, now)
		if err != nil {
			e.log.Error().Err(err).Str("order", cur.ID()).Msg("fill accounting failed")
			return append(events, OrderCanceled{Order: *cur, System: true, Ts: now, Reason: err})
		}
		events = append(events, ev)
		if ev.CounterRemaining.Amount > 0 && !checkRestable(ev.CounterRemaining) {
			// The counter residue was popped below the dust floor.
			events = append(events, OrderCanceled{
				Order: *ev.CounterRemaining, System: true, Ts: now,
				Reason: fmt.Errorf("%w: residue %d below dust floor at price %d", model.ErrOrderRejected, ev.CounterRemaining.Amount, ev.CounterRemaining.Price()),
			})
		}

		if next.Amount > 0 && next.IsValid(next.Price()) {
			cur = next
			continue
		}
		if next.Amount > 0 {
			// Residue that can neither execute nor rest.
			events = append(events, OrderCanceled{
				Order: *next, System: true, Ts: now,
				Reason: fmt.Errorf("%w: residue %d below executable floor", model.ErrOrderRejected, next.Amount),
			})
		}
		return events
	}
}

// execute books one fill of cur against the best resting counter and
// updates the book. Returns the event and the submitted remainder.
func (e *Engine) execute(cur, counter *model.AcceptedOrder, executed model.Amount, now int64) (OrderExecuted, *model.AcceptedOrder, error) {
	price := counter.Price()

	executedPA, err := money.Cost(uint64(executed), uint64(price))
	if err != nil {
		return OrderExecuted{}, nil, err
	}
	counterFee, err := money.PartialFee(uint64(counter.Order.MatcherFee), uint64(counter.Order.Amount), uint64(executed))
	if err != nil {
		return OrderExecuted{}, nil, err
	}
	submittedFee, err := money.PartialFee(uint64(cur.Order.MatcherFee), uint64(cur.Order.Amount), uint64(executed))
	if err != nil {
		return OrderExecuted{}, nil, err
	}

	counterRemaining := counter.Partial(counter.Amount-executed, counter.Fee-model.Amount(counterFee))
	counterSide := counter.Side()
	if counterRemaining.Amount == 0 || !checkRestable(counterRemaining) {
		e.book.PopBest(counterSide)
	} else {
		if err := e.book.ReplaceBest(counterSide, counterRemaining); err != nil {
			return OrderExecuted{}, nil, err
		}
	}

	next := cur.Partial(cur.Amount-executed, cur.Fee-model.Amount(submittedFee))
	if cur.Market {
		spent := uint64(executed)
		if cur.Side() == model.Buy {
			spent = executedPA
		}
		if cur.FeeAsset() == cur.SpendAsset() {
			spent, err = money.AddChecked(spent, submittedFee)
			if err != nil {
				return OrderExecuted{}, nil, err
			}
		}
		afs := uint64(cur.AvailableForSpending)
		if spent > afs {
			spent = afs
		}
		next = next.WithAvailableForSpending(model.Amount(afs - spent))
	}

	ev := OrderExecuted{
		Submitted:          *cur,
		Counter:            *counter,
		Ts:                 now,
		Price:              price,
		Executed:           executed,
		ExecutedPriceAsset: model.Amount(executedPA),
		SubmittedFee:       model.Amount(submittedFee),
		CounterFee:         model.Amount(counterFee),
		SubmittedRemaining: next,
		CounterRemaining:   counterRemaining,
	}
	return ev, next, nil
}

// executedAmount computes how much of cur fills against counter at the
// counter's price, capped for market orders by what the spendable balance
// can pay for, fees included when they are charged in the spent asset.
func (e *Engine) executedAmount(cur, counter *model.AcceptedOrder) (model.Amount, error) {
	price := uint64(counter.Price())

	corrected, err := money.Correct(uint64(cur.Amount), price)
	if err != nil {
		return 0, err
	}
	counterAmount, err := counter.AmountOfAmountAsset()
	if err != nil {
		return 0, err
	}
	matched := min(corrected, uint64(counterAmount))
	if !cur.Market {
		return model.Amount(matched), nil
	}

	total := uint64(cur.Order.Amount)
	fee := uint64(cur.Order.MatcherFee)
	afs := uint64(cur.AvailableForSpending)
	feeInSpendAsset := cur.FeeAsset() == cur.SpendAsset()

	var limit uint64
	if cur.Side() == model.Buy {
		if feeInSpendAsset {
			// The cap solves afs >= cost(x, price) + fee*x/total for x.
			costOfTotal, err := money.Cost(total, price)
			if err != nil {
				return 0, err
			}
			denom, err := money.AddChecked(costOfTotal, fee)
			if err != nil {
				return 0, err
			}
			raw, err := money.MulDiv(afs, total, denom)
			if err != nil {
				return 0, err
			}
			limit, err = money.Correct(raw, price)
			if err != nil {
				return 0, err
			}
		} else {
			raw, err := money.MulDiv(afs, money.PriceConstant, price)
			if err != nil {
				return 0, err
			}
			limit, err = money.Correct(raw, price)
			if err != nil {
				return 0, err
			}
		}
	} else {
		if feeInSpendAsset {
			denom, err := money.AddChecked(total, fee)
			if err != nil {
				return 0, err
			}
			limit, err = money.MulDiv(afs, total, denom)
			if err != nil {
				return 0, err
			}
		} else {
			limit = afs
		}
	}
	return model.Amount(min(matched, limit)), nil
}

// restOrCancel finishes a submission that cannot (or can no longer) match:
// a restable limit remainder is added to the book, anything else is
// system-cancelled. crossed tells a market order that a crossing counter
// existed but the spendable cap zeroed the match, which is a balance
// problem, not a malformed order.
func (e *Engine) restOrCancel(cur *model.AcceptedOrder, now int64, crossed bool) Event {
	if !cur.Market && checkRestable(cur) {
		if err := e.book.Add(cur); err != nil {
			return OrderCanceled{Order: *cur, System: true, Ts: now, Reason: err}
		}
		e.log.Debug().Str("order", cur.ID()).Uint64("amount", uint64(cur.Amount)).Msg("order rested")
		return OrderAdded{Order: cur, Ts: now}
	}
	var reason error
	switch {
	case cur.Market && crossed:
		reason = fmt.Errorf("%w: spendable balance %d buys none of the best counter-order",
			model.ErrBalanceInsufficient, cur.AvailableForSpending)
	case cur.Market:
		reason = fmt.Errorf("%w: no executable counter-order", model.ErrOrderRejected)
	default:
		reason = fmt.Errorf("%w: remainder %d below dust floor at price %d", model.ErrOrderRejected, cur.Amount, cur.Price())
	}
	return OrderCanceled{Order: *cur, System: true, Ts: now, Reason: reason}
}

// Cancel removes a resting order on explicit client request.
func (e *Engine) Cancel(id crypto.Digest, now int64) (Event, error) {
	removed, err := e.book.Cancel(id)
	if err != nil {
		return nil, err
	}
	return OrderCanceled{Order: *removed, System: false, Ts: now}, nil
}

// ExpireOrders sweeps every resting order past its expiration.
func (e *Engine) ExpireOrders(now int64) []Event {
	var expired []*model.AcceptedOrder
	e.book.Resting(func(o *model.AcceptedOrder) bool {
		if o.Order.Expired(now) {
			expired = append(expired, o)
		}
		return true
	})
	events := make([]Event, 0, len(expired))
	for _, o := range expired {
		removed, err := e.book.Cancel(o.Order.ID())
		if err != nil {
			continue
		}
		events = append(events, OrderCanceled{
			Order: *removed, System: true, Ts: now,
			Reason: fmt.Errorf("%w: expired at %d", model.ErrOrderRejected, o.Order.Expiration),
		})
	}
	return events
}

// pricesCross reports whether the submitted order's limit allows trading at
// the resting order's price.
func pricesCross(submitted, counter *model.AcceptedOrder) bool {
	if submitted.Side() == model.Buy {
		return submitted.Price() >= counter.Price()
	}
	return submitted.Price() <= counter.Price()
}
