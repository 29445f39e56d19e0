// Package order drives submissions through the matcher: one cooperative
// actor per pair owns the book, serializes submissions and cancels, snapshots
// the balance oracle and asset registry at entry, and turns executions into
// settled exchange transactions.
package order

import (
	"context"
	"fmt"
	"sync"

	"github.com/Yusufzhafir/go-dexmatcher/internal/engine"
	"github.com/Yusufzhafir/go-dexmatcher/internal/ledger"
	"github.com/Yusufzhafir/go-dexmatcher/internal/registry"
	"github.com/Yusufzhafir/go-dexmatcher/internal/settlement"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/rs/zerolog"
	"gopkg.in/tomb.v2"
)

// EventHandler observes the serialized event stream of one driver.
type EventHandler func(engine.Event)

// SettlementSink receives every settled exchange transaction together with
// its balance projection, after validation.
type SettlementSink interface {
	RecordSettlement(ctx context.Context, tx *settlement.ExchangeTransaction, diff settlement.BalanceDiff) error
}

// Clock supplies the actor's notion of now in unix milliseconds.
type Clock func() int64

const eventBufferSize = 1024

type submitKind byte

const (
	kindSubmit submitKind = iota
	kindCancel
	kindExpire
	kindDepth
)

type submission struct {
	kind   submitKind
	order  *model.Order
	market bool
	id     crypto.Digest
	reply  chan error
	depth  chan model.MarketDepth
}

// Options wires a Driver.
type Options struct {
	Pair     model.AssetPair
	Matcher  crypto.PublicKey
	Engine   *engine.Engine
	Registry registry.Registry
	Balances ledger.BalanceSource
	Builder  *settlement.Builder
	Sink     SettlementSink // optional
	Clock    Clock
	Log      zerolog.Logger
}

// Driver is the per-pair submission actor.
type Driver struct {
	pair      model.AssetPair
	matcher   crypto.PublicKey
	eng       *engine.Engine
	registry  registry.Registry
	balances  ledger.BalanceSource
	builder   *settlement.Builder
	validator *settlement.Validator
	sink      SettlementSink
	now       Clock
	log       zerolog.Logger

	subs   chan submission
	events chan engine.Event

	mu       sync.RWMutex
	statuses map[crypto.Digest]model.OrderStatus
	executed map[crypto.Digest]model.Amount

	handlersMu sync.RWMutex
	handlers   []EventHandler

	t tomb.Tomb
}

func NewDriver(opts Options) *Driver {
	d := &Driver{
		pair:     opts.Pair,
		matcher:  opts.Matcher,
		eng:      opts.Engine,
		registry: opts.Registry,
		balances: opts.Balances,
		builder:  opts.Builder,
		sink:     opts.Sink,
		now:      opts.Clock,
		log:      opts.Log.With().Str("component", "driver").Str("pair", opts.Pair.String()).Logger(),
		subs:     make(chan submission),
		events:   make(chan engine.Event, eventBufferSize),
		statuses: make(map[crypto.Digest]model.OrderStatus),
		executed: make(map[crypto.Digest]model.Amount),
	}
	d.validator = settlement.NewValidator(d)
	return d
}

// TotalExecuted serves the prior-match history for settlement validation.
func (d *Driver) TotalExecuted(id crypto.Digest) (model.Amount, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.executed[id], nil
}

// RegisterHandler adds an event observer. Handlers run on the event pump
// goroutine, in emission order.
func (d *Driver) RegisterHandler(h EventHandler) {
	d.handlersMu.Lock()
	defer d.handlersMu.Unlock()
	d.handlers = append(d.handlers, h)
}

// Start launches the actor and the event pump.
func (d *Driver) Start() {
	d.t.Go(d.run)
	d.t.Go(d.pump)
}

// Stop shuts the actor down and waits for it.
func (d *Driver) Stop() error {
	d.t.Kill(nil)
	return d.t.Wait()
}

// SubmitLimit queues a limit order and waits for its admission result.
func (d *Driver) SubmitLimit(ctx context.Context, o *model.Order) error {
	return d.enqueue(ctx, submission{kind: kindSubmit, order: o, reply: make(chan error, 1)})
}

// SubmitMarket queues a market order; the spendable cap is derived from the
// balance snapshot at processing time.
func (d *Driver) SubmitMarket(ctx context.Context, o *model.Order) error {
	return d.enqueue(ctx, submission{kind: kindSubmit, order: o, market: true, reply: make(chan error, 1)})
}

// Cancel queues a client cancel as a control submission in the same queue;
// it is always accepted if the order still rests.
func (d *Driver) Cancel(ctx context.Context, id crypto.Digest) error {
	return d.enqueue(ctx, submission{kind: kindCancel, id: id, reply: make(chan error, 1)})
}

// ExpireOrders sweeps resting orders past their expiration.
func (d *Driver) ExpireOrders(ctx context.Context) error {
	return d.enqueue(ctx, submission{kind: kindExpire, reply: make(chan error, 1)})
}

func (d *Driver) enqueue(ctx context.Context, sub submission) error {
	select {
	case d.subs <- sub:
	case <-ctx.Done():
		return ctx.Err()
	case <-d.t.Dying():
		return fmt.Errorf("driver stopped")
	}
	select {
	case err := <-sub.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.t.Dying():
		return fmt.Errorf("driver stopped")
	}
}

// Status reports the lifecycle state of an order id.
func (d *Driver) Status(id crypto.Digest) model.OrderStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st, ok := d.statuses[id]
	if !ok {
		return model.OrderStatus{Kind: model.StatusNotFound}
	}
	return st
}

// Depth snapshots the aggregated book. The actor owns the book, so the
// snapshot goes through the serialized queue like any other submission.
func (d *Driver) Depth(ctx context.Context) (model.MarketDepth, error) {
	sub := submission{kind: kindDepth, reply: make(chan error, 1), depth: make(chan model.MarketDepth, 1)}
	select {
	case d.subs <- sub:
	case <-ctx.Done():
		return model.MarketDepth{}, ctx.Err()
	case <-d.t.Dying():
		return model.MarketDepth{}, fmt.Errorf("driver stopped")
	}
	select {
	case depth := <-sub.depth:
		return depth, nil
	case <-ctx.Done():
		return model.MarketDepth{}, ctx.Err()
	case <-d.t.Dying():
		return model.MarketDepth{}, fmt.Errorf("driver stopped")
	}
}

func (d *Driver) run() error {
	for {
		select {
		case sub := <-d.subs:
			d.handle(sub)
		case <-d.t.Dying():
			return nil
		}
	}
}

func (d *Driver) handle(sub submission) {
	now := d.now()
	switch sub.kind {
	case kindSubmit:
		sub.reply <- d.processSubmit(sub.order, sub.market, now)
	case kindCancel:
		sub.reply <- d.processCancel(sub.id, now)
	case kindExpire:
		events := d.eng.ExpireOrders(now)
		d.apply(events)
		d.dispatch(events)
		sub.reply <- nil
	case kindDepth:
		sub.depth <- d.eng.Book().Depth(now)
	}
}

func (d *Driver) processSubmit(o *model.Order, market bool, now int64) error {
	if o.Pair != d.pair {
		return fmt.Errorf("%w: order pair %s, book pair %s", model.ErrOrderRejected, o.Pair, d.pair)
	}
	if o.Matcher != d.matcher {
		return fmt.Errorf("%w: order names matcher %s", model.ErrOrderRejected, o.Matcher)
	}
	if err := o.Validate(); err != nil {
		return err
	}
	if o.Expired(now) {
		return fmt.Errorf("%w: expired at %d", model.ErrOrderRejected, o.Expiration)
	}
	if !o.VerifySignature() {
		return fmt.Errorf("%w: signature does not verify", model.ErrOrderRejected)
	}
	id := o.ID()
	d.mu.RLock()
	_, known := d.statuses[id]
	d.mu.RUnlock()
	if known {
		return fmt.Errorf("%w: %s", model.ErrDuplicateOrder, id)
	}

	ctx := context.Background()
	// Registry and balance reads are synchronous snapshots taken here, at
	// submission entry; the match loop never suspends on I/O.
	if _, err := d.registry.Decimals(ctx, o.Pair.AmountAsset); err != nil {
		return err
	}
	if _, err := d.registry.Decimals(ctx, o.Pair.PriceAsset); err != nil {
		return err
	}

	accepted, err := d.admit(ctx, o, market)
	if err != nil {
		return err
	}

	d.setStatus(id, model.OrderStatus{Kind: model.StatusAccepted})
	events := d.eng.Process(accepted, now)
	d.apply(events)
	d.dispatch(events)
	return nil
}

// admit builds the AcceptedOrder, enforcing the balance constraints of each
// variant against the snapshot.
func (d *Driver) admit(ctx context.Context, o *model.Order, market bool) (*model.AcceptedOrder, error) {
	if !market {
		limit := model.NewLimitOrder(o)
		required, err := limit.RequiredBalance()
		if err != nil {
			return nil, err
		}
		for asset, needed := range required {
			have, err := d.balances.TradableBalance(ctx, o.Sender, asset)
			if err != nil {
				return nil, err
			}
			if have < needed {
				return nil, fmt.Errorf("%w: %d of %s tradable, %d required",
					model.ErrBalanceInsufficient, have, asset, needed)
			}
		}
		return limit, nil
	}
	mo, err := model.NewMarketOrderFromBalance(o, func(asset model.Asset) (model.Amount, error) {
		return d.balances.TradableBalance(ctx, o.Sender, asset)
	})
	if err != nil {
		return nil, err
	}
	if mo.AvailableForSpending == 0 {
		return nil, fmt.Errorf("%w: no spendable %s balance", model.ErrBalanceInsufficient, o.SpendAsset())
	}
	return mo, nil
}

func (d *Driver) processCancel(id crypto.Digest, now int64) error {
	ev, err := d.eng.Cancel(id, now)
	if err != nil {
		return err
	}
	events := []engine.Event{ev}
	d.apply(events)
	d.dispatch(events)
	return nil
}

// apply folds events into the status and prior-match projections, and
// settles executions.
func (d *Driver) apply(events []engine.Event) {
	for _, ev := range events {
		switch e := ev.(type) {
		case engine.OrderAdded:
			id := e.Order.Order.ID()
			filled := e.Order.Order.Amount - e.Order.Amount
			kind := model.StatusAccepted
			if filled > 0 {
				kind = model.StatusPartiallyFilled
			}
			d.setStatus(id, model.OrderStatus{Kind: kind, Filled: filled})
		case engine.OrderExecuted:
			d.settle(e)
			d.recordExecution(e)
		case engine.OrderCanceled:
			id := e.Order.Order.ID()
			filled := e.Order.Order.Amount - e.Order.Amount
			d.setStatus(id, model.OrderStatus{Kind: model.StatusCancelled, Filled: filled})
		}
	}
}

func (d *Driver) recordExecution(e engine.OrderExecuted) {
	subID := e.Submitted.Order.ID()
	ctrID := e.Counter.Order.ID()

	d.mu.Lock()
	d.executed[subID] += e.Executed
	d.executed[ctrID] += e.Executed
	d.mu.Unlock()

	d.setStatus(subID, fillStatus(e.Submitted.Order, e.SubmittedRemaining))
	d.setStatus(ctrID, fillStatus(e.Counter.Order, e.CounterRemaining))
}

func fillStatus(o *model.Order, remaining *model.AcceptedOrder) model.OrderStatus {
	filled := o.Amount - remaining.Amount
	if remaining.Amount == 0 {
		return model.OrderStatus{Kind: model.StatusFilled, Filled: filled}
	}
	return model.OrderStatus{Kind: model.StatusPartiallyFilled, Filled: filled}
}

// settle builds, validates and records the exchange transaction for a fill.
// Validation against the in-memory history runs before the fill is added to
// it, so the validator sees exactly the prior matches.
func (d *Driver) settle(e engine.OrderExecuted) {
	if d.builder == nil {
		return
	}
	tx, err := d.builder.FromExecuted(e)
	if err != nil {
		d.log.Error().Err(err).Msg("settlement build failed")
		return
	}
	if err := d.validator.Validate(tx); err != nil {
		d.log.Error().Err(err).Str("tx", tx.ID().String()).Msg("settlement failed self-validation")
		return
	}
	diff, err := tx.BalanceDiff()
	if err != nil {
		d.log.Error().Err(err).Str("tx", tx.ID().String()).Msg("balance projection failed")
		return
	}
	if d.sink != nil {
		if err := d.sink.RecordSettlement(context.Background(), tx, diff); err != nil {
			d.log.Error().Err(err).Str("tx", tx.ID().String()).Msg("settlement record failed")
		}
	}
}

func (d *Driver) setStatus(id crypto.Digest, st model.OrderStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.statuses[id]; ok && cur.Final() {
		return
	}
	d.statuses[id] = st
}

// dispatch pushes events into the bounded buffer. A full buffer blocks here,
// stalling the intake queue; the book itself never stalls mid-match.
func (d *Driver) dispatch(events []engine.Event) {
	for _, ev := range events {
		select {
		case d.events <- ev:
		case <-d.t.Dying():
			return
		}
	}
}

func (d *Driver) pump() error {
	for {
		select {
		case ev := <-d.events:
			d.handlersMu.RLock()
			handlers := d.handlers
			d.handlersMu.RUnlock()
			for _, h := range handlers {
				h(ev)
			}
		case <-d.t.Dying():
			return nil
		}
	}
}
