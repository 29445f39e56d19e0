package order

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Yusufzhafir/go-dexmatcher/internal/engine"
	"github.com/Yusufzhafir/go-dexmatcher/internal/ledger"
	"github.com/Yusufzhafir/go-dexmatcher/internal/registry"
	"github.com/Yusufzhafir/go-dexmatcher/internal/settlement"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTs = int64(1_700_000_100_000)

var (
	testAsset = model.IssuedAsset(crypto.SHA256([]byte("token")))
	testPair  = model.AssetPair{AmountAsset: testAsset, PriceAsset: model.NativeAsset}
)

type captureSink struct {
	mu  sync.Mutex
	txs []*settlement.ExchangeTransaction
}

func (s *captureSink) RecordSettlement(_ context.Context, tx *settlement.ExchangeTransaction, _ settlement.BalanceDiff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, tx)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

type fixture struct {
	driver   *Driver
	balances *ledger.InMemory
	sink     *captureSink
	events   chan engine.Event
}

func keyPair(t *testing.T, fill byte) (crypto.PublicKey, crypto.SecretKey) {
	t.Helper()
	pk, sk, err := crypto.GenerateKeyPair(bytes.Repeat([]byte{fill}, crypto.SecretKeySize))
	require.NoError(t, err)
	return pk, sk
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	matcherPK, matcherSK := keyPair(t, 0xEE)
	balances := ledger.NewInMemory()
	sink := &captureSink{}
	reg := registry.NewStaticRegistry(registry.AssetInfo{
		Asset: testAsset, Name: "TOKEN", Decimals: 8,
	})
	book := engine.NewOrderBook(testPair)
	d := NewDriver(Options{
		Pair:     testPair,
		Matcher:  matcherPK,
		Engine:   engine.NewEngine(book, zerolog.Nop()),
		Registry: reg,
		Balances: balances,
		Builder:  settlement.NewBuilder(matcherPK, matcherSK, 100_000, zerolog.Nop()),
		Sink:     sink,
		Clock:    func() int64 { return testTs },
		Log:      zerolog.Nop(),
	})
	f := &fixture{driver: d, balances: balances, sink: sink, events: make(chan engine.Event, 64)}
	d.RegisterHandler(func(ev engine.Event) { f.events <- ev })
	d.Start()
	t.Cleanup(func() { _ = d.Stop() })
	return f
}

// signedOrder funds the sender generously unless the test adjusts balances
// afterwards.
func (f *fixture) signedOrder(t *testing.T, seed byte, side model.Side, price model.Price, amount model.Amount) *model.Order {
	t.Helper()
	sender, sk := keyPair(t, seed)
	matcherPK, _ := keyPair(t, 0xEE)
	o := &model.Order{
		Version:    1,
		Sender:     sender,
		Matcher:    matcherPK,
		Pair:       testPair,
		Side:       side,
		Price:      price,
		Amount:     amount,
		Timestamp:  testTs - 1000,
		Expiration: testTs + 60_000,
		MatcherFee: 300_000,
		FeeAsset:   model.NativeAsset,
	}
	o.Sign(sk)
	f.balances.Set(sender, model.NativeAsset, 10_000_000_000)
	f.balances.Set(sender, testAsset, 10_000_000_000)
	return o
}

func (f *fixture) waitEvents(t *testing.T, n int) []engine.Event {
	t.Helper()
	var out []engine.Event
	deadline := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case ev := <-f.events:
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, got %d", n, len(out))
		}
	}
	return out
}

func TestSubmitRestsAndReportsAccepted(t *testing.T) {
	f := newFixture(t)
	o := f.signedOrder(t, 1, model.Sell, 1000, 1_000_000)
	require.NoError(t, f.driver.SubmitLimit(context.Background(), o))

	st := f.driver.Status(o.ID())
	assert.Equal(t, model.StatusAccepted, st.Kind)

	events := f.waitEvents(t, 1)
	assert.IsType(t, engine.OrderAdded{}, events[0])
}

func TestSubmitMatchTransitionsToFilled(t *testing.T) {
	f := newFixture(t)
	ask := f.signedOrder(t, 1, model.Sell, 1000, 1_000_000)
	buy := f.signedOrder(t, 2, model.Buy, 1000, 1_000_000)
	require.NoError(t, f.driver.SubmitLimit(context.Background(), ask))
	require.NoError(t, f.driver.SubmitLimit(context.Background(), buy))

	assert.Equal(t, model.StatusFilled, f.driver.Status(ask.ID()).Kind)
	assert.Equal(t, model.StatusFilled, f.driver.Status(buy.ID()).Kind)
	assert.Equal(t, model.Amount(1_000_000), f.driver.Status(buy.ID()).Filled)

	// One settlement per fill, already validated against prior history.
	f.waitEvents(t, 2)
	assert.Equal(t, 1, f.sink.count())
}

func TestPartialFillStatus(t *testing.T) {
	f := newFixture(t)
	ask := f.signedOrder(t, 1, model.Sell, 1000, 400_000)
	buy := f.signedOrder(t, 2, model.Buy, 1000, 1_000_000)
	require.NoError(t, f.driver.SubmitLimit(context.Background(), ask))
	require.NoError(t, f.driver.SubmitLimit(context.Background(), buy))

	assert.Equal(t, model.StatusFilled, f.driver.Status(ask.ID()).Kind)
	st := f.driver.Status(buy.ID())
	assert.Equal(t, model.StatusPartiallyFilled, st.Kind)
	assert.Equal(t, model.Amount(400_000), st.Filled)
}

func TestDuplicateSubmissionConflict(t *testing.T) {
	f := newFixture(t)
	o := f.signedOrder(t, 1, model.Sell, 1000, 1_000_000)
	require.NoError(t, f.driver.SubmitLimit(context.Background(), o))
	err := f.driver.SubmitLimit(context.Background(), o)
	assert.ErrorIs(t, err, model.ErrDuplicateOrder)
}

func TestInsufficientBalanceRejected(t *testing.T) {
	f := newFixture(t)
	o := f.signedOrder(t, 1, model.Sell, 1000, 1_000_000)
	f.balances.Set(o.Sender, testAsset, 10) // below the spend requirement

	err := f.driver.SubmitLimit(context.Background(), o)
	assert.ErrorIs(t, err, model.ErrBalanceInsufficient)
	assert.Equal(t, model.StatusNotFound, f.driver.Status(o.ID()).Kind)
}

func TestMarketOrderWithoutBalanceRejected(t *testing.T) {
	f := newFixture(t)
	o := f.signedOrder(t, 1, model.Buy, 1000, 1_000_000)
	f.balances.Set(o.Sender, model.NativeAsset, 0)

	err := f.driver.SubmitMarket(context.Background(), o)
	assert.ErrorIs(t, err, model.ErrBalanceInsufficient)
}

func TestExpiredOrderRejected(t *testing.T) {
	f := newFixture(t)
	o := f.signedOrder(t, 1, model.Sell, 1000, 1_000_000)
	o.Timestamp = testTs - 120_000
	o.Expiration = testTs - 60_000
	_, sk := keyPair(t, 1)
	o.Sign(sk)

	err := f.driver.SubmitLimit(context.Background(), o)
	assert.ErrorIs(t, err, model.ErrOrderRejected)
}

func TestBadSignatureRejected(t *testing.T) {
	f := newFixture(t)
	o := f.signedOrder(t, 1, model.Sell, 1000, 1_000_000)
	o.Signature[0] ^= 1

	err := f.driver.SubmitLimit(context.Background(), o)
	assert.ErrorIs(t, err, model.ErrOrderRejected)
}

func TestCancelFlow(t *testing.T) {
	f := newFixture(t)
	o := f.signedOrder(t, 1, model.Sell, 1000, 1_000_000)
	require.NoError(t, f.driver.SubmitLimit(context.Background(), o))
	require.NoError(t, f.driver.Cancel(context.Background(), o.ID()))

	st := f.driver.Status(o.ID())
	assert.Equal(t, model.StatusCancelled, st.Kind)

	err := f.driver.Cancel(context.Background(), o.ID())
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}

func TestDepthSnapshot(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.driver.SubmitLimit(context.Background(), f.signedOrder(t, 1, model.Sell, 1000, 1_000_000)))
	require.NoError(t, f.driver.SubmitLimit(context.Background(), f.signedOrder(t, 2, model.Buy, 900, 500_000)))

	depth, err := f.driver.Depth(context.Background())
	require.NoError(t, err)
	require.Len(t, depth.Asks, 1)
	require.Len(t, depth.Bids, 1)
	assert.Equal(t, model.Price(1000), depth.Asks[0].Price)
	assert.Equal(t, model.Price(900), depth.Bids[0].Price)
}

func TestWrongPairRejected(t *testing.T) {
	f := newFixture(t)
	o := f.signedOrder(t, 1, model.Sell, 1000, 1_000_000)
	o.Pair = model.AssetPair{AmountAsset: model.NativeAsset, PriceAsset: testAsset}
	_, sk := keyPair(t, 1)
	o.Sign(sk)

	err := f.driver.SubmitLimit(context.Background(), o)
	assert.ErrorIs(t, err, model.ErrOrderRejected)
}

func TestMarketOrderSettlesAndCancelsResidue(t *testing.T) {
	f := newFixture(t)
	ask := f.signedOrder(t, 1, model.Sell, 100_000_000, 1_000_000)
	require.NoError(t, f.driver.SubmitLimit(context.Background(), ask))

	mo := f.signedOrder(t, 2, model.Buy, 100_000_000, 1_000_000)
	mo.MatcherFee = 10_000
	_, sk := keyPair(t, 2)
	mo.Sign(sk)
	f.balances.Set(mo.Sender, model.NativeAsset, 500_000)
	require.NoError(t, f.driver.SubmitMarket(context.Background(), mo))

	st := f.driver.Status(mo.ID())
	assert.Equal(t, model.StatusCancelled, st.Kind)
	assert.Equal(t, model.Amount(495_049), st.Filled)
}
