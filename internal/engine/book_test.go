package engine

import (
	"bytes"
	"testing"

	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testAsset = model.IssuedAsset(crypto.SHA256([]byte("token")))
	testPair  = model.AssetPair{AmountAsset: testAsset, PriceAsset: model.NativeAsset}
)

// newTestOrder builds a signed limit order; seed makes senders distinct and
// ids unique.
func newTestOrder(t *testing.T, seed byte, side model.Side, price model.Price, amount model.Amount) *model.Order {
	t.Helper()
	sender, sk, err := crypto.GenerateKeyPair(bytes.Repeat([]byte{seed}, crypto.SecretKeySize))
	require.NoError(t, err)
	matcher, _, err := crypto.GenerateKeyPair(bytes.Repeat([]byte{0xEE}, crypto.SecretKeySize))
	require.NoError(t, err)
	o := &model.Order{
		Version:    1,
		Sender:     sender,
		Matcher:    matcher,
		Pair:       testPair,
		Side:       side,
		Price:      price,
		Amount:     amount,
		Timestamp:  1_700_000_000_000 + int64(seed),
		Expiration: 1_700_000_000_000 + model.MaxOrderLiveTime,
		MatcherFee: 300_000,
		FeeAsset:   model.NativeAsset,
	}
	o.Sign(sk)
	return o
}

func limit(t *testing.T, seed byte, side model.Side, price model.Price, amount model.Amount) *model.AcceptedOrder {
	return model.NewLimitOrder(newTestOrder(t, seed, side, price, amount))
}

func TestBookBestOrdering(t *testing.T) {
	book := NewOrderBook(testPair)
	require.NoError(t, book.Add(limit(t, 1, model.Sell, 2000, 1_000_000)))
	require.NoError(t, book.Add(limit(t, 2, model.Sell, 1000, 1_000_000)))
	require.NoError(t, book.Add(limit(t, 3, model.Buy, 500, 1_000_000)))
	require.NoError(t, book.Add(limit(t, 4, model.Buy, 800, 1_000_000)))

	assert.Equal(t, model.Price(1000), book.Best(model.Sell).Price())
	assert.Equal(t, model.Price(800), book.Best(model.Buy).Price())
	assert.Equal(t, 4, book.Len())
}

func TestBookTimePriorityWithinLevel(t *testing.T) {
	book := NewOrderBook(testPair)
	first := limit(t, 1, model.Sell, 1000, 1_000_000)
	second := limit(t, 2, model.Sell, 1000, 2_000_000)
	require.NoError(t, book.Add(first))
	require.NoError(t, book.Add(second))

	assert.Equal(t, first.ID(), book.Best(model.Sell).ID())
	popped := book.PopBest(model.Sell)
	assert.Equal(t, first.ID(), popped.ID())
	assert.Equal(t, second.ID(), book.Best(model.Sell).ID())
}

func TestBookRejectsDuplicatesAndMarket(t *testing.T) {
	book := NewOrderBook(testPair)
	lo := limit(t, 1, model.Sell, 1000, 1_000_000)
	require.NoError(t, book.Add(lo))
	assert.ErrorIs(t, book.Add(lo), model.ErrDuplicateOrder)

	mo := model.NewMarketOrder(newTestOrder(t, 2, model.Buy, 1000, 1_000_000), 10)
	assert.Error(t, book.Add(mo))
}

func TestBookReplaceBest(t *testing.T) {
	book := NewOrderBook(testPair)
	lo := limit(t, 1, model.Sell, 1000, 1_000_000)
	require.NoError(t, book.Add(lo))

	remainder := lo.Partial(600_000, 180_000)
	require.NoError(t, book.ReplaceBest(model.Sell, remainder))
	assert.Equal(t, model.Amount(600_000), book.Best(model.Sell).Amount)

	levels := book.Levels(model.Sell)
	require.Len(t, levels, 1)
	assert.Equal(t, model.Amount(600_000), levels[0].Amount)
}

func TestBookCancel(t *testing.T) {
	book := NewOrderBook(testPair)
	a := limit(t, 1, model.Sell, 1000, 1_000_000)
	b := limit(t, 2, model.Sell, 1000, 2_000_000)
	require.NoError(t, book.Add(a))
	require.NoError(t, book.Add(b))

	removed, err := book.Cancel(a.Order.ID())
	require.NoError(t, err)
	assert.Equal(t, a.ID(), removed.ID())
	assert.Equal(t, 1, book.Len())

	_, err = book.Cancel(a.Order.ID())
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}

func TestBookLevelsAggregate(t *testing.T) {
	book := NewOrderBook(testPair)
	require.NoError(t, book.Add(limit(t, 1, model.Buy, 1000, 1_000_000)))
	require.NoError(t, book.Add(limit(t, 2, model.Buy, 1000, 500_000)))
	require.NoError(t, book.Add(limit(t, 3, model.Buy, 900, 700_000)))

	levels := book.Levels(model.Buy)
	require.Len(t, levels, 2)
	// Bids come highest first, amounts summed per price.
	assert.Equal(t, model.LevelAgg{Price: 1000, Amount: 1_500_000}, levels[0])
	assert.Equal(t, model.LevelAgg{Price: 900, Amount: 700_000}, levels[1])

	top := book.Top()
	require.NotNil(t, top.BestBid)
	assert.Equal(t, model.Price(1000), top.BestBid.Price)
	assert.Nil(t, top.BestAsk)
}
