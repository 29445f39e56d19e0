package settlement

import (
	"fmt"

	"github.com/Yusufzhafir/go-dexmatcher/internal/engine"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/rs/zerolog"
)

// Builder produces signed exchange transactions from execution events.
type Builder struct {
	matcher crypto.PublicKey
	sk      crypto.SecretKey
	fee     model.Amount
	log     zerolog.Logger
}

// NewBuilder configures the builder with the matcher key pair and the flat
// node fee attached to every settlement.
func NewBuilder(matcher crypto.PublicKey, sk crypto.SecretKey, fee model.Amount, log zerolog.Logger) *Builder {
	return &Builder{
		matcher: matcher,
		sk:      sk,
		fee:     fee,
		log:     log.With().Str("component", "settlement").Logger(),
	}
}

// FromExecuted settles one fill: the buy leg becomes order1, the sell leg
// order2, the price is the resting order's, and the matcher fee is the sum
// of both proportional parts. The returned transaction is already signed.
func (b *Builder) FromExecuted(ev engine.OrderExecuted) (*ExchangeTransaction, error) {
	buy := ev.Buy()
	sell := ev.Sell()
	if buy.Order.Matcher != b.matcher || sell.Order.Matcher != b.matcher {
		return nil, fmt.Errorf("execution names matcher %s, signing as %s", buy.Order.Matcher, b.matcher)
	}
	tx := &ExchangeTransaction{
		BuyOrder:   buy.Order,
		SellOrder:  sell.Order,
		Price:      ev.Price,
		Amount:     ev.Executed,
		MatcherFee: ev.BuyFee() + ev.SellFee(),
		Fee:        b.fee,
		Timestamp:  ev.Ts,
	}
	tx.Sign(b.sk)
	b.log.Debug().
		Str("tx", tx.ID().String()).
		Uint64("amount", uint64(tx.Amount)).
		Uint64("price", uint64(tx.Price)).
		Msg("settlement built")
	return tx, nil
}
