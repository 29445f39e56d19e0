package settlement

import (
	"fmt"

	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/money"
)

// ValidationKind names the predicate a rejected transaction failed.
type ValidationKind string

const (
	KindValueOutOfBounds ValidationKind = "value-out-of-bounds"
	KindAssetMismatch    ValidationKind = "asset-mismatch"
	KindNotCrossed       ValidationKind = "orders-not-crossed"
	KindPriceMismatch    ValidationKind = "price-mismatch"
	KindOrderInvalid     ValidationKind = "order-invalid"
	KindOverFill         ValidationKind = "over-fill"
	KindFeeMismatch      ValidationKind = "fee-mismatch"
	KindSignatureInvalid ValidationKind = "signature-invalid"
)

// ValidationError is the single rejection type; Kind identifies the failed
// predicate.
type ValidationError struct {
	Kind ValidationKind
	Msg  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("settlement validation failed (%s): %s", e.Kind, e.Msg)
}

func invalid(kind ValidationKind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// MatchHistory exposes how much of an order prior settlements already
// consumed, keyed by order id.
type MatchHistory interface {
	TotalExecuted(id crypto.Digest) (model.Amount, error)
}

// Validator re-checks candidate exchange transactions against their embedded
// orders and the prior-match history. It either accepts fully or rejects
// with the failed predicate; there is no partial acceptance.
type Validator struct {
	history MatchHistory
}

func NewValidator(history MatchHistory) *Validator {
	return &Validator{history: history}
}

// Validate runs all predicates and returns nil only if every one holds.
func (v *Validator) Validate(tx *ExchangeTransaction) error {
	buy, sell := tx.BuyOrder, tx.SellOrder

	if tx.Fee == 0 || tx.Amount == 0 || tx.Price == 0 {
		return invalid(KindValueOutOfBounds, "fee=%d amount=%d price=%d must all be positive", tx.Fee, tx.Amount, tx.Price)
	}
	if buy.Side != model.Buy || sell.Side != model.Sell {
		return invalid(KindNotCrossed, "order1 must be the buy order and order2 the sell order")
	}
	if buy.Matcher != sell.Matcher {
		return invalid(KindAssetMismatch, "orders name different matchers %s and %s", buy.Matcher, sell.Matcher)
	}
	if buy.SpendAsset() != sell.ReceiveAsset() || sell.SpendAsset() != buy.ReceiveAsset() {
		return invalid(KindAssetMismatch, "orders trade different pairs %s and %s", buy.Pair, sell.Pair)
	}
	if buy.Pair.PriceAsset != sell.Pair.PriceAsset {
		return invalid(KindAssetMismatch, "orders price in different assets")
	}
	// The crossing rule is symmetric in the pair's asset roles: a buy at or
	// above the sell's limit crosses, full stop.
	if buy.Price < sell.Price {
		return invalid(KindNotCrossed, "buy price %d below sell price %d", buy.Price, sell.Price)
	}
	if tx.Price != buy.Price && tx.Price != sell.Price {
		return invalid(KindPriceMismatch, "price %d is neither party's limit", tx.Price)
	}
	legs := []struct {
		name  string
		order *model.Order
	}{{"buy", buy}, {"sell", sell}}
	for _, leg := range legs {
		if err := leg.order.Validate(); err != nil {
			return invalid(KindOrderInvalid, "%s order: %v", leg.name, err)
		}
		if leg.order.Expired(tx.Timestamp) {
			return invalid(KindOrderInvalid, "%s order expired at %d, settled at %d", leg.name, leg.order.Expiration, tx.Timestamp)
		}
	}
	for _, leg := range legs {
		prior, err := v.history.TotalExecuted(leg.order.ID())
		if err != nil {
			return fmt.Errorf("settlement: match history for %s order: %w", leg.name, err)
		}
		if prior+tx.Amount > leg.order.Amount {
			return invalid(KindOverFill, "%s order filled %d of %d, cannot take %d more", leg.name, prior, leg.order.Amount, tx.Amount)
		}
	}
	buyFee, err := money.PartialFee(uint64(buy.MatcherFee), uint64(buy.Amount), uint64(tx.Amount))
	if err != nil {
		return invalid(KindFeeMismatch, "buy fee apportionment: %v", err)
	}
	sellFee, err := money.PartialFee(uint64(sell.MatcherFee), uint64(sell.Amount), uint64(tx.Amount))
	if err != nil {
		return invalid(KindFeeMismatch, "sell fee apportionment: %v", err)
	}
	if uint64(tx.MatcherFee) != buyFee+sellFee {
		return invalid(KindFeeMismatch, "matcher fee %d, proportional sum is %d", tx.MatcherFee, buyFee+sellFee)
	}
	if !tx.VerifySignature() {
		return invalid(KindSignatureInvalid, "matcher signature does not verify against %s", buy.Matcher)
	}
	return nil
}
