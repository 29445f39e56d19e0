// Package money implements the fixed-point arithmetic used by the matcher.
// All on-chain quantities are unsigned integers in the smallest asset unit;
// prices are scaled by PriceConstant. Decimal values appear only at the
// system boundary (Normalize/Denormalize).
package money

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/shopspring/decimal"
)

const (
	// PriceConstant is the fixed-point denominator for prices: a price of
	// 1.0 priceAsset per amountAsset is stored as 10^8.
	PriceConstant uint64 = 100_000_000

	// MaxAmount bounds any order amount (exclusive).
	MaxAmount uint64 = PriceConstant * PriceConstant

	// MaxPrice bounds any order price (inclusive).
	MaxPrice uint64 = PriceConstant * PriceConstant

	// MaxDecimals is the largest per-asset decimals value.
	MaxDecimals = 8
)

var (
	ErrOverflow     = errors.New("money: arithmetic overflow")
	ErrZeroPrice    = errors.New("money: price must be positive")
	ErrOutOfRange   = errors.New("money: value out of range")
	ErrBadDecimals  = errors.New("money: invalid decimals")
	ErrNotAnInteger = errors.New("money: value does not fit an integer amount")
)

// mulDiv computes a*b/c with a 128-bit intermediate, truncating toward zero.
func mulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrZeroPrice
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, c)
	return q, nil
}

// mulDivCeil is mulDiv rounded up.
func mulDivCeil(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrZeroPrice
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, ErrOverflow
	}
	q, r := bits.Div64(hi, lo, c)
	if r > 0 {
		if q == ^uint64(0) {
			return 0, ErrOverflow
		}
		q++
	}
	return q, nil
}

// MulDiv computes a*b/c with a 128-bit intermediate, truncating toward zero.
func MulDiv(a, b, c uint64) (uint64, error) {
	return mulDiv(a, b, c)
}

// AddChecked sums a and b, rejecting wraparound.
func AddChecked(a, b uint64) (uint64, error) {
	s := a + b
	if s < a {
		return 0, ErrOverflow
	}
	return s, nil
}

// Cost is the price-asset total settled for amount units at price:
// floor(price*amount/PriceConstant).
func Cost(amount, price uint64) (uint64, error) {
	return mulDiv(price, amount, PriceConstant)
}

// Correct trims an amount to the smallest quantity that settles to the same
// price-asset total, so no residual dust can be traded for free. The result
// never exceeds the input.
func Correct(amount, price uint64) (uint64, error) {
	settled, err := Cost(amount, price)
	if err != nil {
		return 0, err
	}
	return mulDivCeil(settled, PriceConstant, price)
}

// MinAmountForPrice is the smallest amount whose Cost at price is non-zero:
// ceil(PriceConstant/price).
func MinAmountForPrice(price uint64) (uint64, error) {
	if price == 0 {
		return 0, ErrZeroPrice
	}
	m := PriceConstant / price
	if PriceConstant%price != 0 {
		m++
	}
	return m, nil
}

// PartialFee apportions a total fee to a partial execution:
// floor(fee*partial/totalAmount). Summing the apportioned parts over any
// partition of totalAmount never exceeds fee.
func PartialFee(fee, totalAmount, partial uint64) (uint64, error) {
	if totalAmount == 0 {
		return 0, ErrOutOfRange
	}
	if partial > totalAmount {
		return 0, fmt.Errorf("%w: partial %d exceeds total %d", ErrOutOfRange, partial, totalAmount)
	}
	return mulDiv(fee, partial, totalAmount)
}

// CheckAmount reports whether a is a usable order amount.
func CheckAmount(a uint64) error {
	if a == 0 || a >= MaxAmount {
		return fmt.Errorf("%w: amount %d", ErrOutOfRange, a)
	}
	return nil
}

// CheckPrice reports whether p is a usable order price.
func CheckPrice(p uint64) error {
	if p == 0 || p > MaxPrice {
		return fmt.Errorf("%w: price %d", ErrOutOfRange, p)
	}
	return nil
}

// NormalizeAmount converts a client decimal value into integer units of an
// asset with the given decimals. The conversion truncates toward zero.
func NormalizeAmount(v decimal.Decimal, assetDecimals uint8) (uint64, error) {
	if assetDecimals > MaxDecimals {
		return 0, ErrBadDecimals
	}
	return toUnits(v, int32(assetDecimals))
}

// NormalizePrice converts a client decimal price into the fixed-point integer
// form: v * 10^(8 + priceAssetDecimals - amountAssetDecimals), truncated.
func NormalizePrice(v decimal.Decimal, amountAssetDecimals, priceAssetDecimals uint8) (uint64, error) {
	if amountAssetDecimals > MaxDecimals || priceAssetDecimals > MaxDecimals {
		return 0, ErrBadDecimals
	}
	exp := int32(8) + int32(priceAssetDecimals) - int32(amountAssetDecimals)
	return toUnits(v, exp)
}

// DenormalizeAmount renders integer units as a decimal value. Presentation
// only; the core never stores decimals.
func DenormalizeAmount(units uint64, assetDecimals uint8) decimal.Decimal {
	return decimal.New(int64(units), 0).Shift(-int32(assetDecimals))
}

// DenormalizePrice renders a fixed-point price as a decimal value.
func DenormalizePrice(price uint64, amountAssetDecimals, priceAssetDecimals uint8) decimal.Decimal {
	exp := int32(8) + int32(priceAssetDecimals) - int32(amountAssetDecimals)
	return decimal.New(int64(price), 0).Shift(-exp)
}

func toUnits(v decimal.Decimal, exp int32) (uint64, error) {
	if v.IsNegative() {
		return 0, fmt.Errorf("%w: negative value %s", ErrOutOfRange, v)
	}
	scaled := v.Shift(exp).Truncate(0)
	bi := scaled.BigInt()
	if !bi.IsUint64() {
		return 0, ErrOverflow
	}
	return bi.Uint64(), nil
}
