package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCost(t *testing.T) {
	tests := []struct {
		amount, price, want uint64
	}{
		{1_000_000, 1000, 10},
		{1_000_000, PriceConstant, 1_000_000},
		{99, 1_000_000, 0}, // dust at this price
		{1, PriceConstant, 1},
		{123_456_789, 250_000_000, 308_641_972},
	}
	for _, tc := range tests {
		got, err := Cost(tc.amount, tc.price)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "cost(%d, %d)", tc.amount, tc.price)
	}
}

func TestCostOverflow(t *testing.T) {
	_, err := Cost(^uint64(0), ^uint64(0))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestCorrectNeverExceedsInput(t *testing.T) {
	for _, tc := range []struct{ amount, price uint64 }{
		{1_000_000, 1000},
		{999_999, 1000},
		{99, 1_000_000},
		{12_345_678, 333},
		{1, 1},
	} {
		got, err := Correct(tc.amount, tc.price)
		require.NoError(t, err)
		assert.LessOrEqual(t, got, tc.amount)

		// Re-conversion through the price settles to the same total.
		wantSettled, err := Cost(tc.amount, tc.price)
		require.NoError(t, err)
		gotSettled, err := Cost(got, tc.price)
		require.NoError(t, err)
		assert.Equal(t, wantSettled, gotSettled, "correct(%d, %d)", tc.amount, tc.price)
	}
}

func TestCorrectTrimsDust(t *testing.T) {
	// 99 units at price 10^6 settle to zero; the corrected amount is zero,
	// not some free-riding residue.
	got, err := Correct(99, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got)
}

func TestMinAmountForPrice(t *testing.T) {
	tests := []struct{ price, want uint64 }{
		{PriceConstant, 1},
		{1000, 100_000},
		{3, 33_333_334},
		{1, PriceConstant},
	}
	for _, tc := range tests {
		got, err := MinAmountForPrice(tc.price)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "minAmountForPrice(%d)", tc.price)

		cost, err := Cost(got, tc.price)
		require.NoError(t, err)
		assert.NotZero(t, cost)
		if got > 1 {
			cost, err = Cost(got-1, tc.price)
			require.NoError(t, err)
			assert.Zero(t, cost)
		}
	}
	_, err := MinAmountForPrice(0)
	assert.ErrorIs(t, err, ErrZeroPrice)
}

func TestPartialFee(t *testing.T) {
	got, err := PartialFee(300_000, 1_000_000, 400_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(120_000), got)

	_, err = PartialFee(1, 100, 101)
	assert.ErrorIs(t, err, ErrOutOfRange)

	// Large values exercise the 128-bit intermediate.
	got, err = PartialFee(1<<62, 1<<62, 1<<61)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<61), got)
}

func TestPartialFeeProportionality(t *testing.T) {
	// Summing apportioned fees over any partition never exceeds the total.
	const fee, total = 299_999, 1_000_000
	partitions := [][]uint64{
		{1_000_000},
		{400_000, 600_000},
		{1, 999_999},
		{333_333, 333_333, 333_334},
		{100_000, 100_000, 100_000, 100_000, 600_000},
	}
	for _, parts := range partitions {
		var sum uint64
		for _, p := range parts {
			f, err := PartialFee(fee, total, p)
			require.NoError(t, err)
			sum += f
		}
		assert.LessOrEqual(t, sum, uint64(fee), "partition %v", parts)
	}
}

func TestNormalizeAmount(t *testing.T) {
	v := decimal.RequireFromString("1.5")
	got, err := NormalizeAmount(v, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(150_000_000), got)

	// Truncation toward zero, never rounding.
	v = decimal.RequireFromString("0.123456789")
	got, err = NormalizeAmount(v, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(12_345_678), got)

	_, err = NormalizeAmount(decimal.RequireFromString("-1"), 8)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = NormalizeAmount(decimal.RequireFromString("1"), 9)
	assert.ErrorIs(t, err, ErrBadDecimals)
}

func TestNormalizePrice(t *testing.T) {
	// Equal decimals: the exponent is the price constant's 8.
	got, err := NormalizePrice(decimal.RequireFromString("0.00001"), 8, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), got)

	// Amount asset coarser than price asset shifts the exponent up.
	got, err = NormalizePrice(decimal.RequireFromString("2"), 2, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(2)*100_000_000*1_000_000, got)
}

func TestDenormalizeRoundTrip(t *testing.T) {
	amount := uint64(150_000_000)
	d := DenormalizeAmount(amount, 8)
	back, err := NormalizeAmount(d, 8)
	require.NoError(t, err)
	assert.Equal(t, amount, back)

	price := uint64(1000)
	dp := DenormalizePrice(price, 8, 8)
	backP, err := NormalizePrice(dp, 8, 8)
	require.NoError(t, err)
	assert.Equal(t, price, backP)
}

func TestCheckBounds(t *testing.T) {
	assert.NoError(t, CheckAmount(1))
	assert.NoError(t, CheckAmount(MaxAmount-1))
	assert.Error(t, CheckAmount(0))
	assert.Error(t, CheckAmount(MaxAmount))

	assert.NoError(t, CheckPrice(1))
	assert.NoError(t, CheckPrice(MaxPrice))
	assert.Error(t, CheckPrice(0))
	assert.Error(t, CheckPrice(MaxPrice+1))
}
