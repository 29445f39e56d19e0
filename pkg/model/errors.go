package model

import "errors"

// Error kinds surfaced by the core. Arithmetic failures out of pkg/money are
// domain errors as well and wrap money.ErrOverflow / money.ErrOutOfRange.
var (
	ErrInvalidAssetPair = errors.New("invalid asset pair")

	// ErrOrderRejected covers admission failures: bad price or amount,
	// expired or over-long lifetime, dust amounts.
	ErrOrderRejected = errors.New("order rejected")

	// ErrBalanceInsufficient reports that the tradable balance cannot fund
	// the order's required balance, or that a market order's spendable cap
	// allows no execution at all.
	ErrBalanceInsufficient = errors.New("insufficient balance")

	// ErrOrderNotFound reports a cancel or query for an unknown order.
	ErrOrderNotFound = errors.New("order not found")

	// ErrDuplicateOrder reports a submission whose signature is already
	// known.
	ErrDuplicateOrder = errors.New("order already submitted")
)
