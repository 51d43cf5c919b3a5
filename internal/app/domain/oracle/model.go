// Package oracle defines the exchange-rate model used to settle card fees
// denominated in tokens other than the native settlement currency.
package oracle

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/sendgft/contracts/internal/app/domain/asset"
)

// RateScale is the fixed-point scale of stored exchange rates: a rate of
// 2 * RateScale from A to B means 1 unit of A buys 2 units of B.
var RateScale = uint256.NewInt(1e18)

// RatePair is a bidirectional exchange rate between two tokens. Both
// directions are stored together; setting one without the other is not
// possible.
type RatePair struct {
	TokenA asset.Address
	TokenB asset.Address
	RateAB *uint256.Int // units of B per RateScale units of A
	RateBA *uint256.Int // units of A per RateScale units of B
}

var (
	// ErrRateMismatch rejects a rate pair whose two directions are not
	// reciprocal within the stored precision.
	ErrRateMismatch = errors.New("oracle: rate mismatch")

	// ErrUnknownRate rejects quotes for pairs with no stored rate.
	ErrUnknownRate = errors.New("oracle: unknown rate")

	// ErrInputInsufficient rejects trades whose supplied input is below the
	// quoted amount.
	ErrInputInsufficient = errors.New("oracle: input insufficient")

	// ErrInsufficientInventory rejects trades the oracle cannot serve from
	// its own token inventory.
	ErrInsufficientInventory = errors.New("oracle: insufficient inventory")

	// ErrMustBeAdmin rejects rate mutations from non-admin identities.
	ErrMustBeAdmin = errors.New("oracle: must be admin")
)

// Reciprocal returns the RateScale-scaled reciprocal of rate.
func Reciprocal(rate *uint256.Int) (*uint256.Int, error) {
	if asset.IsZero(rate) {
		return nil, ErrRateMismatch
	}
	return asset.MulDiv(RateScale, RateScale, rate)
}

// CheckReciprocal verifies that rateBA is the reciprocal of rateAB within one
// quotient unit of the stored precision.
func CheckReciprocal(rateAB, rateBA *uint256.Int) error {
	want, err := Reciprocal(rateAB)
	if err != nil {
		return err
	}
	diff := new(uint256.Int)
	if rateBA.Cmp(want) >= 0 {
		diff.Sub(asset.Clone(rateBA), want)
	} else {
		diff.Sub(want, asset.Clone(rateBA))
	}
	if diff.CmpUint64(1) > 0 {
		return ErrRateMismatch
	}
	return nil
}
