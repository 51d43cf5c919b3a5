// Package asset defines the value types shared by every ledger component:
// addresses, token references and checked 256-bit amount arithmetic.
package asset

import (
	"errors"
	"strings"

	"github.com/holiman/uint256"
)

// Address identifies an account, token contract or module on the host ledger.
// Addresses are opaque to the core; equality is the only operation performed.
type Address string

// ZeroAddress doubles as the fee-token marker for the native settlement
// currency, matching the wire convention of the public call surface.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// IsZero reports whether the address is empty or the zero address.
func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

// Normalize lower-cases an address so map lookups are case-insensitive.
func (a Address) Normalize() Address {
	return Address(strings.ToLower(strings.TrimSpace(string(a))))
}

// TokenValue pairs a fungible token contract with an amount.
type TokenValue struct {
	TokenContract Address
	Value         *uint256.Int
}

// NFTValue pairs a non-fungible token contract with a token id.
type NFTValue struct {
	TokenContract Address
	TokenID       uint64
}

// Fee describes a card usage fee: the token it is denominated in and the
// amount due per use. A zero-address token means the native currency.
type Fee struct {
	TokenContract Address
	Value         *uint256.Int
}

// ErrArithmeticFault is returned whenever checked arithmetic would overflow
// or underflow. Amounts are never silently wrapped.
var ErrArithmeticFault = errors.New("asset: arithmetic fault")

// Zero returns a fresh zero amount.
func Zero() *uint256.Int {
	return uint256.NewInt(0)
}

// Clone returns a defensive copy, treating nil as zero.
func Clone(x *uint256.Int) *uint256.Int {
	if x == nil {
		return uint256.NewInt(0)
	}
	return x.Clone()
}

// IsZero reports whether x is nil or zero.
func IsZero(x *uint256.Int) bool {
	return x == nil || x.IsZero()
}

// Add returns a+b, failing with ErrArithmeticFault on overflow.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(Clone(a), Clone(b))
	if overflow {
		return nil, ErrArithmeticFault
	}
	return sum, nil
}

// Sub returns a-b, failing with ErrArithmeticFault on underflow.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(Clone(a), Clone(b))
	if underflow {
		return nil, ErrArithmeticFault
	}
	return diff, nil
}

// MulDiv returns a*b/den with a 512-bit intermediate product, failing with
// ErrArithmeticFault when the result does not fit 256 bits or den is zero.
func MulDiv(a, b, den *uint256.Int) (*uint256.Int, error) {
	if IsZero(den) {
		return nil, ErrArithmeticFault
	}
	res, overflow := new(uint256.Int).MulDivOverflow(Clone(a), Clone(b), Clone(den))
	if overflow {
		return nil, ErrArithmeticFault
	}
	return res, nil
}

// BpsDenominator is the basis-point scale used for the marketplace tax.
const BpsDenominator = 10000

// BpsShare returns amount*bps/10000, the portion of an amount expressed in
// basis points.
func BpsShare(amount *uint256.Int, bps uint64) (*uint256.Int, error) {
	if bps > BpsDenominator {
		return nil, ErrArithmeticFault
	}
	return MulDiv(amount, uint256.NewInt(bps), uint256.NewInt(BpsDenominator))
}
