package asset

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestAddressIsZero(t *testing.T) {
	if !Address("").IsZero() {
		t.Fatal("empty address should be zero")
	}
	if !ZeroAddress.IsZero() {
		t.Fatal("zero address should be zero")
	}
	if Address("0xabc").IsZero() {
		t.Fatal("non-zero address reported zero")
	}
}

func TestNormalize(t *testing.T) {
	if Address(" 0xABCdef ").Normalize() != Address("0xabcdef") {
		t.Fatalf("normalize: got %q", Address(" 0xABCdef ").Normalize())
	}
}

func TestCheckedAdd(t *testing.T) {
	sum, err := Add(uint256.NewInt(2), uint256.NewInt(3))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if sum.Uint64() != 5 {
		t.Fatalf("add = %s, want 5", sum)
	}

	max := new(uint256.Int).SetAllOne()
	if _, err := Add(max, uint256.NewInt(1)); !errors.Is(err, ErrArithmeticFault) {
		t.Fatalf("overflow: got %v, want ErrArithmeticFault", err)
	}
}

func TestCheckedSub(t *testing.T) {
	diff, err := Sub(uint256.NewInt(5), uint256.NewInt(3))
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if diff.Uint64() != 2 {
		t.Fatalf("sub = %s, want 2", diff)
	}

	if _, err := Sub(uint256.NewInt(1), uint256.NewInt(2)); !errors.Is(err, ErrArithmeticFault) {
		t.Fatalf("underflow: got %v, want ErrArithmeticFault", err)
	}
}

func TestMulDiv(t *testing.T) {
	res, err := MulDiv(uint256.NewInt(10), uint256.NewInt(3), uint256.NewInt(4))
	if err != nil {
		t.Fatalf("muldiv: %v", err)
	}
	if res.Uint64() != 7 {
		t.Fatalf("muldiv = %s, want 7 (floor of 30/4)", res)
	}

	if _, err := MulDiv(uint256.NewInt(1), uint256.NewInt(1), Zero()); !errors.Is(err, ErrArithmeticFault) {
		t.Fatalf("zero denominator: got %v, want ErrArithmeticFault", err)
	}

	max := new(uint256.Int).SetAllOne()
	if _, err := MulDiv(max, uint256.NewInt(2), uint256.NewInt(1)); !errors.Is(err, ErrArithmeticFault) {
		t.Fatalf("overflow: got %v, want ErrArithmeticFault", err)
	}
}

func TestBpsShare(t *testing.T) {
	// 10% of 4 whole coins at 18 decimals.
	four := new(uint256.Int).Mul(uint256.NewInt(4), uint256.NewInt(1e18))
	tax, err := BpsShare(four, 1000)
	if err != nil {
		t.Fatalf("bps share: %v", err)
	}
	want := new(uint256.Int).Mul(uint256.NewInt(4), uint256.NewInt(1e17))
	if tax.Cmp(want) != 0 {
		t.Fatalf("tax = %s, want %s", tax, want)
	}

	if _, err := BpsShare(four, 10001); !errors.Is(err, ErrArithmeticFault) {
		t.Fatalf("bps over denominator: got %v, want ErrArithmeticFault", err)
	}
}

func TestCloneIsDefensive(t *testing.T) {
	orig := uint256.NewInt(7)
	cp := Clone(orig)
	cp.AddUint64(cp, 1)
	if orig.Uint64() != 7 {
		t.Fatalf("clone aliased original: %s", orig)
	}
	if Clone(nil).Sign() != 0 {
		t.Fatal("clone of nil should be zero")
	}
}
