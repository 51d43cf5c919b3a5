// Package custody declares the asset-transfer capabilities the core consumes.
// The underlying transfer semantics (allowances, ownership, balances) belong
// to the host ledger's token primitives; the core only calls into them and
// maps their failures onto the error values below.
package custody

import (
	"context"
	"errors"

	"github.com/holiman/uint256"

	"github.com/sendgft/contracts/internal/app/domain/asset"
)

var (
	// ErrAllowanceExceeded means the spender's allowance does not cover the
	// requested transfer.
	ErrAllowanceExceeded = errors.New("custody: transfer amount exceeds allowance")

	// ErrBalanceExceeded means the holder's balance does not cover the
	// requested transfer.
	ErrBalanceExceeded = errors.New("custody: transfer amount exceeds balance")

	// ErrInsufficientFunds means a native-currency transfer exceeds the
	// sender's balance.
	ErrInsufficientFunds = errors.New("custody: insufficient funds")

	// ErrNotOwnerOrApproved means the operator may not move the NFT.
	ErrNotOwnerOrApproved = errors.New("custody: transfer caller is not owner nor approved")

	// ErrNonexistentToken means the NFT id has never been minted.
	ErrNonexistentToken = errors.New("custody: operator query for nonexistent token")
)

// NativeLedger moves the native settlement currency between accounts.
type NativeLedger interface {
	// TransferNative moves amount from one account to another, failing with
	// ErrInsufficientFunds when the sender's balance is too low.
	TransferNative(ctx context.Context, from, to asset.Address, amount *uint256.Int) error

	// NativeBalance reports an account's native balance.
	NativeBalance(ctx context.Context, account asset.Address) (*uint256.Int, error)
}

// TokenLedger moves fungible tokens between accounts.
type TokenLedger interface {
	// TransferToken moves tokens out of the holder's own balance, failing
	// with ErrBalanceExceeded when it is too low.
	TransferToken(ctx context.Context, token, from, to asset.Address, amount *uint256.Int) error

	// TransferTokenFrom moves tokens on behalf of a holder, subject to the
	// spender's allowance. Fails with ErrAllowanceExceeded or
	// ErrBalanceExceeded.
	TransferTokenFrom(ctx context.Context, token, spender, from, to asset.Address, amount *uint256.Int) error

	// TokenBalance reports a holder's balance of a token.
	TokenBalance(ctx context.Context, token, holder asset.Address) (*uint256.Int, error)

	// TokenAllowance reports the spender's remaining allowance over the
	// owner's tokens.
	TokenAllowance(ctx context.Context, token, owner, spender asset.Address) (*uint256.Int, error)
}

// NFTLedger moves non-fungible tokens between accounts.
type NFTLedger interface {
	// TransferNFT moves a single NFT on behalf of operator, which must be
	// the owner or approved. Fails with ErrNonexistentToken or
	// ErrNotOwnerOrApproved.
	TransferNFT(ctx context.Context, token asset.Address, operator, from, to asset.Address, tokenID uint64) error

	// NFTOwner reports the current owner of an NFT.
	NFTOwner(ctx context.Context, token asset.Address, tokenID uint64) (asset.Address, error)

	// NFTApproved reports whether the operator may move an NFT, as the
	// owner or through an approval. Fails with ErrNonexistentToken.
	NFTApproved(ctx context.Context, token asset.Address, tokenID uint64, operator asset.Address) (bool, error)
}

// Bank bundles the three ledgers; the concrete implementation is supplied by
// the host environment.
type Bank interface {
	NativeLedger
	TokenLedger
	NFTLedger
}
