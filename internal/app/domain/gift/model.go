// Package gift defines the gift claim-token model. A gift escrows a bundle of
// native currency, fungible tokens and NFTs for a designated recipient until
// it is claimed, and optionally records a content reference when opened.
package gift

import (
	"errors"
	"time"

	"github.com/holiman/uint256"

	"github.com/sendgft/contracts/internal/app/domain/asset"
)

// Params captures the caller-supplied portion of a gift. It is fixed at
// creation time.
type Params struct {
	Recipient   asset.Address
	CardID      uint64
	Message     string
	NativeValue *uint256.Int
	ERC20       []asset.TokenValue
	NFTs        []asset.NFTValue
}

// Gift is the persistent record of a single gift token.
//
// A zero ClaimedAt means the escrowed bundle is still custodied by the
// engine; a non-zero ClaimedAt means it has been released exactly once.
type Gift struct {
	ID          uint64
	Sender      asset.Address
	CreatedAt   time.Time
	ClaimedAt   time.Time
	Opened      bool
	ContentHash string
	Params      Params
}

// Claimed reports whether the escrow has been released.
func (g Gift) Claimed() bool {
	return !g.ClaimedAt.IsZero()
}

var (
	// ErrMustBeOwner rejects claim attempts by anyone other than the
	// recipient, including claims against ids that were never minted.
	ErrMustBeOwner = errors.New("gifter: must be owner")

	// ErrAlreadyClaimed rejects a second claim of the same gift.
	ErrAlreadyClaimed = errors.New("gifter: already claimed")

	// ErrAlreadyOpened rejects a second open of the same gift.
	ErrAlreadyOpened = errors.New("gifter: already opened")

	// ErrEmptyMessage rejects creation without a message.
	ErrEmptyMessage = errors.New("gifter: empty message")

	// ErrNonexistentToken rejects queries against ids that were never minted.
	ErrNonexistentToken = errors.New("gifter: nonexistent token")

	// ErrMustBeAdmin rejects privileged calls from non-admin identities.
	ErrMustBeAdmin = errors.New("gifter: must be admin")
)
