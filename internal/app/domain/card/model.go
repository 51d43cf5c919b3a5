// Package card defines the card template model and the fee/tax ledger
// entries the marketplace maintains per settled card use.
package card

import (
	"errors"
	"time"

	"github.com/holiman/uint256"

	"github.com/sendgft/contracts/internal/app/domain/asset"
)

// Card is a purchasable design gating gift creation. A card can only be used
// while both Enabled and Approved are true. Enabled is owner-controlled;
// Approved is admin-controlled.
type Card struct {
	ID          uint64
	Owner       asset.Address
	ContentHash string
	Fee         asset.Fee
	Enabled     bool
	Approved    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Settlement is the audit record of a single fee settlement.
type Settlement struct {
	ID        string
	CardID    uint64
	CardOwner asset.Address
	FeeToken  asset.Address
	FeeAmount *uint256.Int
	Tax       *uint256.Int
	Earnings  *uint256.Int
	CreatedAt time.Time
}

var (
	// ErrAlreadyAdded rejects a second card with the same content hash.
	ErrAlreadyAdded = errors.New("cardmarket: already added")

	// ErrApprovalInvalid rejects an addCard whose admin approval signature
	// does not verify over the card's content hash.
	ErrApprovalInvalid = errors.New("cardmarket: approval invalid")

	// ErrUnsupportedFeeToken rejects fees denominated in tokens outside the
	// allowed set.
	ErrUnsupportedFeeToken = errors.New("cardmarket: unsupported fee token")

	// ErrNotEnabled rejects use of a card whose owner disabled it.
	ErrNotEnabled = errors.New("cardmarket: card not enabled")

	// ErrNotApproved rejects use of a card the admin has not approved.
	ErrNotApproved = errors.New("cardmarket: card not approved")

	// ErrMustBeOwner rejects card mutations by anyone but the card owner.
	ErrMustBeOwner = errors.New("cardmarket: must be owner")

	// ErrMustBeAdmin rejects privileged calls from non-admin identities.
	ErrMustBeAdmin = errors.New("cardmarket: must be admin")

	// ErrNonexistentToken rejects operations against unknown card ids.
	ErrNonexistentToken = errors.New("cardmarket: nonexistent token")

	// ErrInputInsufficient rejects a settlement whose supplied native input
	// does not cover the quoted fee conversion.
	ErrInputInsufficient = errors.New("cardmarket: input insufficient")
)
