package storage

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/sendgft/contracts/internal/app/domain/asset"
	"github.com/sendgft/contracts/internal/app/domain/card"
	"github.com/sendgft/contracts/internal/app/domain/gift"
	"github.com/sendgft/contracts/internal/app/domain/oracle"
	"github.com/sendgft/contracts/internal/app/domain/registry"
)

// GiftStore persists gift records. Ids are sequential, assigned on create and
// never reused.
type GiftStore interface {
	CreateGift(ctx context.Context, g gift.Gift) (gift.Gift, error)
	UpdateGift(ctx context.Context, g gift.Gift) (gift.Gift, error)
	GetGift(ctx context.Context, id uint64) (gift.Gift, error)
	LastGiftID(ctx context.Context) (uint64, error)

	// DeleteGift removes a gift record and its index entries. Used to
	// unwind a creation whose later steps failed; the id is not reused.
	DeleteGift(ctx context.Context, id uint64) error

	// Sender and recipient indices, in creation order.
	ListSentGifts(ctx context.Context, sender asset.Address) ([]uint64, error)
	ListReceivedGifts(ctx context.Context, recipient asset.Address) ([]uint64, error)
}

// CardStore persists card templates. Content hashes are unique across cards.
type CardStore interface {
	CreateCard(ctx context.Context, c card.Card) (card.Card, error)
	UpdateCard(ctx context.Context, c card.Card) (card.Card, error)
	GetCard(ctx context.Context, id uint64) (card.Card, error)
	GetCardByContentHash(ctx context.Context, contentHash string) (card.Card, error)
	LastCardID(ctx context.Context) (uint64, error)
}

// LedgerStore persists the fee/tax ledger. Credit and withdrawal of a balance
// are atomic with respect to each other.
type LedgerStore interface {
	// CreditFee records one settlement: tax accrues to the admin pot for the
	// token, earnings accrue to the card owner. Applied atomically.
	CreditFee(ctx context.Context, s card.Settlement) error

	TaxBalance(ctx context.Context, token asset.Address) (*uint256.Int, error)
	EarningsBalance(ctx context.Context, owner, token asset.Address) (*uint256.Int, error)
	TotalEarnings(ctx context.Context, token asset.Address) (*uint256.Int, error)

	// TakeTaxes zeroes and returns the accumulated tax for a token.
	TakeTaxes(ctx context.Context, token asset.Address) (*uint256.Int, error)

	// TakeEarnings zeroes and returns an owner's earnings in a token.
	TakeEarnings(ctx context.Context, owner, token asset.Address) (*uint256.Int, error)

	// CreditTaxes adds an amount back to the tax pot for a token. Used to
	// restore a taken balance whose payout failed.
	CreditTaxes(ctx context.Context, token asset.Address, amount *uint256.Int) error

	// CreditEarnings adds an amount back to an owner's earnings in a token.
	CreditEarnings(ctx context.Context, owner, token asset.Address, amount *uint256.Int) error

	ListSettlements(ctx context.Context, token asset.Address) ([]card.Settlement, error)
}

// RateStore persists exchange-rate pairs. Both directions of a pair are
// written atomically.
type RateStore interface {
	SetRatePair(ctx context.Context, pair oracle.RatePair) error
	GetRate(ctx context.Context, from, to asset.Address) (*uint256.Int, error)
}

// RegistryStore persists selector routing. ApplyRouting commits a validated
// cut batch in one atomic step.
type RegistryStore interface {
	ApplyRouting(ctx context.Context, upserts map[registry.Selector]registry.Module, deletes []registry.Selector) error
	GetSelector(ctx context.Context, sel registry.Selector) (registry.Module, error)
	ListSelectors(ctx context.Context) (map[registry.Selector]registry.Module, error)
}
