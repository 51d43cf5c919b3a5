// Package gifts implements the gift engine: creating a gift escrows a bundle
// of native currency, tokens and NFTs with the engine's escrow account and
// settles the chosen card's fee; claiming releases the bundle to the
// recipient exactly once.
package gifts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/sendgft/contracts/internal/app/custody"
	"github.com/sendgft/contracts/internal/app/domain/asset"
	"github.com/sendgft/contracts/internal/app/domain/card"
	"github.com/sendgft/contracts/internal/app/domain/gift"
	"github.com/sendgft/contracts/internal/app/events"
	"github.com/sendgft/contracts/internal/app/metrics"
	"github.com/sendgft/contracts/internal/app/storage"
	"github.com/sendgft/contracts/pkg/logger"
)

// CardMarket is the slice of the card marketplace the gift engine depends
// on: quoting and settling a card's fee.
type CardMarket interface {
	FeeInput(ctx context.Context, id uint64) (*uint256.Int, error)
	UseCard(ctx context.Context, caller asset.Address, id uint64, supplied *uint256.Int) (card.Settlement, error)
}

// Service owns the gift lifecycle.
type Service struct {
	mu       sync.Mutex
	gifts    storage.GiftStore
	market   CardMarket
	bank     custody.Bank
	escrow   asset.Address
	admin    asset.Address
	recorder *events.Recorder
	log      *logger.Logger
	now      func() time.Time

	baseURI     string
	defaultHash string
}

// New constructs the gift engine. escrow is the account that custodies gift
// bundles between creation and claim; senders must grant it token allowances
// and NFT approvals before creating a gift.
func New(gifts storage.GiftStore, market CardMarket, bank custody.Bank, escrow, admin asset.Address, recorder *events.Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("gifts")
	}
	return &Service{
		gifts:    gifts,
		market:   market,
		bank:     bank,
		escrow:   escrow,
		admin:    admin,
		recorder: recorder,
		log:      log,
		now:      time.Now,
	}
}

// Escrow returns the account custodying unclaimed gift bundles.
func (s *Service) Escrow() asset.Address {
	return s.escrow
}

// Create mints a new gift. supplied is the native amount the sender attaches:
// it must cover both the card's fee input and the gift's native value.
// Creation is all-or-nothing: every custody precondition is checked before
// anything moves, and a failure after that point returns the escrowed assets
// to the sender and leaves no gift record or settled fee behind.
func (s *Service) Create(ctx context.Context, caller asset.Address, params gift.Params, supplied *uint256.Int) (gift.Gift, error) {
	if params.Message == "" {
		return gift.Gift{}, fmt.Errorf("create gift: %w", gift.ErrEmptyMessage)
	}
	if params.Recipient == "" || params.Recipient.IsZero() {
		return gift.Gift{}, fmt.Errorf("create gift: recipient is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	feeInput, err := s.market.FeeInput(ctx, params.CardID)
	if err != nil {
		return gift.Gift{}, fmt.Errorf("create gift: %w", err)
	}
	required, err := asset.Add(feeInput, params.NativeValue)
	if err != nil {
		return gift.Gift{}, fmt.Errorf("create gift: %w", err)
	}
	if asset.Clone(supplied).Lt(required) {
		return gift.Gift{}, fmt.Errorf("create gift: supplied %s, need %s: %w",
			supplied, required, card.ErrInputInsufficient)
	}

	if err := s.checkBundle(ctx, caller, params, required); err != nil {
		return gift.Gift{}, fmt.Errorf("create gift: %w", err)
	}

	undo, err := s.escrowBundle(ctx, caller, params)
	if err != nil {
		return gift.Gift{}, fmt.Errorf("create gift: %w", err)
	}

	created, err := s.gifts.CreateGift(ctx, gift.Gift{
		Sender:    caller,
		CreatedAt: s.now(),
		Params:    clonedParams(params),
	})
	if err != nil {
		undo(ctx)
		return gift.Gift{}, err
	}

	// Settle the card fee with exactly the quoted input; the exchange keeps
	// whatever it is handed, so never forward the gift's own native value.
	// Settlement cannot be undone, so it runs last: a failure here unwinds
	// the escrowed bundle and the gift record instead.
	if _, err := s.market.UseCard(ctx, caller, params.CardID, feeInput); err != nil {
		if delErr := s.gifts.DeleteGift(ctx, created.ID); delErr != nil {
			s.log.WithError(delErr).WithField("gift_id", created.ID).Error("unsettled gift record not removed")
		}
		undo(ctx)
		return gift.Gift{}, fmt.Errorf("create gift: %w", err)
	}

	metrics.ObserveGiftCreated()
	s.recorder.Emit(events.Event{
		Type:    events.EventGiftCreated,
		Module:  "gifts",
		Message: params.Message,
		Fields: map[string]string{
			"id":        fmt.Sprintf("%d", created.ID),
			"sender":    string(caller),
			"recipient": string(params.Recipient),
			"card_id":   fmt.Sprintf("%d", params.CardID),
		},
	})
	s.log.WithField("gift_id", created.ID).
		WithField("sender", caller).
		WithField("recipient", params.Recipient).
		Info("gift created")
	return created, nil
}

// Claim releases an unclaimed gift's bundle to its recipient. Only the
// recipient may claim; unknown ids are rejected the same way as someone
// else's gift.
func (s *Service) Claim(ctx context.Context, caller asset.Address, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load(ctx, caller, id)
	if err != nil {
		return err
	}
	if g.Claimed() {
		return fmt.Errorf("claim gift %d: %w", id, gift.ErrAlreadyClaimed)
	}
	return s.release(ctx, g, false, "")
}

// OpenAndClaim marks a gift opened, recording its content reference, and
// releases the bundle if it has not been claimed yet. A gift can be opened
// only once, but an already-claimed gift may still be opened.
func (s *Service) OpenAndClaim(ctx context.Context, caller asset.Address, id uint64, contentHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load(ctx, caller, id)
	if err != nil {
		return err
	}
	if g.Opened {
		return fmt.Errorf("open gift %d: %w", id, gift.ErrAlreadyOpened)
	}

	if g.Claimed() {
		g.Opened = true
		g.ContentHash = contentHash
		if _, err := s.gifts.UpdateGift(ctx, g); err != nil {
			return err
		}
		s.recorder.Emit(events.Event{
			Type:   events.EventGiftOpened,
			Module: "gifts",
			Fields: map[string]string{"id": fmt.Sprintf("%d", id)},
		})
		s.log.WithField("gift_id", id).Info("gift opened")
		return nil
	}
	return s.release(ctx, g, true, contentHash)
}

// load fetches a gift for a claim-side call. Unknown ids and foreign gifts
// fail identically so a caller cannot probe which ids exist.
func (s *Service) load(ctx context.Context, caller asset.Address, id uint64) (gift.Gift, error) {
	g, err := s.gifts.GetGift(ctx, id)
	if errors.Is(err, gift.ErrNonexistentToken) {
		return gift.Gift{}, fmt.Errorf("gift %d: %w", id, gift.ErrMustBeOwner)
	}
	if err != nil {
		return gift.Gift{}, err
	}
	if caller.Normalize() != g.Params.Recipient.Normalize() {
		return gift.Gift{}, fmt.Errorf("gift %d claimed by %s: %w", id, caller, gift.ErrMustBeOwner)
	}
	return g, nil
}

// release records the claim, then moves the bundle out of escrow. The record
// is updated before any custody call so a reentrant claim observes the gift
// as already claimed.
func (s *Service) release(ctx context.Context, g gift.Gift, opened bool, contentHash string) error {
	g.ClaimedAt = s.now()
	if opened {
		g.Opened = true
		g.ContentHash = contentHash
	}
	if _, err := s.gifts.UpdateGift(ctx, g); err != nil {
		return err
	}

	recipient := g.Params.Recipient
	if !asset.IsZero(g.Params.NativeValue) {
		if err := s.bank.TransferNative(ctx, s.escrow, recipient, g.Params.NativeValue); err != nil {
			return fmt.Errorf("claim gift %d: %w", g.ID, err)
		}
	}
	for _, tv := range g.Params.ERC20 {
		if err := s.bank.TransferToken(ctx, tv.TokenContract, s.escrow, recipient, tv.Value); err != nil {
			return fmt.Errorf("claim gift %d token %s: %w", g.ID, tv.TokenContract, err)
		}
	}
	for _, nv := range g.Params.NFTs {
		if err := s.bank.TransferNFT(ctx, nv.TokenContract, s.escrow, s.escrow, recipient, nv.TokenID); err != nil {
			return fmt.Errorf("claim gift %d nft %s/%d: %w", g.ID, nv.TokenContract, nv.TokenID, err)
		}
	}

	metrics.ObserveGiftClaimed(opened)
	s.recorder.Emit(events.Event{
		Type:   events.EventGiftClaimed,
		Module: "gifts",
		Fields: map[string]string{
			"id":     fmt.Sprintf("%d", g.ID),
			"opened": fmt.Sprintf("%t", opened),
		},
	})
	s.log.WithField("gift_id", g.ID).WithField("opened", opened).Info("gift claimed")
	return nil
}

// checkBundle verifies the sender can fund every leg of the bundle before
// anything moves: the native balance must cover the fee input plus the gift's
// native value, token legs need an escrow allowance, and NFT legs need the
// sender to own the piece with escrow approved to move it.
func (s *Service) checkBundle(ctx context.Context, sender asset.Address, params gift.Params, required *uint256.Int) error {
	balance, err := s.bank.NativeBalance(ctx, sender)
	if err != nil {
		return err
	}
	if asset.Clone(balance).Lt(required) {
		return fmt.Errorf("native %s of balance %s: %w", required, balance, custody.ErrInsufficientFunds)
	}
	for _, tv := range params.ERC20 {
		balance, err := s.bank.TokenBalance(ctx, tv.TokenContract, sender)
		if err != nil {
			return err
		}
		if asset.Clone(balance).Lt(asset.Clone(tv.Value)) {
			return fmt.Errorf("token %s: %w", tv.TokenContract, custody.ErrBalanceExceeded)
		}
		allowance, err := s.bank.TokenAllowance(ctx, tv.TokenContract, sender, s.escrow)
		if err != nil {
			return err
		}
		if asset.Clone(allowance).Lt(asset.Clone(tv.Value)) {
			return fmt.Errorf("token %s: %w", tv.TokenContract, custody.ErrAllowanceExceeded)
		}
	}
	for _, nv := range params.NFTs {
		owner, err := s.bank.NFTOwner(ctx, nv.TokenContract, nv.TokenID)
		if err != nil {
			return err
		}
		if owner != sender.Normalize() {
			return fmt.Errorf("nft %s/%d owned by %s: %w", nv.TokenContract, nv.TokenID, owner, custody.ErrNotOwnerOrApproved)
		}
		approved, err := s.bank.NFTApproved(ctx, nv.TokenContract, nv.TokenID, s.escrow)
		if err != nil {
			return err
		}
		if !approved {
			return fmt.Errorf("nft %s/%d: %w", nv.TokenContract, nv.TokenID, custody.ErrNotOwnerOrApproved)
		}
	}
	return nil
}

// escrowBundle pulls the gift's assets from the sender into escrow, leg by
// leg. A leg failing returns the legs already executed to the sender. The
// returned undo reverses the whole bundle; callers invoke it when a later
// step of gift creation fails.
func (s *Service) escrowBundle(ctx context.Context, sender asset.Address, params gift.Params) (func(context.Context), error) {
	var undos []func(context.Context) error
	undoAll := func(ctx context.Context) {
		for i := len(undos) - 1; i >= 0; i-- {
			if err := undos[i](ctx); err != nil {
				s.log.WithError(err).WithField("sender", sender).Error("escrowed asset not returned")
			}
		}
	}

	if !asset.IsZero(params.NativeValue) {
		v := asset.Clone(params.NativeValue)
		if err := s.bank.TransferNative(ctx, sender, s.escrow, v); err != nil {
			return nil, err
		}
		undos = append(undos, func(ctx context.Context) error {
			return s.bank.TransferNative(ctx, s.escrow, sender, v)
		})
	}
	for _, tv := range params.ERC20 {
		if err := s.bank.TransferTokenFrom(ctx, tv.TokenContract, s.escrow, sender, s.escrow, tv.Value); err != nil {
			undoAll(ctx)
			return nil, fmt.Errorf("token %s: %w", tv.TokenContract, err)
		}
		undos = append(undos, func(ctx context.Context) error {
			return s.bank.TransferToken(ctx, tv.TokenContract, s.escrow, sender, tv.Value)
		})
	}
	for _, nv := range params.NFTs {
		if err := s.bank.TransferNFT(ctx, nv.TokenContract, s.escrow, sender, s.escrow, nv.TokenID); err != nil {
			undoAll(ctx)
			return nil, fmt.Errorf("nft %s/%d: %w", nv.TokenContract, nv.TokenID, err)
		}
		undos = append(undos, func(ctx context.Context) error {
			return s.bank.TransferNFT(ctx, nv.TokenContract, s.escrow, s.escrow, sender, nv.TokenID)
		})
	}
	return undoAll, nil
}

// Gift retrieves a gift by id.
func (s *Service) Gift(ctx context.Context, id uint64) (gift.Gift, error) {
	return s.gifts.GetGift(ctx, id)
}

// LastGiftID returns the most recently assigned gift id.
func (s *Service) LastGiftID(ctx context.Context) (uint64, error) {
	return s.gifts.LastGiftID(ctx)
}

// TotalSent returns how many gifts an account has created.
func (s *Service) TotalSent(ctx context.Context, sender asset.Address) (uint64, error) {
	ids, err := s.gifts.ListSentGifts(ctx, sender)
	if err != nil {
		return 0, err
	}
	return uint64(len(ids)), nil
}

// Sent returns the id of a sender's i-th gift, in creation order.
func (s *Service) Sent(ctx context.Context, sender asset.Address, index uint64) (uint64, error) {
	ids, err := s.gifts.ListSentGifts(ctx, sender)
	if err != nil {
		return 0, err
	}
	if index >= uint64(len(ids)) {
		return 0, fmt.Errorf("sent index %d out of range for %s", index, sender)
	}
	return ids[index], nil
}

// TotalReceived returns how many gifts are addressed to an account.
func (s *Service) TotalReceived(ctx context.Context, recipient asset.Address) (uint64, error) {
	ids, err := s.gifts.ListReceivedGifts(ctx, recipient)
	if err != nil {
		return 0, err
	}
	return uint64(len(ids)), nil
}

// Received returns the id of the i-th gift addressed to an account.
func (s *Service) Received(ctx context.Context, recipient asset.Address, index uint64) (uint64, error) {
	ids, err := s.gifts.ListReceivedGifts(ctx, recipient)
	if err != nil {
		return 0, err
	}
	if index >= uint64(len(ids)) {
		return 0, fmt.Errorf("received index %d out of range for %s", index, recipient)
	}
	return ids[index], nil
}

// TokenURI returns the resolvable URI of a gift's content. Unopened gifts
// resolve to the engine's default content.
func (s *Service) TokenURI(ctx context.Context, id uint64) (string, error) {
	g, err := s.gifts.GetGift(ctx, id)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	hash := g.ContentHash
	if hash == "" {
		hash = s.defaultHash
	}
	return s.baseURI + hash, nil
}

// SetBaseURI sets the gateway prefix for gift content. Admin only.
func (s *Service) SetBaseURI(caller asset.Address, baseURI string) error {
	if caller.Normalize() != s.admin.Normalize() {
		return fmt.Errorf("set base URI by %s: %w", caller, gift.ErrMustBeAdmin)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURI = baseURI
	return nil
}

// SetDefaultContentHash sets the content reference unopened gifts resolve
// to. Admin only.
func (s *Service) SetDefaultContentHash(caller asset.Address, contentHash string) error {
	if caller.Normalize() != s.admin.Normalize() {
		return fmt.Errorf("set default content hash by %s: %w", caller, gift.ErrMustBeAdmin)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultHash = contentHash
	return nil
}

func clonedParams(p gift.Params) gift.Params {
	out := p
	out.NativeValue = asset.Clone(p.NativeValue)
	out.ERC20 = make([]asset.TokenValue, len(p.ERC20))
	for i, tv := range p.ERC20 {
		out.ERC20[i] = asset.TokenValue{TokenContract: tv.TokenContract, Value: asset.Clone(tv.Value)}
	}
	out.NFTs = append([]asset.NFTValue(nil), p.NFTs...)
	return out
}
