// Package cards implements the card marketplace: card templates gating gift
// creation, admin-signed approval, and the fee/tax ledger that splits every
// settled card fee between the marketplace tax pot and the card owner.
package cards

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/sendgft/contracts/internal/app/custody"
	"github.com/sendgft/contracts/internal/app/domain/asset"
	"github.com/sendgft/contracts/internal/app/domain/card"
	"github.com/sendgft/contracts/internal/app/domain/oracle"
	"github.com/sendgft/contracts/internal/app/events"
	"github.com/sendgft/contracts/internal/app/metrics"
	"github.com/sendgft/contracts/internal/app/signing"
	"github.com/sendgft/contracts/internal/app/storage"
	"github.com/sendgft/contracts/pkg/logger"
)

// DefaultTaxBps is the marketplace tax applied until the admin sets another
// rate: 10%.
const DefaultTaxBps = 1000

// Exchange converts native currency into fee tokens. Satisfied by the price
// oracle service.
type Exchange interface {
	Quote(ctx context.Context, tokenOut asset.Address, amountOut *uint256.Int) (*uint256.Int, error)
	Trade(ctx context.Context, caller asset.Address, tokenOut asset.Address, amountOut *uint256.Int, recipient asset.Address, supplied *uint256.Int) error
}

// AddCardParams is the caller-supplied portion of a new card.
type AddCardParams struct {
	Owner       asset.Address
	ContentHash string
	Fee         asset.Fee
}

// Service owns card templates and the fee/tax ledger.
type Service struct {
	mu       sync.Mutex
	cards    storage.CardStore
	ledger   storage.LedgerStore
	bank     custody.Bank
	exchange Exchange
	verifier signing.Verifier
	admin    asset.Address
	treasury asset.Address
	recorder *events.Recorder
	log      *logger.Logger

	taxBps  uint64
	allowed map[asset.Address]bool
	order   []asset.Address
	baseURI string
}

// New constructs the card marketplace service. treasury is the account that
// custodies settled fee tokens until taxes and earnings are withdrawn.
func New(cards storage.CardStore, ledger storage.LedgerStore, bank custody.Bank, exchange Exchange, verifier signing.Verifier, admin, treasury asset.Address, recorder *events.Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("cards")
	}
	return &Service{
		cards:    cards,
		ledger:   ledger,
		bank:     bank,
		exchange: exchange,
		verifier: verifier,
		admin:    admin,
		treasury: treasury,
		recorder: recorder,
		log:      log,
		taxBps:   DefaultTaxBps,
		allowed:  make(map[asset.Address]bool),
	}
}

// Admin returns the marketplace admin identity.
func (s *Service) Admin() asset.Address {
	return s.admin
}

// Treasury returns the account custodying settled fees.
func (s *Service) Treasury() asset.Address {
	return s.treasury
}

// SignatureHash returns the canonical digest the admin must sign to approve
// a card content reference.
func (s *Service) SignatureHash(contentHash string) []byte {
	return signing.SignatureHash(contentHash)
}

// AddCard registers a new card. Approval is bundled into creation: the
// supplied signature must be a valid admin signature over the card's content
// hash. The resulting card is enabled and approved.
func (s *Service) AddCard(ctx context.Context, params AddCardParams, approvalSig []byte) (card.Card, error) {
	if params.ContentHash == "" {
		return card.Card{}, fmt.Errorf("add card: content hash is required")
	}
	if params.Owner == "" {
		return card.Card{}, fmt.Errorf("add card: owner is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.feeTokenAllowed(params.Fee.TokenContract) {
		return card.Card{}, fmt.Errorf("add card %q with fee token %s: %w",
			params.ContentHash, params.Fee.TokenContract, card.ErrUnsupportedFeeToken)
	}
	if !s.verifier.Verify(signing.SignatureHash(params.ContentHash), approvalSig, s.admin) {
		return card.Card{}, fmt.Errorf("add card %q: %w", params.ContentHash, card.ErrApprovalInvalid)
	}

	created, err := s.cards.CreateCard(ctx, card.Card{
		Owner:       params.Owner,
		ContentHash: params.ContentHash,
		Fee:         params.Fee,
		Enabled:     true,
		Approved:    true,
	})
	if err != nil {
		return card.Card{}, err
	}

	metrics.ObserveCardAdded()
	s.recorder.Emit(events.Event{
		Type:   events.EventCardAdded,
		Module: "cards",
		Fields: map[string]string{
			"id":           fmt.Sprintf("%d", created.ID),
			"owner":        string(created.Owner),
			"content_hash": created.ContentHash,
		},
	})
	s.log.WithField("card_id", created.ID).
		WithField("owner", created.Owner).
		Info("card added")
	return created, nil
}

// Card retrieves a card by id.
func (s *Service) Card(ctx context.Context, id uint64) (card.Card, error) {
	return s.cards.GetCard(ctx, id)
}

// LastCardID returns the most recently assigned card id.
func (s *Service) LastCardID(ctx context.Context) (uint64, error) {
	return s.cards.LastCardID(ctx)
}

// SetCardEnabled toggles a card's enabled flag. Only the card owner may call.
func (s *Service) SetCardEnabled(ctx context.Context, caller asset.Address, id uint64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.cards.GetCard(ctx, id)
	if err != nil {
		return err
	}
	if caller.Normalize() != c.Owner.Normalize() {
		return fmt.Errorf("set card %d enabled by %s: %w", id, caller, card.ErrMustBeOwner)
	}
	if c.Enabled == enabled {
		return nil
	}

	c.Enabled = enabled
	if _, err := s.cards.UpdateCard(ctx, c); err != nil {
		return err
	}
	s.recorder.Emit(events.Event{
		Type:   events.EventCardEnabled,
		Module: "cards",
		Fields: map[string]string{"id": fmt.Sprintf("%d", id), "enabled": fmt.Sprintf("%t", enabled)},
	})
	s.log.WithField("card_id", id).WithField("enabled", enabled).Info("card enabled flag changed")
	return nil
}

// SetCardFee updates a card's fee. Only the card owner may call and the fee
// token must remain in the allowed set.
func (s *Service) SetCardFee(ctx context.Context, caller asset.Address, id uint64, fee asset.Fee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.cards.GetCard(ctx, id)
	if err != nil {
		return err
	}
	if caller.Normalize() != c.Owner.Normalize() {
		return fmt.Errorf("set card %d fee by %s: %w", id, caller, card.ErrMustBeOwner)
	}
	if !s.feeTokenAllowed(fee.TokenContract) {
		return fmt.Errorf("set card %d fee token %s: %w", id, fee.TokenContract, card.ErrUnsupportedFeeToken)
	}

	c.Fee = fee
	_, err = s.cards.UpdateCard(ctx, c)
	return err
}

// SetCardApproved sets a card's approved flag. Admin only; kept alongside
// bundled approval so the admin can revoke a card after the fact.
func (s *Service) SetCardApproved(ctx context.Context, caller asset.Address, id uint64, approved bool) error {
	if caller.Normalize() != s.admin.Normalize() {
		return fmt.Errorf("set card %d approved by %s: %w", id, caller, card.ErrMustBeAdmin)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.cards.GetCard(ctx, id)
	if err != nil {
		return err
	}
	if c.Approved == approved {
		return nil
	}

	c.Approved = approved
	if _, err := s.cards.UpdateCard(ctx, c); err != nil {
		return err
	}
	s.recorder.Emit(events.Event{
		Type:   events.EventCardApproved,
		Module: "cards",
		Fields: map[string]string{"id": fmt.Sprintf("%d", id), "approved": fmt.Sprintf("%t", approved)},
	})
	return nil
}

// SetAllowedFeeTokens replaces the set of tokens cards may charge fees in.
// Admin only.
func (s *Service) SetAllowedFeeTokens(caller asset.Address, tokens []asset.Address) error {
	if caller.Normalize() != s.admin.Normalize() {
		return fmt.Errorf("set allowed fee tokens by %s: %w", caller, card.ErrMustBeAdmin)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.allowed = make(map[asset.Address]bool, len(tokens))
	s.order = append([]asset.Address(nil), tokens...)
	for _, t := range tokens {
		s.allowed[t.Normalize()] = true
	}
	return nil
}

// AllowedFeeTokens returns the current allowed fee token set in the order it
// was configured.
func (s *Service) AllowedFeeTokens() []asset.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]asset.Address(nil), s.order...)
}

// SetTax sets the marketplace tax in basis points. Admin only.
func (s *Service) SetTax(caller asset.Address, bps uint64) error {
	if caller.Normalize() != s.admin.Normalize() {
		return fmt.Errorf("set tax by %s: %w", caller, card.ErrMustBeAdmin)
	}
	if bps > asset.BpsDenominator {
		return fmt.Errorf("set tax to %d bps: %w", bps, asset.ErrArithmeticFault)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.taxBps = bps
	return nil
}

// Tax returns the current tax rate in basis points.
func (s *Service) Tax() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taxBps
}

// FeeInput returns the native amount that settles one use of a card: zero for
// free cards, the fee itself for native-denominated fees, and otherwise the
// exchange quote for acquiring the fee tokens.
func (s *Service) FeeInput(ctx context.Context, id uint64) (*uint256.Int, error) {
	c, err := s.cards.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case asset.IsZero(c.Fee.Value):
		return asset.Zero(), nil
	case c.Fee.TokenContract.IsZero():
		return asset.Clone(c.Fee.Value), nil
	default:
		return s.exchange.Quote(ctx, c.Fee.TokenContract, c.Fee.Value)
	}
}

// UseCard settles the fee for one card use against the supplied native
// input. Fees denominated in a non-native token are acquired through the
// exchange: the full supplied input goes to the oracle and the fee tokens
// land in the marketplace treasury. The fee is then split into tax and
// owner earnings.
func (s *Service) UseCard(ctx context.Context, caller asset.Address, id uint64, supplied *uint256.Int) (card.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.useCardLocked(ctx, caller, id, supplied)
}

func (s *Service) useCardLocked(ctx context.Context, caller asset.Address, id uint64, supplied *uint256.Int) (card.Settlement, error) {
	c, err := s.cards.GetCard(ctx, id)
	if err != nil {
		return card.Settlement{}, err
	}
	if !c.Enabled {
		return card.Settlement{}, fmt.Errorf("use card %d: %w", id, card.ErrNotEnabled)
	}
	if !c.Approved {
		return card.Settlement{}, fmt.Errorf("use card %d: %w", id, card.ErrNotApproved)
	}

	settlement := card.Settlement{
		CardID:    c.ID,
		CardOwner: c.Owner,
		FeeToken:  c.Fee.TokenContract,
		FeeAmount: asset.Clone(c.Fee.Value),
		Tax:       asset.Zero(),
		Earnings:  asset.Zero(),
	}

	if !asset.IsZero(c.Fee.Value) {
		if c.Fee.TokenContract.IsZero() {
			// Fee in the settlement currency: no conversion needed.
			if asset.Clone(supplied).Lt(c.Fee.Value) {
				return card.Settlement{}, fmt.Errorf("use card %d: supplied %s, fee %s: %w",
					id, supplied, c.Fee.Value, card.ErrInputInsufficient)
			}
			if err := s.bank.TransferNative(ctx, caller, s.treasury, c.Fee.Value); err != nil {
				return card.Settlement{}, fmt.Errorf("use card %d fee transfer: %w", id, err)
			}
		} else {
			if err := s.exchange.Trade(ctx, caller, c.Fee.TokenContract, c.Fee.Value, s.treasury, supplied); err != nil {
				if errors.Is(err, oracle.ErrInputInsufficient) {
					return card.Settlement{}, fmt.Errorf("use card %d: %w: %w", id, card.ErrInputInsufficient, err)
				}
				return card.Settlement{}, fmt.Errorf("use card %d fee conversion: %w", id, err)
			}
		}

		tax, err := asset.BpsShare(c.Fee.Value, s.taxBps)
		if err != nil {
			return card.Settlement{}, fmt.Errorf("use card %d tax split: %w", id, err)
		}
		earnings, err := asset.Sub(c.Fee.Value, tax)
		if err != nil {
			return card.Settlement{}, fmt.Errorf("use card %d earnings split: %w", id, err)
		}
		settlement.Tax = tax
		settlement.Earnings = earnings

		if err := s.ledger.CreditFee(ctx, settlement); err != nil {
			return card.Settlement{}, err
		}
	}

	metrics.ObserveCardUsed(string(settlement.FeeToken))
	s.recorder.Emit(events.Event{
		Type:   events.EventCardUsed,
		Module: "cards",
		Fields: map[string]string{
			"id":     fmt.Sprintf("%d", c.ID),
			"fee":    settlement.FeeAmount.Dec(),
			"earned": settlement.Earnings.Dec(),
		},
	})
	s.log.WithField("card_id", c.ID).
		WithField("fee", settlement.FeeAmount.Dec()).
		WithField("earned", settlement.Earnings.Dec()).
		Info("card used")
	return settlement, nil
}

// Settlements returns the recorded fee settlements for a token, oldest
// first.
func (s *Service) Settlements(ctx context.Context, token asset.Address) ([]card.Settlement, error) {
	return s.ledger.ListSettlements(ctx, token)
}

// TotalTaxes returns the accumulated, unwithdrawn tax for a token.
func (s *Service) TotalTaxes(ctx context.Context, token asset.Address) (*uint256.Int, error) {
	return s.ledger.TaxBalance(ctx, token)
}

// TotalEarnings returns the unwithdrawn earnings across all owners for a
// token.
func (s *Service) TotalEarnings(ctx context.Context, token asset.Address) (*uint256.Int, error) {
	return s.ledger.TotalEarnings(ctx, token)
}

// Earnings returns an owner's unwithdrawn earnings in a token.
func (s *Service) Earnings(ctx context.Context, owner, token asset.Address) (*uint256.Int, error) {
	return s.ledger.EarningsBalance(ctx, owner, token)
}

// WithdrawTaxes transfers the accumulated tax for a token to the admin and
// zeroes the pot. Admin only.
func (s *Service) WithdrawTaxes(ctx context.Context, caller asset.Address, token asset.Address) (*uint256.Int, error) {
	if caller.Normalize() != s.admin.Normalize() {
		return nil, fmt.Errorf("withdraw taxes by %s: %w", caller, card.ErrMustBeAdmin)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Zero the pot before paying out so a partial failure can never pay
	// the same balance twice; the payout failing re-credits the pot.
	amount, err := s.ledger.TakeTaxes(ctx, token)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return amount, nil
	}
	if err := s.payOut(ctx, token, caller, amount); err != nil {
		if restoreErr := s.ledger.CreditTaxes(ctx, token, amount); restoreErr != nil {
			return nil, fmt.Errorf("withdraw taxes: %w (tax pot not restored: %w)", err, restoreErr)
		}
		return nil, fmt.Errorf("withdraw taxes: %w", err)
	}

	metrics.ObserveWithdrawal("tax")
	s.recorder.Emit(events.Event{
		Type:   events.EventTaxWithdrawn,
		Module: "cards",
		Fields: map[string]string{"token": string(token), "amount": amount.Dec()},
	})
	s.log.WithField("token", token).WithField("amount", amount.Dec()).Info("taxes withdrawn")
	return amount, nil
}

// WithdrawEarnings transfers the caller's accumulated earnings in a token to
// the caller and zeroes their balance.
func (s *Service) WithdrawEarnings(ctx context.Context, caller asset.Address, token asset.Address) (*uint256.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	amount, err := s.ledger.TakeEarnings(ctx, caller, token)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return amount, nil
	}
	if err := s.payOut(ctx, token, caller, amount); err != nil {
		if restoreErr := s.ledger.CreditEarnings(ctx, caller, token, amount); restoreErr != nil {
			return nil, fmt.Errorf("withdraw earnings: %w (earnings not restored: %w)", err, restoreErr)
		}
		return nil, fmt.Errorf("withdraw earnings: %w", err)
	}

	metrics.ObserveWithdrawal("earnings")
	s.recorder.Emit(events.Event{
		Type:   events.EventEarningsWithdrawn,
		Module: "cards",
		Fields: map[string]string{"owner": string(caller), "token": string(token), "amount": amount.Dec()},
	})
	s.log.WithField("owner", caller).WithField("token", token).WithField("amount", amount.Dec()).Info("earnings withdrawn")
	return amount, nil
}

// payOut moves a settled balance out of the treasury.
func (s *Service) payOut(ctx context.Context, token asset.Address, to asset.Address, amount *uint256.Int) error {
	if token.IsZero() {
		return s.bank.TransferNative(ctx, s.treasury, to, amount)
	}
	return s.bank.TransferToken(ctx, token, s.treasury, to, amount)
}

// TokenURI returns the resolvable URI of a card's content.
func (s *Service) TokenURI(ctx context.Context, id uint64) (string, error) {
	c, err := s.cards.GetCard(ctx, id)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseURI + c.ContentHash, nil
}

// SetBaseURI sets the gateway prefix for card content. Admin only.
func (s *Service) SetBaseURI(caller asset.Address, baseURI string) error {
	if caller.Normalize() != s.admin.Normalize() {
		return fmt.Errorf("set base URI by %s: %w", caller, card.ErrMustBeAdmin)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURI = baseURI
	return nil
}

func (s *Service) feeTokenAllowed(token asset.Address) bool {
	return s.allowed[token.Normalize()]
}
