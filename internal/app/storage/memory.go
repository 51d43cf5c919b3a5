package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/sendgft/contracts/internal/app/domain/asset"
	"github.com/sendgft/contracts/internal/app/domain/card"
	"github.com/sendgft/contracts/internal/app/domain/gift"
	"github.com/sendgft/contracts/internal/app/domain/oracle"
	"github.com/sendgft/contracts/internal/app/domain/registry"
)

// Memory is a thread-safe in-memory persistence layer implementing the
// storage interfaces defined in this package. Multi-entity mutations are
// applied under a single lock so each operation is all-or-nothing.
type Memory struct {
	mu sync.RWMutex

	lastGiftID uint64
	gifts      map[uint64]gift.Gift
	sent       map[asset.Address][]uint64
	received   map[asset.Address][]uint64

	lastCardID  uint64
	cards       map[uint64]card.Card
	cardsByHash map[string]uint64

	taxes       map[asset.Address]*uint256.Int
	earnings    map[asset.Address]map[asset.Address]*uint256.Int // owner -> token -> amount
	settlements []card.Settlement

	rates map[asset.Address]map[asset.Address]*uint256.Int // from -> to -> rate

	selectors map[registry.Selector]registry.Module
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		gifts:       make(map[uint64]gift.Gift),
		sent:        make(map[asset.Address][]uint64),
		received:    make(map[asset.Address][]uint64),
		cards:       make(map[uint64]card.Card),
		cardsByHash: make(map[string]uint64),
		taxes:       make(map[asset.Address]*uint256.Int),
		earnings:    make(map[asset.Address]map[asset.Address]*uint256.Int),
		rates:       make(map[asset.Address]map[asset.Address]*uint256.Int),
		selectors:   make(map[registry.Selector]registry.Module),
	}
}

var (
	_ GiftStore     = (*Memory)(nil)
	_ CardStore     = (*Memory)(nil)
	_ LedgerStore   = (*Memory)(nil)
	_ RateStore     = (*Memory)(nil)
	_ RegistryStore = (*Memory)(nil)
)

// GiftStore implementation ----------------------------------------------------

func (m *Memory) CreateGift(_ context.Context, g gift.Gift) (gift.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastGiftID++
	g.ID = m.lastGiftID
	g.CreatedAt = time.Now().UTC()
	g = cloneGift(g)

	m.gifts[g.ID] = g
	sender := g.Sender.Normalize()
	recipient := g.Params.Recipient.Normalize()
	m.sent[sender] = append(m.sent[sender], g.ID)
	m.received[recipient] = append(m.received[recipient], g.ID)
	return cloneGift(g), nil
}

func (m *Memory) UpdateGift(_ context.Context, g gift.Gift) (gift.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.gifts[g.ID]
	if !ok {
		return gift.Gift{}, fmt.Errorf("gift %d: %w", g.ID, gift.ErrNonexistentToken)
	}
	g.CreatedAt = original.CreatedAt
	m.gifts[g.ID] = cloneGift(g)
	return cloneGift(g), nil
}

func (m *Memory) DeleteGift(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.gifts[id]
	if !ok {
		return fmt.Errorf("gift %d: %w", id, gift.ErrNonexistentToken)
	}
	delete(m.gifts, id)
	sender := g.Sender.Normalize()
	recipient := g.Params.Recipient.Normalize()
	m.sent[sender] = removeID(m.sent[sender], id)
	m.received[recipient] = removeID(m.received[recipient], id)
	return nil
}

func (m *Memory) GetGift(_ context.Context, id uint64) (gift.Gift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.gifts[id]
	if !ok {
		return gift.Gift{}, fmt.Errorf("gift %d: %w", id, gift.ErrNonexistentToken)
	}
	return cloneGift(g), nil
}

func (m *Memory) LastGiftID(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastGiftID, nil
}

func (m *Memory) ListSentGifts(_ context.Context, sender asset.Address) ([]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]uint64(nil), m.sent[sender.Normalize()]...), nil
}

func (m *Memory) ListReceivedGifts(_ context.Context, recipient asset.Address) ([]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]uint64(nil), m.received[recipient.Normalize()]...), nil
}

// CardStore implementation ----------------------------------------------------

func (m *Memory) CreateCard(_ context.Context, c card.Card) (card.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.cardsByHash[c.ContentHash]; exists {
		return card.Card{}, fmt.Errorf("card %q: %w", c.ContentHash, card.ErrAlreadyAdded)
	}

	m.lastCardID++
	c.ID = m.lastCardID
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c = cloneCard(c)

	m.cards[c.ID] = c
	m.cardsByHash[c.ContentHash] = c.ID
	return cloneCard(c), nil
}

func (m *Memory) UpdateCard(_ context.Context, c card.Card) (card.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.cards[c.ID]
	if !ok {
		return card.Card{}, fmt.Errorf("card %d: %w", c.ID, card.ErrNonexistentToken)
	}
	c.ContentHash = original.ContentHash
	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	m.cards[c.ID] = cloneCard(c)
	return cloneCard(c), nil
}

func (m *Memory) GetCard(_ context.Context, id uint64) (card.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.cards[id]
	if !ok {
		return card.Card{}, fmt.Errorf("card %d: %w", id, card.ErrNonexistentToken)
	}
	return cloneCard(c), nil
}

func (m *Memory) GetCardByContentHash(_ context.Context, contentHash string) (card.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.cardsByHash[contentHash]
	if !ok {
		return card.Card{}, fmt.Errorf("card %q: %w", contentHash, card.ErrNonexistentToken)
	}
	return cloneCard(m.cards[id]), nil
}

func (m *Memory) LastCardID(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCardID, nil
}

// LedgerStore implementation --------------------------------------------------

func (m *Memory) CreditFee(_ context.Context, s card.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := s.FeeToken.Normalize()
	owner := s.CardOwner.Normalize()

	newTax, overflow := new(uint256.Int).AddOverflow(balanceOrZero(m.taxes, token), asset.Clone(s.Tax))
	if overflow {
		return fmt.Errorf("credit tax for %s: %w", token, asset.ErrArithmeticFault)
	}
	ownerEarnings := m.earnings[owner]
	newEarnings, overflow := new(uint256.Int).AddOverflow(balanceOrZero(ownerEarnings, token), asset.Clone(s.Earnings))
	if overflow {
		return fmt.Errorf("credit earnings for %s: %w", owner, asset.ErrArithmeticFault)
	}

	if ownerEarnings == nil {
		ownerEarnings = make(map[asset.Address]*uint256.Int)
		m.earnings[owner] = ownerEarnings
	}
	m.taxes[token] = newTax
	ownerEarnings[token] = newEarnings

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.settlements = append(m.settlements, cloneSettlement(s))
	return nil
}

func (m *Memory) TaxBalance(_ context.Context, token asset.Address) (*uint256.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return balanceOrZero(m.taxes, token.Normalize()).Clone(), nil
}

func (m *Memory) EarningsBalance(_ context.Context, owner, token asset.Address) (*uint256.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return balanceOrZero(m.earnings[owner.Normalize()], token.Normalize()).Clone(), nil
}

func (m *Memory) TotalEarnings(_ context.Context, token asset.Address) (*uint256.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	token = token.Normalize()
	total := new(uint256.Int)
	for _, byToken := range m.earnings {
		sum, overflow := new(uint256.Int).AddOverflow(total, balanceOrZero(byToken, token))
		if overflow {
			return nil, fmt.Errorf("total earnings for %s: %w", token, asset.ErrArithmeticFault)
		}
		total = sum
	}
	return total, nil
}

func (m *Memory) TakeTaxes(_ context.Context, token asset.Address) (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token = token.Normalize()
	amount := balanceOrZero(m.taxes, token).Clone()
	m.taxes[token] = new(uint256.Int)
	return amount, nil
}

func (m *Memory) TakeEarnings(_ context.Context, owner, token asset.Address) (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owner = owner.Normalize()
	token = token.Normalize()
	byToken := m.earnings[owner]
	amount := balanceOrZero(byToken, token).Clone()
	if byToken != nil {
		byToken[token] = new(uint256.Int)
	}
	return amount, nil
}

func (m *Memory) CreditTaxes(_ context.Context, token asset.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token = token.Normalize()
	sum, overflow := new(uint256.Int).AddOverflow(balanceOrZero(m.taxes, token), asset.Clone(amount))
	if overflow {
		return fmt.Errorf("credit tax for %s: %w", token, asset.ErrArithmeticFault)
	}
	m.taxes[token] = sum
	return nil
}

func (m *Memory) CreditEarnings(_ context.Context, owner, token asset.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	owner = owner.Normalize()
	token = token.Normalize()
	byToken := m.earnings[owner]
	sum, overflow := new(uint256.Int).AddOverflow(balanceOrZero(byToken, token), asset.Clone(amount))
	if overflow {
		return fmt.Errorf("credit earnings for %s: %w", owner, asset.ErrArithmeticFault)
	}
	if byToken == nil {
		byToken = make(map[asset.Address]*uint256.Int)
		m.earnings[owner] = byToken
	}
	byToken[token] = sum
	return nil
}

func (m *Memory) ListSettlements(_ context.Context, token asset.Address) ([]card.Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	token = token.Normalize()
	var result []card.Settlement
	for _, s := range m.settlements {
		if s.FeeToken.Normalize() == token {
			result = append(result, cloneSettlement(s))
		}
	}
	return result, nil
}

// RateStore implementation ----------------------------------------------------

func (m *Memory) SetRatePair(_ context.Context, pair oracle.RatePair) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := pair.TokenA.Normalize()
	b := pair.TokenB.Normalize()
	if m.rates[a] == nil {
		m.rates[a] = make(map[asset.Address]*uint256.Int)
	}
	if m.rates[b] == nil {
		m.rates[b] = make(map[asset.Address]*uint256.Int)
	}
	m.rates[a][b] = asset.Clone(pair.RateAB)
	m.rates[b][a] = asset.Clone(pair.RateBA)
	return nil
}

func (m *Memory) GetRate(_ context.Context, from, to asset.Address) (*uint256.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rate, ok := m.rates[from.Normalize()][to.Normalize()]
	if !ok {
		return nil, fmt.Errorf("rate %s->%s: %w", from, to, oracle.ErrUnknownRate)
	}
	return rate.Clone(), nil
}

// RegistryStore implementation ------------------------------------------------

func (m *Memory) ApplyRouting(_ context.Context, upserts map[registry.Selector]registry.Module, deletes []registry.Selector) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sel, mod := range upserts {
		m.selectors[sel] = mod
	}
	for _, sel := range deletes {
		delete(m.selectors, sel)
	}
	return nil
}

func (m *Memory) GetSelector(_ context.Context, sel registry.Selector) (registry.Module, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mod, ok := m.selectors[sel]
	if !ok {
		return registry.Module{}, fmt.Errorf("selector %q: %w", sel, registry.ErrUnknownSelector)
	}
	return mod, nil
}

func (m *Memory) ListSelectors(_ context.Context) (map[registry.Selector]registry.Module, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[registry.Selector]registry.Module, len(m.selectors))
	for sel, mod := range m.selectors {
		out[sel] = mod
	}
	return out, nil
}

// helpers ---------------------------------------------------------------------

func removeID(ids []uint64, id uint64) []uint64 {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func balanceOrZero(balances map[asset.Address]*uint256.Int, key asset.Address) *uint256.Int {
	if balances == nil {
		return new(uint256.Int)
	}
	if v, ok := balances[key]; ok && v != nil {
		return v
	}
	return new(uint256.Int)
}

func cloneGift(g gift.Gift) gift.Gift {
	g.Params.NativeValue = asset.Clone(g.Params.NativeValue)
	erc20 := make([]asset.TokenValue, len(g.Params.ERC20))
	for i, tv := range g.Params.ERC20 {
		erc20[i] = asset.TokenValue{TokenContract: tv.TokenContract, Value: asset.Clone(tv.Value)}
	}
	g.Params.ERC20 = erc20
	g.Params.NFTs = append([]asset.NFTValue(nil), g.Params.NFTs...)
	return g
}

func cloneCard(c card.Card) card.Card {
	c.Fee = asset.Fee{TokenContract: c.Fee.TokenContract, Value: asset.Clone(c.Fee.Value)}
	return c
}

func cloneSettlement(s card.Settlement) card.Settlement {
	s.FeeAmount = asset.Clone(s.FeeAmount)
	s.Tax = asset.Clone(s.Tax)
	s.Earnings = asset.Clone(s.Earnings)
	return s
}
