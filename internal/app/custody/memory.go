package custody

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/sendgft/contracts/internal/app/domain/asset"
)

type nftKey struct {
	token   asset.Address
	tokenID uint64
}

type allowanceKey struct {
	token   asset.Address
	owner   asset.Address
	spender asset.Address
}

// InMemory is an in-memory Bank. Native and token balances, allowances
// and NFT ownership behave like their on-chain counterparts: transfers
// debit-before-credit, allowances are consumed, and NFT moves require the
// operator to be the owner or approved.
type InMemory struct {
	mu         sync.Mutex
	native     map[asset.Address]*uint256.Int
	tokens     map[asset.Address]map[asset.Address]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
	nfts       map[nftKey]asset.Address
	nftOps     map[nftKey]asset.Address
	opsForAll  map[allowanceKey]bool
}

var _ Bank = (*InMemory)(nil)

// NewInMemory returns an empty bank.
func NewInMemory() *InMemory {
	return &InMemory{
		native:     make(map[asset.Address]*uint256.Int),
		tokens:     make(map[asset.Address]map[asset.Address]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
		nfts:       make(map[nftKey]asset.Address),
		nftOps:     make(map[nftKey]asset.Address),
		opsForAll:  make(map[allowanceKey]bool),
	}
}

// MintNative credits an account's native balance.
func (b *InMemory) MintNative(account asset.Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.native[account.Normalize()] = add(b.native[account.Normalize()], amount)
}

// MintToken credits a holder's balance in a token.
func (b *InMemory) MintToken(token, holder asset.Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hs := b.holders(token)
	hs[holder.Normalize()] = add(hs[holder.Normalize()], amount)
}

// MintNFT assigns an NFT id to an owner.
func (b *InMemory) MintNFT(token asset.Address, tokenID uint64, owner asset.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nfts[nftKey{token.Normalize(), tokenID}] = owner.Normalize()
}

// Approve grants a spender an allowance over the owner's tokens, replacing
// any previous allowance.
func (b *InMemory) Approve(token, owner, spender asset.Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowances[allowanceKey{token.Normalize(), owner.Normalize(), spender.Normalize()}] = asset.Clone(amount)
}

// Allowance returns the spender's remaining allowance over the owner's
// tokens.
func (b *InMemory) Allowance(token, owner, spender asset.Address) *uint256.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return asset.Clone(b.allowances[allowanceKey{token.Normalize(), owner.Normalize(), spender.Normalize()}])
}

// ApproveNFT approves one operator for one NFT id.
func (b *InMemory) ApproveNFT(token asset.Address, tokenID uint64, operator asset.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nftOps[nftKey{token.Normalize(), tokenID}] = operator.Normalize()
}

// SetApprovalForAll approves an operator for every NFT an owner holds in a
// token.
func (b *InMemory) SetApprovalForAll(token, owner, operator asset.Address, approved bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := allowanceKey{token.Normalize(), owner.Normalize(), operator.Normalize()}
	if approved {
		b.opsForAll[key] = true
	} else {
		delete(b.opsForAll, key)
	}
}

// TransferNative implements NativeLedger.
func (b *InMemory) TransferNative(ctx context.Context, from, to asset.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	amount = asset.Clone(amount)
	fromKey := from.Normalize()
	bal := b.native[fromKey]
	if asset.Clone(bal).Lt(amount) {
		return fmt.Errorf("transfer %s from %s: %w", amount, from, ErrInsufficientFunds)
	}
	b.native[fromKey] = sub(bal, amount)
	b.native[to.Normalize()] = add(b.native[to.Normalize()], amount)
	return nil
}

// NativeBalance implements NativeLedger.
func (b *InMemory) NativeBalance(ctx context.Context, account asset.Address) (*uint256.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return asset.Clone(b.native[account.Normalize()]), nil
}

// TransferToken implements TokenLedger.
func (b *InMemory) TransferToken(ctx context.Context, token, from, to asset.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.moveToken(token, from, to, amount)
}

// TransferTokenFrom implements TokenLedger. The spender's allowance
// over the holder's tokens is checked and consumed.
func (b *InMemory) TransferTokenFrom(ctx context.Context, token, spender, from, to asset.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	amount = asset.Clone(amount)
	key := allowanceKey{token.Normalize(), from.Normalize(), spender.Normalize()}
	allowance := b.allowances[key]
	if asset.Clone(allowance).Lt(amount) {
		return fmt.Errorf("transfer %s of %s by %s: %w", amount, token, spender, ErrAllowanceExceeded)
	}
	if err := b.moveToken(token, from, to, amount); err != nil {
		return err
	}
	b.allowances[key] = sub(allowance, amount)
	return nil
}

// TokenBalance implements TokenLedger.
func (b *InMemory) TokenBalance(ctx context.Context, token, holder asset.Address) (*uint256.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return asset.Clone(b.holders(token)[holder.Normalize()]), nil
}

// TokenAllowance implements TokenLedger.
func (b *InMemory) TokenAllowance(_ context.Context, token, owner, spender asset.Address) (*uint256.Int, error) {
	return b.Allowance(token, owner, spender), nil
}

// TransferNFT implements NFTLedger.
func (b *InMemory) TransferNFT(ctx context.Context, token, operator, from, to asset.Address, tokenID uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := nftKey{token.Normalize(), tokenID}
	owner, ok := b.nfts[key]
	if !ok {
		return fmt.Errorf("nft %s/%d: %w", token, tokenID, ErrNonexistentToken)
	}
	if owner != from.Normalize() || !b.operatorAllowed(key, owner, operator) {
		return fmt.Errorf("nft %s/%d by %s: %w", token, tokenID, operator, ErrNotOwnerOrApproved)
	}
	b.nfts[key] = to.Normalize()
	delete(b.nftOps, key)
	return nil
}

// NFTOwner implements NFTLedger.
func (b *InMemory) NFTOwner(ctx context.Context, token asset.Address, tokenID uint64) (asset.Address, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	owner, ok := b.nfts[nftKey{token.Normalize(), tokenID}]
	if !ok {
		return "", fmt.Errorf("nft %s/%d: %w", token, tokenID, ErrNonexistentToken)
	}
	return owner, nil
}

// NFTApproved implements NFTLedger.
func (b *InMemory) NFTApproved(_ context.Context, token asset.Address, tokenID uint64, operator asset.Address) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := nftKey{token.Normalize(), tokenID}
	owner, ok := b.nfts[key]
	if !ok {
		return false, fmt.Errorf("nft %s/%d: %w", token, tokenID, ErrNonexistentToken)
	}
	return b.operatorAllowed(key, owner, operator), nil
}

func (b *InMemory) moveToken(token, from, to asset.Address, amount *uint256.Int) error {
	amount = asset.Clone(amount)
	hs := b.holders(token)
	fromKey := from.Normalize()
	bal := hs[fromKey]
	if asset.Clone(bal).Lt(amount) {
		return fmt.Errorf("transfer %s of %s from %s: %w", amount, token, from, ErrBalanceExceeded)
	}
	hs[fromKey] = sub(bal, amount)
	hs[to.Normalize()] = add(hs[to.Normalize()], amount)
	return nil
}

func (b *InMemory) operatorAllowed(key nftKey, owner, operator asset.Address) bool {
	op := operator.Normalize()
	if op == owner {
		return true
	}
	if b.nftOps[key] == op {
		return true
	}
	return b.opsForAll[allowanceKey{key.token, owner, op}]
}

func (b *InMemory) holders(token asset.Address) map[asset.Address]*uint256.Int {
	hs, ok := b.tokens[token.Normalize()]
	if !ok {
		hs = make(map[asset.Address]*uint256.Int)
		b.tokens[token.Normalize()] = hs
	}
	return hs
}

func add(x, y *uint256.Int) *uint256.Int {
	out, err := asset.Add(x, y)
	if err != nil {
		panic(err)
	}
	return out
}

func sub(x, y *uint256.Int) *uint256.Int {
	out, err := asset.Sub(x, y)
	if err != nil {
		panic(err)
	}
	return out
}
