// Package oracle implements the price oracle: bidirectional exchange rates
// between the native settlement currency and accepted fee tokens, quoting,
// and side-effectful trades served from the oracle's own token inventory.
package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/sendgft/contracts/internal/app/custody"
	"github.com/sendgft/contracts/internal/app/domain/asset"
	"github.com/sendgft/contracts/internal/app/domain/oracle"
	"github.com/sendgft/contracts/internal/app/events"
	"github.com/sendgft/contracts/internal/app/metrics"
	"github.com/sendgft/contracts/internal/app/storage"
	"github.com/sendgft/contracts/pkg/logger"
)

// Service quotes and executes conversions between the native currency and fee
// tokens. Rates are stored as pairs; both directions are set atomically.
type Service struct {
	mu       sync.Mutex
	store    storage.RateStore
	bank     custody.Bank
	account  asset.Address
	admin    asset.Address
	recorder *events.Recorder
	log      *logger.Logger
}

// New constructs a price oracle. account is the oracle's own inventory
// account on the host ledger; admin is the only identity allowed to set
// rates.
func New(store storage.RateStore, bank custody.Bank, account, admin asset.Address, recorder *events.Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("oracle")
	}
	return &Service{
		store:    store,
		bank:     bank,
		account:  account,
		admin:    admin,
		recorder: recorder,
		log:      log,
	}
}

// Account returns the oracle's inventory account.
func (s *Service) Account() asset.Address {
	return s.account
}

// Inventory returns the oracle account's balance in a token, or its native
// balance for the zero token.
func (s *Service) Inventory(ctx context.Context, token asset.Address) (*uint256.Int, error) {
	if token.IsZero() {
		return s.bank.NativeBalance(ctx, s.account)
	}
	return s.bank.TokenBalance(ctx, token, s.account)
}

// SetPrice stores the exchange rate between two tokens in both directions.
// The two supplied rates must be reciprocal within the stored precision.
func (s *Service) SetPrice(ctx context.Context, caller, tokenA, tokenB asset.Address, rateAB, rateBA *uint256.Int) error {
	if caller.Normalize() != s.admin.Normalize() {
		return fmt.Errorf("set price by %s: %w", caller, oracle.ErrMustBeAdmin)
	}
	if tokenA.Normalize() == tokenB.Normalize() {
		return fmt.Errorf("set price %s/%s: %w", tokenA, tokenB, oracle.ErrRateMismatch)
	}
	if err := oracle.CheckReciprocal(rateAB, rateBA); err != nil {
		return fmt.Errorf("set price %s/%s (%s vs %s): %w", tokenA, tokenB, rateAB, rateBA, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pair := oracle.RatePair{TokenA: tokenA, TokenB: tokenB, RateAB: rateAB, RateBA: rateBA}
	if err := s.store.SetRatePair(ctx, pair); err != nil {
		return err
	}

	s.recorder.Emit(events.Event{
		Type:   events.EventPriceSet,
		Module: "oracle",
		Fields: map[string]string{
			"token_a": string(tokenA),
			"token_b": string(tokenB),
			"rate_ab": rateAB.Dec(),
			"rate_ba": rateBA.Dec(),
		},
	})
	s.log.WithField("token_a", tokenA).
		WithField("token_b", tokenB).
		WithField("rate_ab", rateAB.Dec()).
		Info("price set")
	return nil
}

// Quote computes how much native currency must be supplied to receive
// amountOut of tokenOut, rounding up so the quote always covers the trade.
func (s *Service) Quote(ctx context.Context, tokenOut asset.Address, amountOut *uint256.Int) (*uint256.Int, error) {
	if tokenOut.IsZero() {
		return nil, fmt.Errorf("quote for native token: %w", oracle.ErrUnknownRate)
	}
	rate, err := s.store.GetRate(ctx, asset.ZeroAddress, tokenOut)
	if err != nil {
		return nil, err
	}
	if rate.IsZero() {
		return nil, fmt.Errorf("quote for %s: %w", tokenOut, oracle.ErrUnknownRate)
	}

	// amountIn = ceil(amountOut * RateScale / rate)
	amountIn, err := asset.MulDiv(amountOut, oracle.RateScale, rate)
	if err != nil {
		return nil, fmt.Errorf("quote for %s: %w", tokenOut, err)
	}
	rem := new(uint256.Int).MulMod(asset.Clone(amountOut), oracle.RateScale, rate)
	if !rem.IsZero() {
		amountIn, err = asset.Add(amountIn, uint256.NewInt(1))
		if err != nil {
			return nil, fmt.Errorf("quote for %s: %w", tokenOut, err)
		}
	}
	return amountIn, nil
}

// Trade sells exactly amountOut of tokenOut to recipient against supplied
// native input. The full supplied input is retained by the oracle, including
// any excess over the quote; there is no refund path.
func (s *Service) Trade(ctx context.Context, caller asset.Address, tokenOut asset.Address, amountOut *uint256.Int, recipient asset.Address, supplied *uint256.Int) error {
	required, err := s.Quote(ctx, tokenOut, amountOut)
	if err != nil {
		return err
	}
	if asset.Clone(supplied).Lt(required) {
		return fmt.Errorf("trade %s for %s: supplied %s, need %s: %w",
			amountOut, tokenOut, supplied, required, oracle.ErrInputInsufficient)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inventory, err := s.bank.TokenBalance(ctx, tokenOut, s.account)
	if err != nil {
		return err
	}
	if inventory.Lt(amountOut) {
		return fmt.Errorf("trade %s for %s: inventory %s: %w",
			amountOut, tokenOut, inventory, oracle.ErrInsufficientInventory)
	}

	// Capture the whole input first, then release output. Excess input is
	// deliberately not refunded; callers must quote before trading.
	if err := s.bank.TransferNative(ctx, caller, s.account, supplied); err != nil {
		return fmt.Errorf("trade input transfer: %w", err)
	}
	if err := s.bank.TransferToken(ctx, tokenOut, s.account, recipient, amountOut); err != nil {
		return fmt.Errorf("trade output transfer: %w", err)
	}

	metrics.ObserveTrade(string(tokenOut))
	s.recorder.Emit(events.Event{
		Type:   events.EventTrade,
		Module: "oracle",
		Fields: map[string]string{
			"token_out":  string(tokenOut),
			"amount_out": amountOut.Dec(),
			"supplied":   supplied.Dec(),
			"recipient":  string(recipient),
		},
	})
	s.log.WithField("token_out", tokenOut).
		WithField("amount_out", amountOut.Dec()).
		WithField("supplied", supplied.Dec()).
		Info("trade executed")
	return nil
}
