package app

import (
	"context"
	"io"
	"testing"

	"github.com/holiman/uint256"

	"github.com/sendgft/contracts/internal/app/custody"
	"github.com/sendgft/contracts/internal/app/domain/asset"
	"github.com/sendgft/contracts/internal/app/domain/gift"
	"github.com/sendgft/contracts/internal/app/domain/oracle"
	"github.com/sendgft/contracts/internal/app/domain/registry"
	"github.com/sendgft/contracts/internal/app/events"
	cardsvc "github.com/sendgft/contracts/internal/app/services/cards"
	"github.com/sendgft/contracts/internal/app/signing"
	"github.com/sendgft/contracts/internal/config"
	"github.com/sendgft/contracts/pkg/logger"
	"github.com/sendgft/contracts/pkg/testutil"
)

func newApp(t *testing.T) (*Application, *custody.InMemory, *signing.Signer) {
	t.Helper()

	log := logger.NewDefault("test")
	log.SetOutput(io.Discard)

	signer := testutil.NewSigner(t, "admin")
	bank := custody.NewInMemory()

	cfg := config.Default().Engine
	cfg.Admin = string(signer.Address())
	cfg.AllowedFeeTokens = []string{"", "token1"}
	cfg.GiftBaseURI = "ipfs://"
	cfg.CardBaseURI = "ipfs://"

	a, err := New(cfg, Stores{}, bank, nil, log)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	return a, bank, signer
}

func TestNewRequiresAdmin(t *testing.T) {
	cfg := config.Default().Engine
	if _, err := New(cfg, Stores{}, nil, nil, nil); err == nil {
		t.Fatal("missing admin accepted")
	}
}

func TestDefaultRoutingInstalled(t *testing.T) {
	a, _, _ := newApp(t)
	ctx := context.Background()

	for _, sel := range []registry.Selector{
		"gifts.create", "gifts.claim", "cards.add", "cards.use",
		"oracle.trade", "registry.cut",
	} {
		mod, err := a.Registry.Resolve(ctx, sel)
		if err != nil {
			t.Fatalf("resolve %s: %v", sel, err)
		}
		if mod.Version != Version {
			t.Fatalf("%s routed to version %q, want %q", sel, mod.Version, Version)
		}
	}
}

func TestEndToEndGiftFlow(t *testing.T) {
	a, bank, signer := newApp(t)
	admin := signer.Address()
	ctx := context.Background()

	// Price one native coin at two token1 and stock the exchange.
	rateAB := new(uint256.Int).Mul(uint256.NewInt(2), oracle.RateScale)
	if err := a.Oracle.SetPrice(ctx, admin, asset.ZeroAddress, "token1", rateAB, uint256.NewInt(5e17)); err != nil {
		t.Fatalf("set price: %v", err)
	}
	bank.MintToken("token1", a.Oracle.Account(), uint256.NewInt(1000))

	c, err := a.Cards.AddCard(ctx, cardsvc.AddCardParams{
		Owner:       "artist",
		ContentHash: "card-hash",
		Fee:         asset.Fee{TokenContract: "token1", Value: uint256.NewInt(40)},
	}, signer.SignApproval("card-hash"))
	if err != nil {
		t.Fatalf("add card: %v", err)
	}

	sender := asset.Address("alice")
	recipient := asset.Address("bob")
	bank.MintNative(sender, uint256.NewInt(100))

	// 30 native escrowed plus the 20 native fee input.
	g, err := a.Gifts.Create(ctx, sender, gift.Params{
		Recipient:   recipient,
		CardID:      c.ID,
		Message:     "for you",
		NativeValue: uint256.NewInt(30),
	}, uint256.NewInt(50))
	if err != nil {
		t.Fatalf("create gift: %v", err)
	}

	if err := a.Gifts.Claim(ctx, recipient, g.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	recipNative, _ := bank.NativeBalance(ctx, recipient)
	if recipNative.Uint64() != 30 {
		t.Fatalf("recipient native = %s, want 30", recipNative)
	}
	senderNative, _ := bank.NativeBalance(ctx, sender)
	if senderNative.Uint64() != 50 {
		t.Fatalf("sender native = %s, want 50", senderNative)
	}

	// The 40 token1 fee settled into the treasury and split 10% tax.
	treasuryTokens, _ := bank.TokenBalance(ctx, "token1", a.Cards.Treasury())
	if treasuryTokens.Uint64() != 40 {
		t.Fatalf("treasury tokens = %s, want 40", treasuryTokens)
	}
	taxes, err := a.Cards.TotalTaxes(ctx, "token1")
	if err != nil {
		t.Fatalf("total taxes: %v", err)
	}
	if taxes.Uint64() != 4 {
		t.Fatalf("taxes = %s, want 4", taxes)
	}
	earnings, err := a.Cards.Earnings(ctx, "artist", "token1")
	if err != nil {
		t.Fatalf("earnings: %v", err)
	}
	if earnings.Uint64() != 36 {
		t.Fatalf("earnings = %s, want 36", earnings)
	}
}

func TestLifecycle(t *testing.T) {
	a, _, _ := newApp(t)
	ctx := context.Background()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestRecorderSeesEngineEvents(t *testing.T) {
	a, _, signer := newApp(t)
	ctx := context.Background()

	var types []events.EventType
	a.Recorder().AddSink(events.SinkFunc(func(evt events.Event) {
		types = append(types, evt.Type)
	}))

	if _, err := a.Cards.AddCard(ctx, cardsvc.AddCardParams{
		Owner:       "artist",
		ContentHash: "evt-hash",
		Fee:         asset.Fee{TokenContract: asset.ZeroAddress, Value: uint256.NewInt(0)},
	}, signer.SignApproval("evt-hash")); err != nil {
		t.Fatalf("add card: %v", err)
	}

	found := false
	for _, typ := range types {
		if typ == events.EventCardAdded {
			found = true
		}
	}
	if !found {
		t.Fatalf("recorded types = %v, want card.added", types)
	}
}
