package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/sendgft/contracts/internal/app/domain/card"
	"github.com/sendgft/contracts/internal/app/domain/gift"
	"github.com/sendgft/contracts/internal/app/domain/oracle"
	"github.com/sendgft/contracts/internal/app/domain/registry"
)

func TestGiftIDsAreSequential(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		g, err := m.CreateGift(ctx, gift.Gift{
			Sender: "alice",
			Params: gift.Params{Recipient: "bob", Message: "hi"},
		})
		if err != nil {
			t.Fatalf("create gift %d: %v", i, err)
		}
		if g.ID != uint64(i) {
			t.Fatalf("gift id = %d, want %d", g.ID, i)
		}
	}

	last, err := m.LastGiftID(ctx)
	if err != nil {
		t.Fatalf("last gift id: %v", err)
	}
	if last != 3 {
		t.Fatalf("last gift id = %d, want 3", last)
	}
}

func TestSentReceivedIndices(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.CreateGift(ctx, gift.Gift{Sender: "Alice", Params: gift.Params{Recipient: "bob", Message: "1"}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.CreateGift(ctx, gift.Gift{Sender: "carol", Params: gift.Params{Recipient: "BOB", Message: "2"}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.CreateGift(ctx, gift.Gift{Sender: "alice", Params: gift.Params{Recipient: "dave", Message: "3"}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	sent, err := m.ListSentGifts(ctx, "ALICE")
	if err != nil {
		t.Fatalf("sent: %v", err)
	}
	if len(sent) != 2 || sent[0] != 1 || sent[1] != 3 {
		t.Fatalf("alice sent = %v, want [1 3]", sent)
	}

	recv, err := m.ListReceivedGifts(ctx, "bob")
	if err != nil {
		t.Fatalf("received: %v", err)
	}
	if len(recv) != 2 || recv[0] != 1 || recv[1] != 2 {
		t.Fatalf("bob received = %v, want [1 2]", recv)
	}
}

func TestGiftNotFound(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.GetGift(ctx, 42); !errors.Is(err, gift.ErrNonexistentToken) {
		t.Fatalf("get: got %v, want ErrNonexistentToken", err)
	}
	if _, err := m.UpdateGift(ctx, gift.Gift{ID: 42}); !errors.Is(err, gift.ErrNonexistentToken) {
		t.Fatalf("update: got %v, want ErrNonexistentToken", err)
	}
}

func TestDeleteGiftRemovesIndices(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	g, err := m.CreateGift(ctx, gift.Gift{Sender: "alice", Params: gift.Params{Recipient: "bob", Message: "hi"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.DeleteGift(ctx, g.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := m.GetGift(ctx, g.ID); !errors.Is(err, gift.ErrNonexistentToken) {
		t.Fatalf("get deleted: got %v, want ErrNonexistentToken", err)
	}
	sent, _ := m.ListSentGifts(ctx, "alice")
	recv, _ := m.ListReceivedGifts(ctx, "bob")
	if len(sent) != 0 || len(recv) != 0 {
		t.Fatalf("indices after delete: sent %v, received %v, want empty", sent, recv)
	}
	if err := m.DeleteGift(ctx, g.ID); !errors.Is(err, gift.ErrNonexistentToken) {
		t.Fatalf("double delete: got %v, want ErrNonexistentToken", err)
	}

	// Deleted ids are not reused.
	next, err := m.CreateGift(ctx, gift.Gift{Sender: "alice", Params: gift.Params{Recipient: "bob", Message: "again"}})
	if err != nil {
		t.Fatalf("create after delete: %v", err)
	}
	if next.ID != g.ID+1 {
		t.Fatalf("next id = %d, want %d", next.ID, g.ID+1)
	}
}

func TestCardContentHashUnique(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	c, err := m.CreateCard(ctx, card.Card{Owner: "owner1", ContentHash: "hash1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID != 1 {
		t.Fatalf("card id = %d, want 1", c.ID)
	}

	if _, err := m.CreateCard(ctx, card.Card{Owner: "owner2", ContentHash: "hash1"}); !errors.Is(err, card.ErrAlreadyAdded) {
		t.Fatalf("duplicate: got %v, want ErrAlreadyAdded", err)
	}

	byHash, err := m.GetCardByContentHash(ctx, "hash1")
	if err != nil {
		t.Fatalf("get by hash: %v", err)
	}
	if byHash.ID != c.ID {
		t.Fatalf("by hash id = %d, want %d", byHash.ID, c.ID)
	}
}

func TestCreditFeeAccumulates(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := m.CreditFee(ctx, card.Settlement{
			CardID:    1,
			CardOwner: "owner1",
			FeeToken:  "token1",
			FeeAmount: uint256.NewInt(40),
			Tax:       uint256.NewInt(4),
			Earnings:  uint256.NewInt(36),
		})
		if err != nil {
			t.Fatalf("credit %d: %v", i, err)
		}
	}

	taxes, _ := m.TaxBalance(ctx, "token1")
	if taxes.Uint64() != 8 {
		t.Fatalf("taxes = %s, want 8", taxes)
	}
	earnings, _ := m.EarningsBalance(ctx, "owner1", "token1")
	if earnings.Uint64() != 72 {
		t.Fatalf("earnings = %s, want 72", earnings)
	}
	total, err := m.TotalEarnings(ctx, "token1")
	if err != nil {
		t.Fatalf("total earnings: %v", err)
	}
	if total.Uint64() != 72 {
		t.Fatalf("total = %s, want 72", total)
	}

	settlements, _ := m.ListSettlements(ctx, "token1")
	if len(settlements) != 2 {
		t.Fatalf("settlements = %d, want 2", len(settlements))
	}
	if settlements[0].ID == "" || settlements[0].ID == settlements[1].ID {
		t.Fatalf("settlement ids not unique: %q %q", settlements[0].ID, settlements[1].ID)
	}
}

func TestTakeZeroesBalances(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.CreditFee(ctx, card.Settlement{
		CardOwner: "owner1",
		FeeToken:  "token1",
		FeeAmount: uint256.NewInt(10),
		Tax:       uint256.NewInt(1),
		Earnings:  uint256.NewInt(9),
	}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	taken, err := m.TakeTaxes(ctx, "token1")
	if err != nil {
		t.Fatalf("take taxes: %v", err)
	}
	if taken.Uint64() != 1 {
		t.Fatalf("taken = %s, want 1", taken)
	}
	remaining, _ := m.TaxBalance(ctx, "token1")
	if !remaining.IsZero() {
		t.Fatalf("taxes after take = %s, want 0", remaining)
	}

	taken, err = m.TakeEarnings(ctx, "owner1", "token1")
	if err != nil {
		t.Fatalf("take earnings: %v", err)
	}
	if taken.Uint64() != 9 {
		t.Fatalf("taken earnings = %s, want 9", taken)
	}
	remaining, _ = m.EarningsBalance(ctx, "owner1", "token1")
	if !remaining.IsZero() {
		t.Fatalf("earnings after take = %s, want 0", remaining)
	}
}

func TestCreditRestoresTakenBalances(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.CreditFee(ctx, card.Settlement{
		CardOwner: "owner1",
		FeeToken:  "token1",
		FeeAmount: uint256.NewInt(10),
		Tax:       uint256.NewInt(1),
		Earnings:  uint256.NewInt(9),
	}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	taken, _ := m.TakeTaxes(ctx, "token1")
	if err := m.CreditTaxes(ctx, "token1", taken); err != nil {
		t.Fatalf("credit taxes: %v", err)
	}
	taxes, _ := m.TaxBalance(ctx, "token1")
	if taxes.Uint64() != 1 {
		t.Fatalf("taxes = %s after restore, want 1", taxes)
	}

	taken, _ = m.TakeEarnings(ctx, "owner1", "token1")
	if err := m.CreditEarnings(ctx, "owner1", "token1", taken); err != nil {
		t.Fatalf("credit earnings: %v", err)
	}
	earnings, _ := m.EarningsBalance(ctx, "owner1", "token1")
	if earnings.Uint64() != 9 {
		t.Fatalf("earnings = %s after restore, want 9", earnings)
	}
}

func TestRatePairBothDirections(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.SetRatePair(ctx, oracle.RatePair{
		TokenA: "native",
		TokenB: "token1",
		RateAB: uint256.NewInt(2),
		RateBA: uint256.NewInt(500),
	})
	if err != nil {
		t.Fatalf("set rate pair: %v", err)
	}

	ab, err := m.GetRate(ctx, "native", "token1")
	if err != nil {
		t.Fatalf("get a->b: %v", err)
	}
	if ab.Uint64() != 2 {
		t.Fatalf("a->b = %s, want 2", ab)
	}
	ba, err := m.GetRate(ctx, "token1", "native")
	if err != nil {
		t.Fatalf("get b->a: %v", err)
	}
	if ba.Uint64() != 500 {
		t.Fatalf("b->a = %s, want 500", ba)
	}

	if _, err := m.GetRate(ctx, "native", "token2"); !errors.Is(err, oracle.ErrUnknownRate) {
		t.Fatalf("unknown pair: got %v, want ErrUnknownRate", err)
	}
}

func TestApplyRouting(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	mod := registry.Module{Name: "gifts", Address: "gifts", Version: "1.0.0"}
	err := m.ApplyRouting(ctx, map[registry.Selector]registry.Module{
		"gifts.create": mod,
		"gifts.claim":  mod,
	}, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := m.GetSelector(ctx, "gifts.create")
	if err != nil {
		t.Fatalf("get selector: %v", err)
	}
	if got.Name != "gifts" {
		t.Fatalf("module = %+v", got)
	}

	if err := m.ApplyRouting(ctx, nil, []registry.Selector{"gifts.claim"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.GetSelector(ctx, "gifts.claim"); !errors.Is(err, registry.ErrUnknownSelector) {
		t.Fatalf("removed selector: got %v, want ErrUnknownSelector", err)
	}

	all, err := m.ListSelectors(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("selectors = %d, want 1", len(all))
	}
}
