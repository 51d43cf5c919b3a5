package registry

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sendgft/contracts/internal/app/domain/asset"
	"github.com/sendgft/contracts/internal/app/domain/registry"
	"github.com/sendgft/contracts/internal/app/storage"
	"github.com/sendgft/contracts/pkg/logger"
)

const admin = asset.Address("admin1")

func newService(t *testing.T) *Service {
	t.Helper()
	log := logger.NewDefault("test")
	log.SetOutput(io.Discard)
	return New(storage.NewMemory(), admin, nil, log)
}

func giftsV1(selectors ...registry.Selector) registry.Change {
	return registry.Change{
		Module:    registry.Module{Name: "gifts", Version: "1.0.0"},
		Action:    registry.ActionAdd,
		Selectors: selectors,
	}
}

func TestCutAddAndResolve(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	err := svc.Cut(ctx, admin, []registry.Change{
		giftsV1("gifts.create", "gifts.claim"),
	}, nil)
	if err != nil {
		t.Fatalf("cut: %v", err)
	}

	mod, err := svc.Resolve(ctx, "gifts.create")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if mod.Name != "gifts" || mod.Version != "1.0.0" {
		t.Fatalf("resolved %+v", mod)
	}

	if _, err := svc.Resolve(ctx, "gifts.open"); !errors.Is(err, registry.ErrUnknownSelector) {
		t.Fatalf("unrouted selector: got %v, want ErrUnknownSelector", err)
	}
}

func TestCutRequiresAdmin(t *testing.T) {
	svc := newService(t)
	err := svc.Cut(context.Background(), "mallory", []registry.Change{
		giftsV1("gifts.create"),
	}, nil)
	if !errors.Is(err, registry.ErrMustBeAdmin) {
		t.Fatalf("got %v, want ErrMustBeAdmin", err)
	}
}

func TestCutAddRejectsRoutedSelector(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if err := svc.Cut(ctx, admin, []registry.Change{giftsV1("gifts.create")}, nil); err != nil {
		t.Fatalf("seed cut: %v", err)
	}
	err := svc.Cut(ctx, admin, []registry.Change{giftsV1("gifts.create")}, nil)
	if !errors.Is(err, registry.ErrSelectorExists) {
		t.Fatalf("got %v, want ErrSelectorExists", err)
	}
}

func TestCutReplaceAndRemove(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if err := svc.Cut(ctx, admin, []registry.Change{giftsV1("gifts.create", "gifts.claim")}, nil); err != nil {
		t.Fatalf("seed cut: %v", err)
	}

	err := svc.Cut(ctx, admin, []registry.Change{
		{
			Module:    registry.Module{Name: "gifts", Version: "2.0.0"},
			Action:    registry.ActionReplace,
			Selectors: []registry.Selector{"gifts.create"},
		},
		{
			Action:    registry.ActionRemove,
			Selectors: []registry.Selector{"gifts.claim"},
		},
	}, nil)
	if err != nil {
		t.Fatalf("upgrade cut: %v", err)
	}

	mod, err := svc.Resolve(ctx, "gifts.create")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if mod.Version != "2.0.0" {
		t.Fatalf("version = %q, want 2.0.0", mod.Version)
	}
	if _, err := svc.Resolve(ctx, "gifts.claim"); !errors.Is(err, registry.ErrUnknownSelector) {
		t.Fatalf("removed selector: got %v, want ErrUnknownSelector", err)
	}

	// Replace and remove both require a routed selector.
	err = svc.Cut(ctx, admin, []registry.Change{
		{Action: registry.ActionReplace, Selectors: []registry.Selector{"gifts.claim"}},
	}, nil)
	if !errors.Is(err, registry.ErrSelectorMissing) {
		t.Fatalf("replace unrouted: got %v, want ErrSelectorMissing", err)
	}
	err = svc.Cut(ctx, admin, []registry.Change{
		{Action: registry.ActionRemove, Selectors: []registry.Selector{"gifts.claim"}},
	}, nil)
	if !errors.Is(err, registry.ErrSelectorMissing) {
		t.Fatalf("remove unrouted: got %v, want ErrSelectorMissing", err)
	}
}

func TestCutBatchIsAtomic(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	// The second change is invalid, so the first must not land either.
	err := svc.Cut(ctx, admin, []registry.Change{
		giftsV1("gifts.create"),
		{Action: registry.ActionRemove, Selectors: []registry.Selector{"gifts.never"}},
	}, nil)
	if !errors.Is(err, registry.ErrSelectorMissing) {
		t.Fatalf("got %v, want ErrSelectorMissing", err)
	}

	all, err := svc.Selectors(ctx)
	if err != nil {
		t.Fatalf("selectors: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("routing table has %d entries after failed cut, want 0", len(all))
	}
}

func TestCutAddThenRemoveInOneBatch(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	err := svc.Cut(ctx, admin, []registry.Change{
		giftsV1("gifts.create"),
		{Action: registry.ActionRemove, Selectors: []registry.Selector{"gifts.create"}},
	}, nil)
	if err != nil {
		t.Fatalf("cut: %v", err)
	}
	if _, err := svc.Resolve(ctx, "gifts.create"); !errors.Is(err, registry.ErrUnknownSelector) {
		t.Fatalf("got %v, want ErrUnknownSelector", err)
	}
}

func TestCutInitializer(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	ran := false
	err := svc.Cut(ctx, admin, []registry.Change{giftsV1("gifts.create")}, func(context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("cut: %v", err)
	}
	if !ran {
		t.Fatal("initializer did not run")
	}

	// A failing initializer undoes the whole cut: added selectors vanish,
	// replaced ones revert to their previous module.
	initErr := errors.New("boom")
	err = svc.Cut(ctx, admin, []registry.Change{
		giftsV1("gifts.claim"),
		{
			Module:    registry.Module{Name: "gifts", Version: "2.0.0"},
			Action:    registry.ActionReplace,
			Selectors: []registry.Selector{"gifts.create"},
		},
	}, func(context.Context) error {
		return initErr
	})
	if !errors.Is(err, initErr) {
		t.Fatalf("got %v, want wrapped initializer error", err)
	}
	if _, err := svc.Resolve(ctx, "gifts.claim"); !errors.Is(err, registry.ErrUnknownSelector) {
		t.Fatalf("added selector survived failed initializer: %v", err)
	}
	mod, err := svc.Resolve(ctx, "gifts.create")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if mod.Version != "1.0.0" {
		t.Fatalf("version = %q after failed initializer, want 1.0.0", mod.Version)
	}
}

func TestModuleSelectors(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	err := svc.Cut(ctx, admin, []registry.Change{
		giftsV1("gifts.create", "gifts.claim"),
		{
			Module:    registry.Module{Name: "cards", Version: "1.0.0"},
			Action:    registry.ActionAdd,
			Selectors: []registry.Selector{"cards.add"},
		},
	}, nil)
	if err != nil {
		t.Fatalf("cut: %v", err)
	}

	sels, err := svc.ModuleSelectors(ctx, "gifts")
	if err != nil {
		t.Fatalf("module selectors: %v", err)
	}
	if len(sels) != 2 {
		t.Fatalf("gifts selectors = %v, want 2 entries", sels)
	}
	sels, _ = svc.ModuleSelectors(ctx, "oracle")
	if len(sels) != 0 {
		t.Fatalf("oracle selectors = %v, want none", sels)
	}
}

func TestTransferAdmin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if err := svc.TransferAdmin("mallory", "next"); !errors.Is(err, registry.ErrMustBeAdmin) {
		t.Fatalf("transfer by stranger: got %v, want ErrMustBeAdmin", err)
	}
	if err := svc.TransferAdmin(admin, ""); err == nil {
		t.Fatal("empty next admin accepted")
	}

	next := asset.Address("admin2")
	if err := svc.TransferAdmin(admin, next); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := svc.Admin(); got != next {
		t.Fatalf("admin = %s, want %s", got, next)
	}

	// The old admin loses cut rights, the new one gains them.
	if err := svc.Cut(ctx, admin, []registry.Change{giftsV1("gifts.create")}, nil); !errors.Is(err, registry.ErrMustBeAdmin) {
		t.Fatalf("old admin cut: got %v, want ErrMustBeAdmin", err)
	}
	if err := svc.Cut(ctx, next, []registry.Change{giftsV1("gifts.create")}, nil); err != nil {
		t.Fatalf("new admin cut: %v", err)
	}
}
