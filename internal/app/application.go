// Package app wires the gift engine together: stores, custody bank, the
// exchange oracle, the card marketplace, the gift lifecycle and the module
// registry, under one lifecycle manager.
package app

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/sendgft/contracts/internal/app/custody"
	"github.com/sendgft/contracts/internal/app/domain/asset"
	"github.com/sendgft/contracts/internal/app/domain/registry"
	"github.com/sendgft/contracts/internal/app/events"
	cardsvc "github.com/sendgft/contracts/internal/app/services/cards"
	giftsvc "github.com/sendgft/contracts/internal/app/services/gifts"
	oraclesvc "github.com/sendgft/contracts/internal/app/services/oracle"
	regsvc "github.com/sendgft/contracts/internal/app/services/registry"
	"github.com/sendgft/contracts/internal/app/signing"
	"github.com/sendgft/contracts/internal/app/storage"
	"github.com/sendgft/contracts/internal/app/system"
	"github.com/sendgft/contracts/internal/config"
	"github.com/sendgft/contracts/pkg/logger"
)

// Version tags module handles installed by the default routing.
const Version = "1.0.0"

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Gifts   storage.GiftStore
	Cards   storage.CardStore
	Ledger  storage.LedgerStore
	Rates   storage.RateStore
	Routing storage.RegistryStore
}

// Application ties the engine services together and manages their lifecycle.
type Application struct {
	manager  *system.Manager
	log      *logger.Logger
	recorder *events.Recorder

	Bank     custody.Bank
	Oracle   *oraclesvc.Service
	Cards    *cardsvc.Service
	Gifts    *giftsvc.Service
	Registry *regsvc.Service
}

// New builds a fully initialised application. A nil bank defaults to the
// in-memory custody ledger and a nil verifier to signature recovery.
func New(cfg config.EngineConfig, stores Stores, bank custody.Bank, verifier signing.Verifier, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if bank == nil {
		bank = custody.NewInMemory()
	}
	if verifier == nil {
		verifier = signing.Recoverer{}
	}
	if cfg.Admin == "" {
		return nil, fmt.Errorf("engine admin is required")
	}

	mem := storage.NewMemory()
	if stores.Gifts == nil {
		stores.Gifts = mem
	}
	if stores.Cards == nil {
		stores.Cards = mem
	}
	if stores.Ledger == nil {
		stores.Ledger = mem
	}
	if stores.Rates == nil {
		stores.Rates = mem
	}
	if stores.Routing == nil {
		stores.Routing = mem
	}

	admin := asset.Address(cfg.Admin).Normalize()
	recorder := events.NewRecorder(cfg.EventBuffer)
	manager := system.NewManager()

	oracleService := oraclesvc.New(stores.Rates, bank, asset.Address(cfg.OracleAccount), admin, recorder, log)
	cardService := cardsvc.New(stores.Cards, stores.Ledger, bank, oracleService, verifier, admin, asset.Address(cfg.Treasury), recorder, log)
	giftService := giftsvc.New(stores.Gifts, cardService, bank, asset.Address(cfg.Escrow), admin, recorder, log)
	registryService := regsvc.New(stores.Routing, admin, recorder, log)

	if cfg.TaxBps != 0 {
		if err := cardService.SetTax(admin, cfg.TaxBps); err != nil {
			return nil, fmt.Errorf("configure tax: %w", err)
		}
	}
	if len(cfg.AllowedFeeTokens) > 0 {
		tokens := make([]asset.Address, len(cfg.AllowedFeeTokens))
		for i, t := range cfg.AllowedFeeTokens {
			tokens[i] = asset.Address(t)
		}
		if err := cardService.SetAllowedFeeTokens(admin, tokens); err != nil {
			return nil, fmt.Errorf("configure fee tokens: %w", err)
		}
	}
	if cfg.CardBaseURI != "" {
		if err := cardService.SetBaseURI(admin, cfg.CardBaseURI); err != nil {
			return nil, fmt.Errorf("configure card base URI: %w", err)
		}
	}
	if cfg.GiftBaseURI != "" {
		if err := giftService.SetBaseURI(admin, cfg.GiftBaseURI); err != nil {
			return nil, fmt.Errorf("configure gift base URI: %w", err)
		}
	}
	if cfg.DefaultContentHash != "" {
		if err := giftService.SetDefaultContentHash(admin, cfg.DefaultContentHash); err != nil {
			return nil, fmt.Errorf("configure default content hash: %w", err)
		}
	}

	for _, name := range []string{"oracle", "cards", "gifts", "registry"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	monitor := oraclesvc.NewInventoryMonitor(oracleService, uint256.NewInt(1), log)
	for _, t := range cfg.AllowedFeeTokens {
		token := asset.Address(t)
		if !token.IsZero() && token != "" {
			monitor.Watch(token)
		}
	}
	if err := manager.Register(monitor); err != nil {
		return nil, fmt.Errorf("register inventory monitor: %w", err)
	}

	app := &Application{
		manager:  manager,
		log:      log,
		recorder: recorder,
		Bank:     bank,
		Oracle:   oracleService,
		Cards:    cardService,
		Gifts:    giftService,
		Registry: registryService,
	}
	if err := app.installDefaultRouting(context.Background()); err != nil {
		return nil, fmt.Errorf("install routing: %w", err)
	}
	return app, nil
}

// Recorder exposes the event recorder, e.g. to attach sinks.
func (a *Application) Recorder() *events.Recorder {
	return a.recorder
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// installDefaultRouting publishes every public operation selector in the
// registry. Selectors already routed (a restart against a persistent store)
// are left as they are.
func (a *Application) installDefaultRouting(ctx context.Context) error {
	admin := a.Registry.Admin()
	modules := []struct {
		name      string
		selectors []registry.Selector
	}{
		{"oracle", []registry.Selector{
			"oracle.set_price", "oracle.quote", "oracle.trade",
		}},
		{"cards", []registry.Selector{
			"cards.add", "cards.set_enabled", "cards.set_fee", "cards.set_approved",
			"cards.set_allowed_fee_tokens", "cards.set_tax", "cards.use",
			"cards.withdraw_taxes", "cards.withdraw_earnings", "cards.token_uri",
			"cards.set_base_uri",
		}},
		{"gifts", []registry.Selector{
			"gifts.create", "gifts.claim", "gifts.open_and_claim", "gifts.token_uri",
			"gifts.set_base_uri", "gifts.set_default_content_hash",
		}},
		{"registry", []registry.Selector{
			"registry.cut", "registry.resolve", "registry.transfer_admin",
		}},
	}

	current, err := a.Registry.Selectors(ctx)
	if err != nil {
		return err
	}
	var changes []registry.Change
	for _, mod := range modules {
		var missing []registry.Selector
		for _, sel := range mod.selectors {
			if _, ok := current[sel]; !ok {
				missing = append(missing, sel)
			}
		}
		if len(missing) == 0 {
			continue
		}
		changes = append(changes, registry.Change{
			Module:    registry.Module{Name: mod.name, Address: mod.name, Version: Version},
			Action:    registry.ActionAdd,
			Selectors: missing,
		})
	}
	if len(changes) == 0 {
		return nil
	}
	return a.Registry.Cut(ctx, admin, changes, nil)
}
