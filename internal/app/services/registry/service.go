// Package registry implements the upgradeable module registry: it routes
// operation selectors to module handles and applies routing changes as
// all-or-nothing cut batches.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/sendgft/contracts/internal/app/domain/asset"
	"github.com/sendgft/contracts/internal/app/domain/registry"
	"github.com/sendgft/contracts/internal/app/events"
	"github.com/sendgft/contracts/internal/app/metrics"
	"github.com/sendgft/contracts/internal/app/storage"
	"github.com/sendgft/contracts/pkg/logger"
)

// Initializer runs once after a cut batch commits. Its failure rolls the
// batch back, so a cut is live only when its initializer succeeded.
type Initializer func(ctx context.Context) error

// Service owns selector routing and the registry admin identity.
type Service struct {
	mu       sync.Mutex
	store    storage.RegistryStore
	admin    asset.Address
	recorder *events.Recorder
	log      *logger.Logger
}

// New constructs the module registry.
func New(store storage.RegistryStore, admin asset.Address, recorder *events.Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("registry")
	}
	return &Service{
		store:    store,
		admin:    admin,
		recorder: recorder,
		log:      log,
	}
}

// Admin returns the current registry admin.
func (s *Service) Admin() asset.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admin
}

// Cut validates a batch of routing changes against the current routing and,
// only if every change is valid, applies the whole batch atomically. init,
// if non-nil, runs after the batch commits; if it fails the routing is
// restored to its pre-cut state.
func (s *Service) Cut(ctx context.Context, caller asset.Address, changes []registry.Change, init Initializer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller.Normalize() != s.admin.Normalize() {
		metrics.ObserveCut("denied")
		return fmt.Errorf("cut by %s: %w", caller, registry.ErrMustBeAdmin)
	}

	current, err := s.store.ListSelectors(ctx)
	if err != nil {
		return err
	}

	// Validate the whole batch against a working view before touching the
	// store, so a bad entry anywhere leaves routing untouched.
	working := make(map[registry.Selector]registry.Module, len(current))
	for sel, mod := range current {
		working[sel] = mod
	}
	upserts := make(map[registry.Selector]registry.Module)
	var deletes []registry.Selector
	for _, ch := range changes {
		for _, sel := range ch.Selectors {
			_, routed := working[sel]
			switch ch.Action {
			case registry.ActionAdd:
				if routed {
					metrics.ObserveCut("rejected")
					return fmt.Errorf("cut add %q: %w", sel, registry.ErrSelectorExists)
				}
				working[sel] = ch.Module
				upserts[sel] = ch.Module
			case registry.ActionReplace:
				if !routed {
					metrics.ObserveCut("rejected")
					return fmt.Errorf("cut replace %q: %w", sel, registry.ErrSelectorMissing)
				}
				working[sel] = ch.Module
				upserts[sel] = ch.Module
			case registry.ActionRemove:
				if !routed {
					metrics.ObserveCut("rejected")
					return fmt.Errorf("cut remove %q: %w", sel, registry.ErrSelectorMissing)
				}
				delete(working, sel)
				delete(upserts, sel)
				deletes = append(deletes, sel)
			default:
				metrics.ObserveCut("rejected")
				return fmt.Errorf("cut: unknown action %d", ch.Action)
			}
		}
	}

	if err := s.store.ApplyRouting(ctx, upserts, deletes); err != nil {
		metrics.ObserveCut("failed")
		return err
	}

	if init != nil {
		if initErr := init(ctx); initErr != nil {
			restore, drop := s.inverseBatch(current, upserts, deletes)
			if err := s.store.ApplyRouting(ctx, restore, drop); err != nil {
				metrics.ObserveCut("failed")
				return fmt.Errorf("cut initializer: %w (routing not restored: %w)", initErr, err)
			}
			metrics.ObserveCut("reverted")
			s.log.WithError(initErr).Warn("cut reverted")
			return fmt.Errorf("cut initializer: %w", initErr)
		}
	}

	metrics.ObserveCut("applied")
	s.recorder.Emit(events.Event{
		Type:   events.EventCut,
		Module: "registry",
		Fields: map[string]string{
			"changes":   fmt.Sprintf("%d", len(changes)),
			"selectors": fmt.Sprintf("%d", len(upserts)+len(deletes)),
		},
	})
	s.log.WithField("changes", len(changes)).
		WithField("selectors", len(upserts)+len(deletes)).
		Info("cut applied")
	return nil
}

// inverseBatch derives the routing changes that undo a committed batch,
// given the routing snapshot taken before it was applied.
func (s *Service) inverseBatch(current, upserts map[registry.Selector]registry.Module, deletes []registry.Selector) (map[registry.Selector]registry.Module, []registry.Selector) {
	restore := make(map[registry.Selector]registry.Module)
	var drop []registry.Selector
	for sel := range upserts {
		if prev, ok := current[sel]; ok {
			restore[sel] = prev
		} else {
			drop = append(drop, sel)
		}
	}
	for _, sel := range deletes {
		if prev, ok := current[sel]; ok {
			restore[sel] = prev
		}
	}
	return restore, drop
}

// Resolve returns the module handle a selector routes to.
func (s *Service) Resolve(ctx context.Context, sel registry.Selector) (registry.Module, error) {
	return s.store.GetSelector(ctx, sel)
}

// Selectors returns a snapshot of the full routing table.
func (s *Service) Selectors(ctx context.Context) (map[registry.Selector]registry.Module, error) {
	return s.store.ListSelectors(ctx)
}

// ModuleSelectors returns the selectors currently routed to the named
// module, useful when assembling a replace or remove batch.
func (s *Service) ModuleSelectors(ctx context.Context, name string) ([]registry.Selector, error) {
	all, err := s.store.ListSelectors(ctx)
	if err != nil {
		return nil, err
	}
	var out []registry.Selector
	for sel, mod := range all {
		if mod.Name == name {
			out = append(out, sel)
		}
	}
	return out, nil
}

// TransferAdmin hands registry control to a new identity. Admin only.
func (s *Service) TransferAdmin(caller, next asset.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller.Normalize() != s.admin.Normalize() {
		return fmt.Errorf("transfer admin by %s: %w", caller, registry.ErrMustBeAdmin)
	}
	if next.IsZero() || next == "" {
		return fmt.Errorf("transfer admin: new admin is required")
	}

	prev := s.admin
	s.admin = next
	s.recorder.Emit(events.Event{
		Type:   events.EventAdminTransferred,
		Module: "registry",
		Fields: map[string]string{"from": string(prev), "to": string(next)},
	})
	s.log.WithField("from", prev).WithField("to", next).Info("admin transferred")
	return nil
}
