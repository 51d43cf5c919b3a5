// Package system manages component lifecycles: registration, ordered startup
// and reverse-ordered shutdown.
package system

import "context"

// Service is a component the manager starts and stops. Start must return once
// the component is ready (long-running work belongs in goroutines it owns);
// Stop must release those goroutines before returning.
type Service interface {
	// Name identifies the service; names are unique within a manager.
	Name() string

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
