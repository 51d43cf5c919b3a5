// Package registry defines the selector-routing model for the upgradeable
// module registry: each public operation selector resolves to exactly one
// module handle, and routing changes apply as atomic batches.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Selector names a routable operation, e.g. "gifts.create".
type Selector string

// Module is the handle a selector resolves to.
type Module struct {
	Name    string
	Address string
	Version string
}

// Action is the kind of change a cut applies to a selector.
type Action int32

const (
	// ActionAdd maps selectors that must not already be routed.
	ActionAdd Action = iota

	// ActionReplace remaps selectors that must already be routed.
	ActionReplace

	// ActionRemove clears selectors that must already be routed.
	ActionRemove
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionReplace:
		return "replace"
	case ActionRemove:
		return "remove"
	default:
		return fmt.Sprintf("action(%d)", a)
	}
}

// MarshalJSON implements json.Marshaler.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// Change is one entry of a cut batch: an action applied to a set of
// selectors, all pointing at the same module.
type Change struct {
	Module    Module
	Action    Action
	Selectors []Selector
}

var (
	// ErrSelectorExists rejects an Add for a selector that is already routed.
	ErrSelectorExists = errors.New("registry: selector exists")

	// ErrSelectorMissing rejects a Replace or Remove for an unrouted selector.
	ErrSelectorMissing = errors.New("registry: selector missing")

	// ErrUnknownSelector is returned by resolution for unrouted selectors.
	ErrUnknownSelector = errors.New("registry: unknown selector")

	// ErrMustBeAdmin rejects cuts and admin transfers by non-admin callers.
	ErrMustBeAdmin = errors.New("registry: must be contract owner")
)
