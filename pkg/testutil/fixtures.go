// Package testutil provides shared test fixtures: deterministic signing
// identities and pre-funded custody banks.
package testutil

import (
	"crypto/sha256"
	"testing"

	"github.com/holiman/uint256"

	"github.com/sendgft/contracts/internal/app/custody"
	"github.com/sendgft/contracts/internal/app/domain/asset"
	"github.com/sendgft/contracts/internal/app/signing"
)

// NewSigner derives a signing identity from a seed string. The same seed
// always yields the same key, so tests can name their identities.
func NewSigner(t *testing.T, seed string) *signing.Signer {
	t.Helper()

	key := sha256.Sum256([]byte("sendgft-test-" + seed))
	return signing.NewSignerFromSeed(key[:])
}

// FundedBank returns an in-memory bank with each account holding the given
// native balance.
func FundedBank(nativeBalance uint64, accounts ...asset.Address) *custody.InMemory {
	bank := custody.NewInMemory()
	for _, account := range accounts {
		bank.MintNative(account, uint256.NewInt(nativeBalance))
	}
	return bank
}
