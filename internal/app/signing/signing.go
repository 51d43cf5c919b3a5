// Package signing provides the approval-signature capability consumed by the
// card registry. Verification is pluggable; the concrete implementation here
// recovers a secp256k1 public key from a compact signature over a keccak256
// digest and compares the derived address against the expected signer.
package signing

import (
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"github.com/sendgft/contracts/internal/app/domain/asset"
)

// approvalPrefix domain-separates card approval signatures from any other
// message the admin key might sign.
const approvalPrefix = "\x19sendgft card approval:\n"

// Verifier checks that signature was produced by expected over message.
type Verifier interface {
	Verify(message, signature []byte, expected asset.Address) bool
}

// SignatureHash returns the canonical digest an admin signs to approve a card
// content reference.
func SignatureHash(contentHash string) []byte {
	return Keccak256([]byte(approvalPrefix + contentHash))
}

// Keccak256 hashes data with legacy keccak-256.
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// AddressFromPubKey derives the hex account address for a public key: the
// last 20 bytes of the keccak256 of the uncompressed key body.
func AddressFromPubKey(pub *secp256k1.PublicKey) asset.Address {
	raw := pub.SerializeUncompressed()
	sum := Keccak256(raw[1:])
	return asset.Address("0x" + hex.EncodeToString(sum[12:]))
}

// Recoverer verifies compact signatures by public key recovery.
type Recoverer struct{}

// Verify recovers the signer of a compact signature over message and reports
// whether it matches the expected address.
func (Recoverer) Verify(message, signature []byte, expected asset.Address) bool {
	pub, _, err := secpecdsa.RecoverCompact(signature, message)
	if err != nil {
		return false
	}
	return AddressFromPubKey(pub).Normalize() == expected.Normalize()
}

// Signer produces compact signatures compatible with Recoverer. It exists for
// tests and local tooling; production admin keys live outside the core.
type Signer struct {
	priv *secp256k1.PrivateKey
}

// NewSigner creates a signer with a fresh key.
func NewSigner() (*Signer, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &Signer{priv: priv}, nil
}

// NewSignerFromSeed derives a signer deterministically from 32 seed bytes.
func NewSignerFromSeed(seed []byte) *Signer {
	return &Signer{priv: secp256k1.PrivKeyFromBytes(seed)}
}

// Address returns the signer's account address.
func (s *Signer) Address() asset.Address {
	return AddressFromPubKey(s.priv.PubKey())
}

// Sign produces a compact signature over digest.
func (s *Signer) Sign(digest []byte) []byte {
	return secpecdsa.SignCompact(s.priv, digest, false)
}

// SignApproval signs the canonical approval digest for a content hash.
func (s *Signer) SignApproval(contentHash string) []byte {
	return s.Sign(SignatureHash(contentHash))
}
