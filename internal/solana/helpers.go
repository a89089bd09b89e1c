package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidateSignature checks that sig is a base58-encoded 64-byte signature.
func ValidateSignature(sig string) error {
	decoded, err := base58.Decode(sig)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if len(decoded) != 64 {
		return fmt.Errorf("signature must be 64 bytes, got %d", len(decoded))
	}
	return nil
}

// ValidateAddress checks that addr is a base58-encoded 32-byte public key.
func ValidateAddress(addr string) error {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("decode address: %w", err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("address must be 32 bytes, got %d", len(decoded))
	}
	return nil
}

// IsOnCurve reports whether addr decodes to a point on the ed25519 curve.
// Wallet addresses are on-curve; program-derived addresses are not.
func IsOnCurve(addr string) bool {
	decoded, err := base58.Decode(addr)
	if err != nil || len(decoded) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}
