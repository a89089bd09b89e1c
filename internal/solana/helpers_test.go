package solana

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/mr-tron/base58"
)

func TestValidateSignature(t *testing.T) {
	sig := make([]byte, 64)
	if _, err := rand.Read(sig); err != nil {
		t.Fatalf("rand: %v", err)
	}
	if err := ValidateSignature(base58.Encode(sig)); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}

	if err := ValidateSignature("0O-not-base58"); err == nil {
		t.Error("expected error for non-base58 input")
	}
	if err := ValidateSignature(base58.Encode(sig[:32])); err == nil {
		t.Error("expected error for short signature")
	}
	if err := ValidateSignature(""); err == nil {
		t.Error("expected error for empty signature")
	}
}

func TestValidateAddress(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if err := ValidateAddress(base58.Encode(pub)); err != nil {
		t.Errorf("valid address rejected: %v", err)
	}
	if err := ValidateAddress("So11111111111111111111111111111111111111112"); err != nil {
		t.Errorf("wSOL mint rejected: %v", err)
	}

	if err := ValidateAddress("0O-not-base58"); err == nil {
		t.Error("expected error for non-base58 input")
	}
	if err := ValidateAddress(base58.Encode(pub[:16])); err == nil {
		t.Error("expected error for short address")
	}
}

func TestIsOnCurve(t *testing.T) {
	// Real public keys are always on-curve.
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if !IsOnCurve(base58.Encode(pub)) {
		t.Error("generated public key reported off-curve")
	}

	if IsOnCurve("0O-not-base58") {
		t.Error("non-base58 input reported on-curve")
	}
	if IsOnCurve(base58.Encode(pub[:16])) {
		t.Error("short input reported on-curve")
	}

	// About half of all 32-byte strings decode to no curve point; scanning one
	// byte must find one.
	buf := make([]byte, 32)
	copy(buf, pub)
	found := false
	for i := 0; i < 256; i++ {
		buf[0] = byte(i)
		if !IsOnCurve(base58.Encode(buf)) {
			found = true
			break
		}
	}
	if !found {
		t.Error("no off-curve encoding found in 256 candidates")
	}
}
