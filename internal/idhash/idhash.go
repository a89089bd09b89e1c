// Package idhash computes deterministic identifiers so replayed inputs
// produce the same rows instead of duplicates.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeCurveID computes a deterministic curve_id using SHA256.
// Formula: SHA256(agent_id|token_mint)
// Returns hex-encoded hash (64 characters).
func ComputeCurveID(agentID, tokenMint string) string {
	data := fmt.Sprintf("%s|%s", agentID, tokenMint)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(curve_id|tx_signature)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(curveID, txSignature string) string {
	data := fmt.Sprintf("%s|%s", curveID, txSignature)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
