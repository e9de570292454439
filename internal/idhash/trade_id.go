package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|column|entry_step|sequence)
// The sequence disambiguates reversals that close one trade and open another
// at the same (column, step).
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(runID string, column, entryStep, sequence int) string {
	data := fmt.Sprintf("%s|%d|%d|%d",
		runID,
		column,
		entryStep,
		sequence,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
