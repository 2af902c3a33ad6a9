// Package idhash derives deterministic identifiers from run inputs, so
// identical configurations map to identical IDs and persisted results
// deduplicate naturally.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"backtest-lab/internal/domain"
)

// RunID hashes the full run configuration. Struct fields marshal in
// declaration order, so the encoding is canonical.
func RunID(cfg domain.RunConfig) string {
	raw, err := json.Marshal(cfg)
	if err != nil {
		// RunConfig contains only marshalable fields.
		panic(fmt.Sprintf("idhash: marshal run config: %v", err))
	}
	sum := sha256.Sum256(raw)
	return "run_" + hex.EncodeToString(sum[:8])
}

// TradeID identifies one closed round-trip within a run.
func TradeID(runID string, t domain.TradeLogEntry) string {
	key := fmt.Sprintf("%s|%s|%d|%d|%s", runID, t.Symbol, t.EntryTime, t.ExitTime, t.ExitType)
	sum := sha256.Sum256([]byte(key))
	return "trd_" + hex.EncodeToString(sum[:8])
}
