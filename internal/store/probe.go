package store

import (
	"context"
	"database/sql"
)

// Capability records which search path the store can use
type Capability string

const (
	// CapabilityIndexed means the FTS5 extension is available
	CapabilityIndexed Capability = "indexed"
	// CapabilityFallback means searches run as substring scans
	CapabilityFallback Capability = "fallback"
)

// ProbeCapability creates and drops a throwaway FTS5 table. Any error means
// the extension is unavailable and the store must use the fallback path.
func ProbeCapability(ctx context.Context, db *sql.DB) (Capability, error) {
	if _, err := db.ExecContext(ctx, "CREATE VIRTUAL TABLE temp.capability_probe USING fts5(body)"); err != nil {
		return CapabilityFallback, err
	}
	if _, err := db.ExecContext(ctx, "DROP TABLE temp.capability_probe"); err != nil {
		return CapabilityFallback, err
	}
	return CapabilityIndexed, nil
}
