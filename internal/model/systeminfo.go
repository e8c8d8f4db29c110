package model

import "orbit-station/internal/apierr"

// SchemaVersion is the current index/storage schema tag (spec.md §6: "a
// schema-version header in SystemInfo is checked at startup; if it
// differs, the matching rebuild routines run before accepting traffic").
// Bump this whenever a repository's index shape changes.
const SchemaVersion = 1

// SystemInfo is the single persisted record carrying station-wide
// metadata: its display name, the schema version it was last rebuilt
// against, and the upgrader principal it trusts for
// notify_failed_station_upgrade calls (spec.md §6 "persisted state layout",
// SPEC_FULL.md §2: "ManageSystemInfo additionally supports changing the
// station's upgrader canister id reference").
type SystemInfo struct {
	DisplayName       string
	SchemaVersion     int
	UpgraderPrincipal string
}

// NeedsRebuild reports whether the stored schema version differs from the
// code's current SchemaVersion, per spec.md §6's startup check.
func (s SystemInfo) NeedsRebuild() bool {
	return s.SchemaVersion != SchemaVersion
}

// Validate enforces the SystemInfo invariants that don't require a
// repository lookup.
func (s SystemInfo) Validate() error {
	if len(s.DisplayName) > UserNameMax {
		return apierr.Newf(apierr.Validation, "system display name exceeds %d characters", UserNameMax)
	}
	return nil
}
