package model

import (
	"time"

	"orbit-station/internal/ids"
)

// TransferStatusKind tags a Transfer's execution state (spec.md §3).
type TransferStatusKind string

const (
	TransferCreated    TransferStatusKind = "Created"
	TransferProcessing TransferStatusKind = "Processing"
	TransferCompleted  TransferStatusKind = "Completed"
	TransferFailed     TransferStatusKind = "Failed"
)

// TransferStatus carries the payload a few states need.
type TransferStatus struct {
	Kind      TransferStatusKind
	StartedAt time.Time
	Hash      string
	At        time.Time
	Reason    string
}

// Transfer is the ephemeral execution record produced by running a
// Transfer request (spec.md §3). Exactly one exists per executed transfer
// request (spec.md §8 invariant 5).
type Transfer struct {
	ID           ids.ID
	RequestID    ids.ID
	FromAccount  ids.ID
	FromAsset    ids.ID
	WithStandard TokenStandard
	ToAddress    string
	Amount       uint64
	Fee          uint64
	Network      string
	Metadata     Metadata
	Status       TransferStatus
}
