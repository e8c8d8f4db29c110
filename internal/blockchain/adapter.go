// Package blockchain implements the C7 pluggable blockchain adapter
// capability set from spec.md §4.7: address derivation, balance, fee, and
// submit-transaction, behind concrete variants selected by a closed
// TokenStandard tag rather than dynamic dispatch (§9 design note).
package blockchain

import (
	"context"

	"orbit-station/internal/model"
)

// Adapter is the capability set spec.md §4.7 requires of every blockchain
// integration.
type Adapter interface {
	// GenerateAddress derives every address format this adapter supports
	// for the given account seed (spec.md §3: "addresses are materialized
	// at create time").
	GenerateAddress(seed [16]byte) ([]model.AccountAddress, error)

	// Balance queries the live balance at address in base units.
	Balance(ctx context.Context, address string) (uint64, error)

	// Decimals reports the base-unit scale for this adapter's native asset.
	Decimals(ctx context.Context) (uint32, error)

	// TransactionFee reports the adapter's current transfer fee and any
	// fee-related metadata (e.g. a gas price snapshot).
	TransactionFee(ctx context.Context) (fee uint64, metadata map[string]string, err error)

	// DefaultNetwork names the network this adapter instance talks to
	// (e.g. "mainnet", "sepolia").
	DefaultNetwork() string

	// SubmitTransaction submits transfer from account and returns adapter
	// details (e.g. block height / transaction hash) on success.
	SubmitTransaction(ctx context.Context, account model.Account, transfer model.Transfer) (details map[string]string, err error)
}

// Registry selects the concrete Adapter for a TokenStandard tag — a closed
// switch, not a dynamic lookup table, per spec.md §9: "use a tagged enum of
// concrete adapters selected by TokenStandard rather than dynamic
// registration; this makes the set closed and exhaustively checkable."
type Registry struct {
	icp *InternetComputerNative
	eth *Ethereum
}

func NewRegistry(icp *InternetComputerNative, eth *Ethereum) *Registry {
	return &Registry{icp: icp, eth: eth}
}

// For returns the adapter responsible for standard, or false if the
// standard is unsupported.
func (r *Registry) For(standard model.TokenStandard) (Adapter, bool) {
	switch standard {
	case model.StandardICPNative:
		if r.icp == nil {
			return nil, false
		}
		return r.icp, true
	case model.StandardERC20, model.StandardEthNative:
		if r.eth == nil {
			return nil, false
		}
		return r.eth, true
	default:
		return nil, false
	}
}
