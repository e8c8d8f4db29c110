package blockchain

import (
	"context"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ripemd160" //lint:ignore SA1019 grounded on the teacher's wallet.go, which uses the same legacy hash for address derivation

	"orbit-station/internal/apierr"
	"orbit-station/internal/model"
)

// LedgerClient is the outbound collaborator InternetComputerNative calls
// for balance queries and ledger transfers — the host platform's canister
// call facility in production, a fake in tests.
type LedgerClient interface {
	Balance(ctx context.Context, accountIdentifier string) (uint64, error)
	Transfer(ctx context.Context, fromSubaccount [32]byte, toAccountIdentifier string, amount uint64, memo []byte) (blockHeight uint64, err error)
	BlockHash(ctx context.Context, blockHeight uint64) (string, error)
}

// InternetComputerNative is the ICP-native blockchain adapter variant
// (spec.md §4.7): subaccount is left-pad16(seed) ∥ zeros[16], and the
// ledger account identifier is H(principal ∥ subaccount). Grounded on the
// teacher's core/wallet.go, which derives an address the same way — hash
// some key material with ripemd160 over a running digest — adapted here to
// ICP's principal+subaccount scheme using blake2b for the primary digest.
type InternetComputerNative struct {
	client     LedgerClient
	network    string
	decimals   uint32
	feeBaseUnits uint64
	principal  string // the station's own ledger principal, used as the "owner" half of every derived account identifier
}

func NewInternetComputerNative(client LedgerClient, network, principal string, decimals uint32, feeBaseUnits uint64) *InternetComputerNative {
	return &InternetComputerNative{client: client, network: network, principal: principal, decimals: decimals, feeBaseUnits: feeBaseUnits}
}

// Subaccount implements spec.md §4.7's "left-pad16(seed) ∥ zeros32−16".
func Subaccount(seed [16]byte) [32]byte {
	var sub [32]byte
	copy(sub[:16], seed[:])
	return sub
}

// AccountIdentifier implements spec.md §4.7's "H(principal ∥ subaccount)".
func AccountIdentifier(principal string, subaccount [32]byte) string {
	primary := blake2b.Sum256(append([]byte(principal), subaccount[:]...))
	r := ripemd160.New()
	r.Write(primary[:])
	compact := r.Sum(nil)
	return hex.EncodeToString(compact)
}

func (a *InternetComputerNative) GenerateAddress(seed [16]byte) ([]model.AccountAddress, error) {
	sub := Subaccount(seed)
	id := AccountIdentifier(a.principal, sub)
	return []model.AccountAddress{{Address: id, Format: "icp_account_id"}}, nil
}

func (a *InternetComputerNative) Balance(ctx context.Context, address string) (uint64, error) {
	bal, err := a.client.Balance(ctx, address)
	if err != nil {
		return 0, apierr.Newf(apierr.Storage, "icp ledger balance query failed: %v", err)
	}
	return bal, nil
}

func (a *InternetComputerNative) Decimals(context.Context) (uint32, error) { return a.decimals, nil }

func (a *InternetComputerNative) TransactionFee(context.Context) (uint64, map[string]string, error) {
	return a.feeBaseUnits, map[string]string{"network": a.network}, nil
}

func (a *InternetComputerNative) DefaultNetwork() string { return a.network }

// SubmitTransaction implements spec.md §4.7: submit a Transfer message,
// then range-query one block to obtain the transaction hash; a missing
// block or lookup failure yields an empty transaction_hash without failing
// the operation.
func (a *InternetComputerNative) SubmitTransaction(ctx context.Context, account model.Account, transfer model.Transfer) (map[string]string, error) {
	sub := Subaccount(account.Seed)
	blockHeight, err := a.client.Transfer(ctx, sub, transfer.ToAddress, transfer.Amount, memoFor(transfer))
	if err != nil {
		return nil, fmt.Errorf("icp ledger transfer: %w", err)
	}
	details := map[string]string{"block_height": fmt.Sprintf("%d", blockHeight)}
	hash, err := a.client.BlockHash(ctx, blockHeight)
	if err != nil || hash == "" {
		details["transaction_hash"] = ""
	} else {
		details["transaction_hash"] = hash
	}
	return details, nil
}

// memoFor implements spec.md §4.6's memo selection: use metadata "memo" if
// present, else derive from the transfer id's first 8 bytes.
func memoFor(transfer model.Transfer) []byte {
	if memo, ok := transfer.Metadata["memo"]; ok && memo != "" {
		return []byte(memo)
	}
	return transfer.ID[:8]
}
