package blockchain

import (
	"context"
	"testing"

	"orbit-station/internal/ids"
	"orbit-station/internal/model"
)

type fakeLedgerClient struct {
	balances    map[string]uint64
	blockHeight uint64
	blockHash   string
	transferErr error
}

func (f *fakeLedgerClient) Balance(_ context.Context, accountIdentifier string) (uint64, error) {
	return f.balances[accountIdentifier], nil
}

func (f *fakeLedgerClient) Transfer(_ context.Context, _ [32]byte, _ string, _ uint64, _ []byte) (uint64, error) {
	if f.transferErr != nil {
		return 0, f.transferErr
	}
	return f.blockHeight, nil
}

func (f *fakeLedgerClient) BlockHash(_ context.Context, height uint64) (string, error) {
	if height != f.blockHeight {
		return "", nil
	}
	return f.blockHash, nil
}

func TestGenerateAddressIsDeterministic(t *testing.T) {
	a := NewInternetComputerNative(&fakeLedgerClient{}, "mainnet", "station-principal", 8, 10000)
	seed := [16]byte{1, 2, 3, 4}

	first, err := a.GenerateAddress(seed)
	if err != nil {
		t.Fatalf("GenerateAddress: %v", err)
	}
	second, err := a.GenerateAddress(seed)
	if err != nil {
		t.Fatalf("GenerateAddress: %v", err)
	}
	if first[0].Address != second[0].Address {
		t.Fatalf("expected deterministic address derivation, got %q then %q", first[0].Address, second[0].Address)
	}
	if first[0].Format != "icp_account_id" {
		t.Fatalf("unexpected format %q", first[0].Format)
	}

	otherSeed := [16]byte{9, 9, 9}
	other, err := a.GenerateAddress(otherSeed)
	if err != nil {
		t.Fatalf("GenerateAddress: %v", err)
	}
	if other[0].Address == first[0].Address {
		t.Fatal("expected distinct seeds to derive distinct account identifiers")
	}
}

func TestSubmitTransactionMissingBlockHashLeavesEmptyTransactionHash(t *testing.T) {
	client := &fakeLedgerClient{blockHeight: 42, blockHash: ""}
	a := NewInternetComputerNative(client, "mainnet", "station-principal", 8, 10000)

	account := model.Account{ID: ids.New(), Seed: [16]byte{5}}
	transfer := model.Transfer{ID: ids.New(), ToAddress: "dead", Amount: 100}

	details, err := a.SubmitTransaction(context.Background(), account, transfer)
	if err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}
	if details["transaction_hash"] != "" {
		t.Fatalf("expected empty transaction_hash on missing block, got %q", details["transaction_hash"])
	}
	if details["block_height"] != "42" {
		t.Fatalf("expected block_height 42, got %q", details["block_height"])
	}
}

func TestSubmitTransactionPropagatesLedgerTransferError(t *testing.T) {
	client := &fakeLedgerClient{transferErr: errBoom{}}
	a := NewInternetComputerNative(client, "mainnet", "station-principal", 8, 10000)

	account := model.Account{ID: ids.New(), Seed: [16]byte{5}}
	transfer := model.Transfer{ID: ids.New(), ToAddress: "dead", Amount: 100}

	if _, err := a.SubmitTransaction(context.Background(), account, transfer); err == nil {
		t.Fatal("expected error from failing ledger transfer")
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
