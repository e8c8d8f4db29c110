package executor

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"orbit-station/internal/blockchain"
	"orbit-station/internal/engine"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/permission"
	"orbit-station/internal/policy"
	"orbit-station/internal/repository"
)

// syncScheduler runs scheduled callbacks immediately, mirroring
// internal/engine/engine_test.go's pattern so post-timer state can be
// asserted without racing a goroutine.
type syncScheduler struct{}

func (syncScheduler) Schedule(_ time.Time, fn func()) { fn() }

// fakeLedgerClient is a minimal blockchain.LedgerClient double, grounded on
// internal/blockchain/icp_test.go's fakeLedgerClient.
type fakeLedgerClient struct {
	blockHeight uint64
	blockHash   string
}

func (f *fakeLedgerClient) Balance(context.Context, string) (uint64, error) { return 0, nil }

func (f *fakeLedgerClient) Transfer(context.Context, [32]byte, string, uint64, []byte) (uint64, error) {
	return f.blockHeight, nil
}

func (f *fakeLedgerClient) BlockHash(_ context.Context, height uint64) (string, error) {
	if height != f.blockHeight {
		return "", nil
	}
	return f.blockHash, nil
}

type testEnv struct {
	repos  *repository.Repos
	perm   *permission.Engine
	eval   *policy.Evaluator
	engine *engine.Engine
	chains *blockchain.Registry
}

func newTestEnv(t *testing.T, feeBaseUnits uint64) *testEnv {
	t.Helper()
	dir := t.TempDir()
	log := logrus.NewEntry(logrus.New())
	repos, err := repository.Open(dir, log)
	if err != nil {
		t.Fatalf("open repos: %v", err)
	}
	perm := permission.New(repos.Users, repos.Permissions)
	eval := policy.New(repos.Users, repos.AddressBook, repos.Assets, repos.NamedRules, repos.RequestPolicies)
	icp := blockchain.NewInternetComputerNative(&fakeLedgerClient{blockHeight: 1, blockHash: "hash-1"}, "mainnet", "station-principal", 8, feeBaseUnits)
	chains := blockchain.NewRegistry(icp, nil)
	eng := engine.New(repos, perm, eval, syncScheduler{}, 7*24*time.Hour, log)
	RegisterAll(eng, repos, chains, nil, nil)
	return &testEnv{repos: repos, perm: perm, eval: eval, engine: eng, chains: chains}
}

func mustInsertUser(t *testing.T, env *testEnv, principal ids.Principal, groups ...ids.ID) model.User {
	t.Helper()
	u := model.User{ID: ids.New(), Identities: []ids.Principal{principal}, Groups: ids.NewSet(groups...), Name: string(principal), Status: model.UserActive}
	if err := env.repos.Users.Insert(u); err != nil {
		t.Fatalf("insert user %s: %v", principal, err)
	}
	return u
}

func mustInsertICPAsset(t *testing.T, env *testEnv, symbol string) model.Asset {
	t.Helper()
	a := model.Asset{
		ID:         ids.New(),
		Blockchain: model.BlockchainICP,
		Symbol:     symbol,
		Name:       symbol,
		Decimals:   8,
		Standards:  map[model.TokenStandard]struct{}{model.StandardICPNative: {}},
	}
	if err := env.repos.Assets.Insert(a); err != nil {
		t.Fatalf("insert asset: %v", err)
	}
	return a
}

// grantPublic grants an unconditional Public permission for resource/action
// pairs that every scenario below needs: creating accounts, approving and
// cancelling requests. This mirrors engine_test.go's allowEditAccountPublicCreate.
func grantPublic(t *testing.T, env *testEnv, resource, action string, resourceID model.ResourceID) {
	t.Helper()
	if err := env.repos.Permissions.Insert(model.Permission{
		Resource: model.ResourceAction{Resource: resource, Action: action, ResourceID: resourceID},
		Allow:    model.Allow{Scope: model.ScopePublic},
	}); err != nil {
		t.Fatalf("insert permission %s:%s: %v", resource, action, err)
	}
}

func grantRequestLifecycle(t *testing.T, env *testEnv) {
	t.Helper()
	grantPublic(t, env, "Request", "Approve", model.AnyResource())
	grantPublic(t, env, "Request", "Cancel", model.AnyResource())
}

// mustAllowAddAccount installs an AutoApproved request policy for
// AddAccount: policy.Evaluator fails closed on an unmatched specifier
// (spec.md §4.4 "no matching policy (fail closed)"), so every scenario that
// opens an account through the engine needs one, distinct from the
// Account(Create) permission that merely authorizes proposing it.
func mustAllowAddAccount(t *testing.T, env *testEnv) {
	t.Helper()
	if err := env.repos.RequestPolicies.Insert(model.RequestPolicy{
		ID:        ids.New(),
		Specifier: model.RequestSpecifier{Kind: model.SpecifierAddAccount, Resources: model.AnyResourceIDs()},
		Rule:      model.AutoApproved(),
	}); err != nil {
		t.Fatalf("insert add-account policy: %v", err)
	}
}

// creditAccount deposits amount base units into the account's holding of
// asset (spec.md §8 S1's "Deposit 200_000_000 base units to A1" — outside
// this system's scope to originate on-chain, so tests seed it directly,
// the way engine_test.go seeds Request rows directly for its Reconcile/Sweep
// scenarios).
func creditAccount(t *testing.T, env *testEnv, accountID, assetID ids.ID, amount uint64) {
	t.Helper()
	account, ok := env.repos.Accounts.Get(accountID)
	if !ok {
		t.Fatalf("account %s not found", accountID)
	}
	account.Credit(assetID, amount)
	if err := env.repos.Accounts.Insert(account); err != nil {
		t.Fatalf("credit account: %v", err)
	}
}

// TestAddAccountExecutorDerivesAddressAndDecimals exercises C6's
// addAccountExecutor through the real engine: a public Account(Create)
// permission lets u1 propose, an AutoApproved policy approves the request,
// and Execute must derive an ICP
// address and fetch decimals through the adapter (spec.md:174).
func TestAddAccountExecutorDerivesAddressAndDecimals(t *testing.T) {
	env := newTestEnv(t, 10_000)
	now := time.Now()
	mustInsertUser(t, env, "u1")
	asset := mustInsertICPAsset(t, env, "ICP")

	grantPublic(t, env, "Account", "Create", model.AnyResource())
	grantRequestLifecycle(t, env)
	mustAllowAddAccount(t, env)

	op := model.Operation{Kind: model.SpecifierAddAccount, AddAccount: &model.AddAccountOperation{
		Name:   "A1",
		Seed:   [16]byte{1, 2, 3},
		Assets: []ids.ID{asset.ID},
	}}
	req, err := env.engine.CreateRequest("u1", op, "open A1", "", model.ExecutionPlan{Kind: model.ExecuteImmediate}, now)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if req.Status.Kind != model.StatusCompleted {
		t.Fatalf("expected Completed, got %s (%+v)", req.Status.Kind, req.Status)
	}
	account, ok := env.repos.Accounts.GetByName("A1")
	if !ok {
		t.Fatalf("account A1 not persisted")
	}
	if len(account.Addresses) == 0 {
		t.Fatalf("expected at least one derived address")
	}
	if len(account.Assets) != 1 || account.Assets[0].Decimals != 8 {
		t.Fatalf("expected decimals fetched from the adapter, got %+v", account.Assets)
	}
}

// TestTransferExecutorS1SimpleApproval implements spec.md §8's S1: a single
// eligible approver's quorum policy lets a transfer run end to end, and the
// source account's balance lands on amount-minus-fee.
func TestTransferExecutorS1SimpleApproval(t *testing.T) {
	env := newTestEnv(t, 10_000)
	now := time.Now()
	u1 := mustInsertUser(t, env, "u1")
	asset := mustInsertICPAsset(t, env, "ICP")

	grantPublic(t, env, "Account", "Create", model.AnyResource())
	grantRequestLifecycle(t, env)
	mustAllowAddAccount(t, env)

	addOp := model.Operation{Kind: model.SpecifierAddAccount, AddAccount: &model.AddAccountOperation{
		Name: "A1", Seed: [16]byte{7}, Assets: []ids.ID{asset.ID},
	}}
	addReq, err := env.engine.CreateRequest("u1", addOp, "open A1", "", model.ExecutionPlan{Kind: model.ExecuteImmediate}, now)
	if err != nil {
		t.Fatalf("create add-account request: %v", err)
	}
	if addReq.Status.Kind != model.StatusCompleted {
		t.Fatalf("expected add-account to complete, got %s (%+v)", addReq.Status.Kind, addReq.Status)
	}
	opened, ok := env.repos.Accounts.GetByName("A1")
	if !ok {
		t.Fatalf("account A1 not persisted")
	}
	accountID := opened.ID
	creditAccount(t, env, accountID, asset.ID, 200_000_000)

	grantPublic(t, env, "Account", "Transfer", model.SpecificResource(accountID))
	if err := env.repos.RequestPolicies.Insert(model.RequestPolicy{
		ID:        ids.New(),
		Specifier: model.RequestSpecifier{Kind: model.SpecifierTransfer, Resources: model.SpecificResourceIDs(accountID)},
		Rule:      model.Quorum(model.IDUsers(u1.ID), 1),
	}); err != nil {
		t.Fatalf("insert transfer policy: %v", err)
	}

	transferOp := model.Operation{Kind: model.SpecifierTransfer, Transfer: &model.TransferOperation{
		FromAccount:  accountID,
		FromAsset:    asset.ID,
		WithStandard: model.StandardICPNative,
		ToAddress:    "dead00beef00dead00beef00dead00beef00dead00beef00dead00beef0000",
		Amount:       100_000_000,
	}}
	req, err := env.engine.CreateRequest("u1", transferOp, "send to ADDR2", "", model.ExecutionPlan{Kind: model.ExecuteImmediate}, now)
	if err != nil {
		t.Fatalf("create transfer request: %v", err)
	}
	if req.Status.Kind != model.StatusCompleted {
		t.Fatalf("expected Created->Approved->Processing->Completed, got %s (%+v)", req.Status.Kind, req.Status)
	}

	account, ok := env.repos.Accounts.Get(accountID)
	if !ok {
		t.Fatalf("account disappeared")
	}
	balance, _ := account.BalanceOf(asset.ID)
	if want := uint64(200_000_000 - 100_000_000 - 10_000); balance != want {
		t.Fatalf("expected balance %d (amount-minus-fee), got %d", want, balance)
	}

	transfer, ok := env.repos.Transfers.GetByRequest(req.ID)
	if !ok || transfer.Status.Kind != model.TransferCompleted {
		t.Fatalf("expected a Completed transfer tied to the request, got %+v (ok=%v)", transfer, ok)
	}
}

// TestTransferExecutorS2TwoOfThreeQuorum implements spec.md §8's S2: a
// transfer stays Created until a second approver among a three-user quorum
// votes, then completes.
func TestTransferExecutorS2TwoOfThreeQuorum(t *testing.T) {
	env := newTestEnv(t, 10_000)
	now := time.Now()
	u1 := mustInsertUser(t, env, "u1")
	u2 := mustInsertUser(t, env, "u2")
	u3 := mustInsertUser(t, env, "u3")
	asset := mustInsertICPAsset(t, env, "ICP")

	grantPublic(t, env, "Account", "Create", model.AnyResource())
	grantRequestLifecycle(t, env)
	mustAllowAddAccount(t, env)

	addOp := model.Operation{Kind: model.SpecifierAddAccount, AddAccount: &model.AddAccountOperation{
		Name: "A1", Seed: [16]byte{8}, Assets: []ids.ID{asset.ID},
	}}
	addReq, err := env.engine.CreateRequest("u1", addOp, "open A1", "", model.ExecutionPlan{Kind: model.ExecuteImmediate}, now)
	if err != nil {
		t.Fatalf("create add-account request: %v", err)
	}
	if addReq.Status.Kind != model.StatusCompleted {
		t.Fatalf("expected add-account to complete, got %s (%+v)", addReq.Status.Kind, addReq.Status)
	}
	opened, ok := env.repos.Accounts.GetByName("A1")
	if !ok {
		t.Fatalf("account A1 not persisted")
	}
	accountID := opened.ID
	creditAccount(t, env, accountID, asset.ID, 50_000_000)

	grantPublic(t, env, "Account", "Transfer", model.SpecificResource(accountID))
	if err := env.repos.RequestPolicies.Insert(model.RequestPolicy{
		ID:        ids.New(),
		Specifier: model.RequestSpecifier{Kind: model.SpecifierTransfer, Resources: model.SpecificResourceIDs(accountID)},
		Rule:      model.Quorum(model.IDUsers(u1.ID, u2.ID, u3.ID), 2),
	}); err != nil {
		t.Fatalf("insert transfer policy: %v", err)
	}

	transferOp := model.Operation{Kind: model.SpecifierTransfer, Transfer: &model.TransferOperation{
		FromAccount:  accountID,
		FromAsset:    asset.ID,
		WithStandard: model.StandardICPNative,
		ToAddress:    "dead00beef00dead00beef00dead00beef00dead00beef00dead00beef0000",
		Amount:       1_000_000,
	}}
	req, err := env.engine.CreateRequest("u1", transferOp, "payout", "", model.ExecutionPlan{Kind: model.ExecuteImmediate}, now)
	if err != nil {
		t.Fatalf("create transfer request: %v", err)
	}
	if req.Status.Kind != model.StatusCreated {
		t.Fatalf("expected Created pending a second approval, got %s", req.Status.Kind)
	}

	updated, err := env.engine.SubmitApproval("u3", req.ID, model.DecisionApproved, "", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("submit second approval: %v", err)
	}
	if updated.Status.Kind != model.StatusCompleted {
		t.Fatalf("expected Completed after the second approval, got %s (%+v)", updated.Status.Kind, updated.Status)
	}

	account, ok := env.repos.Accounts.Get(accountID)
	if !ok {
		t.Fatalf("account disappeared")
	}
	balance, _ := account.BalanceOf(asset.ID)
	if want := uint64(50_000_000 - 1_000_000 - 10_000); balance != want {
		t.Fatalf("expected balance %d, got %d", want, balance)
	}
}

// TestTransferExecutorS3AllowListGating implements spec.md §8's S3: an
// AllowListed transfer policy rejects a destination absent from the address
// book and approves one present in it.
func TestTransferExecutorS3AllowListGating(t *testing.T) {
	env := newTestEnv(t, 10_000)
	now := time.Now()
	u1 := mustInsertUser(t, env, "u1")
	asset := mustInsertICPAsset(t, env, "ICP")

	grantPublic(t, env, "Account", "Create", model.AnyResource())
	grantRequestLifecycle(t, env)
	mustAllowAddAccount(t, env)

	addOp := model.Operation{Kind: model.SpecifierAddAccount, AddAccount: &model.AddAccountOperation{
		Name: "A1", Seed: [16]byte{9}, Assets: []ids.ID{asset.ID},
	}}
	addReq, err := env.engine.CreateRequest("u1", addOp, "open A1", "", model.ExecutionPlan{Kind: model.ExecuteImmediate}, now)
	if err != nil {
		t.Fatalf("create add-account request: %v", err)
	}
	if addReq.Status.Kind != model.StatusCompleted {
		t.Fatalf("expected add-account to complete, got %s (%+v)", addReq.Status.Kind, addReq.Status)
	}
	opened, ok := env.repos.Accounts.GetByName("A1")
	if !ok {
		t.Fatalf("account A1 not persisted")
	}
	accountID := opened.ID
	creditAccount(t, env, accountID, asset.ID, 10_000_000)

	grantPublic(t, env, "Account", "Transfer", model.SpecificResource(accountID))
	if err := env.repos.RequestPolicies.Insert(model.RequestPolicy{
		ID:        ids.New(),
		Specifier: model.RequestSpecifier{Kind: model.SpecifierTransfer, Resources: model.SpecificResourceIDs(accountID)},
		Rule:      model.AllowListed(),
	}); err != nil {
		t.Fatalf("insert transfer policy: %v", err)
	}

	notListed := model.Operation{Kind: model.SpecifierTransfer, Transfer: &model.TransferOperation{
		FromAccount:  accountID,
		FromAsset:    asset.ID,
		WithStandard: model.StandardICPNative,
		ToAddress:    "unlisted-address",
		Amount:       1_000,
	}}
	req, err := env.engine.CreateRequest("u1", notListed, "payout", "", model.ExecutionPlan{Kind: model.ExecuteImmediate}, now)
	if err != nil {
		t.Fatalf("create request for unlisted destination: %v", err)
	}
	if req.Status.Kind != model.StatusRejected {
		t.Fatalf("expected Rejected for an address absent from the address book, got %s (%+v)", req.Status.Kind, req.Status)
	}

	if err := env.repos.AddressBook.Insert(model.AddressBookEntry{
		ID:            ids.New(),
		AddressOwner:  "counterparty",
		Address:       "listed-address",
		AddressFormat: "icp_account_id",
		Blockchain:    model.BlockchainICP,
	}); err != nil {
		t.Fatalf("insert address book entry: %v", err)
	}

	listed := notListed
	listed.Transfer = &model.TransferOperation{
		FromAccount:  accountID,
		FromAsset:    asset.ID,
		WithStandard: model.StandardICPNative,
		ToAddress:    "listed-address",
		Amount:       1_000,
	}
	req2, err := env.engine.CreateRequest("u1", listed, "payout", "", model.ExecutionPlan{Kind: model.ExecuteImmediate}, now)
	if err != nil {
		t.Fatalf("create request for listed destination: %v", err)
	}
	if req2.Status.Kind != model.StatusCompleted {
		t.Fatalf("expected Completed for an allow-listed destination, got %s (%+v)", req2.Status.Kind, req2.Status)
	}
}
