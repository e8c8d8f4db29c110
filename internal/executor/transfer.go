package executor

import (
	"context"
	"time"

	"orbit-station/internal/apierr"
	"orbit-station/internal/blockchain"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/repository"
)

type transferExecutor struct {
	repos  *repository.Repos
	chains *blockchain.Registry
}

func (x *transferExecutor) Authorize(op model.Operation) (string, string, *ids.ID) {
	return "Account", "Transfer", idOrNil(op.Resource())
}

func (x *transferExecutor) Validate(op model.Operation) error {
	t := op.Transfer
	if t == nil {
		return apierr.New(apierr.Validation, "transfer operation missing payload")
	}
	account, ok := x.repos.Accounts.Get(t.FromAccount)
	if !ok {
		return apierr.NotFoundf("account", t.FromAccount.String())
	}
	balance, ok := account.BalanceOf(t.FromAsset)
	if !ok {
		return apierr.Newf(apierr.Validation, "account %s does not hold asset %s", account.ID, t.FromAsset)
	}
	asset, ok := x.repos.Assets.Get(t.FromAsset)
	if !ok {
		return apierr.NotFoundf("asset", t.FromAsset.String())
	}
	if !asset.HasStandard(t.WithStandard) {
		return apierr.Newf(apierr.Validation, "asset %s does not support standard %s", asset.Symbol, t.WithStandard)
	}
	if err := validateLenInline("transfer destination address", t.ToAddress, model.AddressMin, model.AddressMax); err != nil {
		return err
	}
	if t.Amount == 0 {
		return apierr.New(apierr.Validation, "transfer amount must be > 0")
	}
	if t.Amount > balance {
		return apierr.Newf(apierr.Validation, "insufficient balance: have %d, need %d", balance, t.Amount)
	}
	return t.Metadata.Validate()
}

// Execute implements spec.md §4.7's adapter dispatch: resolve the asset's
// blockchain family, select the adapter by TokenStandard, submit, and
// persist the Transfer execution record regardless of adapter outcome
// (failure still leaves a Failed Transfer row, spec.md §8 invariant 5).
func (x *transferExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	t := req.Operation.Transfer
	account, ok := x.repos.Accounts.Get(t.FromAccount)
	if !ok {
		return nil, apierr.NotFoundf("account", t.FromAccount.String())
	}
	asset, ok := x.repos.Assets.Get(t.FromAsset)
	if !ok {
		return nil, apierr.NotFoundf("asset", t.FromAsset.String())
	}

	adapter, ok := x.chains.For(t.WithStandard)
	if !ok {
		return nil, apierr.Newf(apierr.Validation, "no blockchain adapter registered for standard %s", t.WithStandard)
	}

	fee, _, err := adapter.TransactionFee(ctx)
	if err != nil {
		return nil, err
	}

	transfer := model.Transfer{
		ID:           ids.New(),
		RequestID:    req.ID,
		FromAccount:  account.ID,
		FromAsset:    asset.ID,
		WithStandard: t.WithStandard,
		ToAddress:    t.ToAddress,
		Amount:       t.Amount,
		Fee:          fee,
		Network:      adapter.DefaultNetwork(),
		Metadata:     t.Metadata,
		Status:       model.TransferStatus{Kind: model.TransferProcessing, StartedAt: time.Now()},
	}
	if err := x.repos.Transfers.Insert(transfer); err != nil {
		return nil, err
	}

	details, err := adapter.SubmitTransaction(ctx, account, transfer)
	if err != nil {
		transfer.Status = model.TransferStatus{Kind: model.TransferFailed, Reason: err.Error(), At: time.Now()}
		_ = x.repos.Transfers.Update(transfer)
		return nil, err
	}

	transfer.Status = model.TransferStatus{Kind: model.TransferCompleted, Hash: details["transaction_hash"], At: time.Now()}
	if err := x.repos.Transfers.Update(transfer); err != nil {
		return nil, err
	}

	if err := account.Debit(t.FromAsset, t.Amount+fee); err != nil {
		return nil, err
	}
	if err := x.repos.Accounts.Insert(account); err != nil {
		return nil, err
	}
	return details, nil
}
