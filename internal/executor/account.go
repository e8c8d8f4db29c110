package executor

import (
	"context"

	"orbit-station/internal/apierr"
	"orbit-station/internal/blockchain"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/repository"
)

type addAccountExecutor struct {
	repos  *repository.Repos
	chains *blockchain.Registry
}

func (x *addAccountExecutor) Authorize(model.Operation) (string, string, *ids.ID) {
	return "Account", "Create", nil
}

func (x *addAccountExecutor) Validate(op model.Operation) error {
	in := op.AddAccount
	if in == nil {
		return apierr.New(apierr.Validation, "add account operation missing payload")
	}
	if _, exists := x.repos.Accounts.GetByName(model.NormalizeName(in.Name)); exists {
		return apierr.Newf(apierr.Duplicate, "account name %q already in use", in.Name)
	}
	for _, assetID := range in.Assets {
		if !x.repos.Assets.Exists(assetID) {
			return apierr.Newf(apierr.Validation, "add account references unknown asset %s", assetID)
		}
	}
	if err := validateLenInline("account name", in.Name, model.UserNameMin, model.UserNameMax); err != nil {
		return err
	}
	if len(in.Assets) == 0 {
		return apierr.New(apierr.Validation, "account must reference at least one asset to derive an address from")
	}
	return in.Metadata.Validate()
}

// Execute materializes addresses for every blockchain-bearing asset the new
// account holds via the adapter registry, then persists the Account (spec.md
// §3: "addresses are materialized at create time"; spec.md:174: "derive
// addresses by invoking adapter.generate_address(seed) for each (blockchain,
// standard) present; fetch decimals through the adapter").
func (x *addAccountExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.AddAccount

	account := model.Account{
		ID:               ids.New(),
		Name:             in.Name,
		Seed:             in.Seed,
		Metadata:         in.Metadata,
		TransferPolicyID: in.TransferPolicyID,
		ConfigsPolicyID:  in.ConfigsPolicyID,
	}

	seenFormats := make(map[string]struct{})
	for _, assetID := range in.Assets {
		asset, ok := x.repos.Assets.Get(assetID)
		if !ok {
			return nil, apierr.NotFoundf("asset", assetID.String())
		}
		accountAsset := model.AccountAsset{AssetID: assetID}
		for standard := range asset.Standards {
			adapter, ok := x.chains.For(standard)
			if !ok {
				continue
			}
			if accountAsset.Decimals == 0 {
				decimals, err := adapter.Decimals(ctx)
				if err != nil {
					return nil, err
				}
				accountAsset.Decimals = decimals
			}
			addrs, err := adapter.GenerateAddress(in.Seed)
			if err != nil {
				return nil, err
			}
			for _, addr := range addrs {
				if _, dup := seenFormats[addr.Format]; dup {
					continue
				}
				seenFormats[addr.Format] = struct{}{}
				account.Addresses = append(account.Addresses, addr)
			}
		}
		account.Assets = append(account.Assets, accountAsset)
	}
	if len(account.Addresses) == 0 {
		return nil, apierr.New(apierr.Validation, "no blockchain adapter could derive an address for this account's assets")
	}

	if err := x.repos.Accounts.Insert(account); err != nil {
		return nil, err
	}
	return map[string]string{"account_id": account.ID.String()}, nil
}

type editAccountExecutor struct {
	repos  *repository.Repos
	chains *blockchain.Registry
}

func (x *editAccountExecutor) Authorize(op model.Operation) (string, string, *ids.ID) {
	return "Account", "Update", idOrNil(op.Resource())
}

func (x *editAccountExecutor) Validate(op model.Operation) error {
	in := op.EditAccount
	if in == nil {
		return apierr.New(apierr.Validation, "edit account operation missing payload")
	}
	if !x.repos.Accounts.Exists(in.AccountID) {
		return apierr.NotFoundf("account", in.AccountID.String())
	}
	for _, assetID := range in.AddAssets {
		if !x.repos.Assets.Exists(assetID) {
			return apierr.Newf(apierr.Validation, "edit account references unknown asset %s", assetID)
		}
	}
	return nil
}

func (x *editAccountExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.EditAccount
	account, ok := x.repos.Accounts.Get(in.AccountID)
	if !ok {
		return nil, apierr.NotFoundf("account", in.AccountID.String())
	}

	if in.Name != nil {
		account.Name = *in.Name
	}
	if in.TransferPolicyID != nil {
		account.TransferPolicyID = in.TransferPolicyID
	}
	if in.ConfigsPolicyID != nil {
		account.ConfigsPolicyID = in.ConfigsPolicyID
	}
	remove := ids.NewSet(in.RemoveAssets...)
	kept := account.Assets[:0]
	for _, aa := range account.Assets {
		if remove.Contains(aa.AssetID) {
			continue
		}
		kept = append(kept, aa)
	}
	account.Assets = kept
	for _, assetID := range in.AddAssets {
		if _, has := account.BalanceOf(assetID); has {
			continue
		}
		accountAsset := model.AccountAsset{AssetID: assetID}
		asset, ok := x.repos.Assets.Get(assetID)
		if !ok {
			return nil, apierr.NotFoundf("asset", assetID.String())
		}
		for standard := range asset.Standards {
			adapter, ok := x.chains.For(standard)
			if !ok {
				continue
			}
			decimals, err := adapter.Decimals(ctx)
			if err != nil {
				return nil, err
			}
			accountAsset.Decimals = decimals
			break
		}
		account.Assets = append(account.Assets, accountAsset)
	}

	if err := account.Validate(nil); err != nil {
		return nil, err
	}
	if err := x.repos.Accounts.Insert(account); err != nil {
		return nil, err
	}
	return nil, nil
}
