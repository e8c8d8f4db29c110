package executor

import (
	"context"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/repository"
)

type addAssetExecutor struct {
	repos *repository.Repos
}

func (x *addAssetExecutor) Authorize(model.Operation) (string, string, *ids.ID) { return "Asset", "Create", nil }

func (x *addAssetExecutor) Validate(op model.Operation) error {
	in := op.AddAsset
	if in == nil {
		return apierr.New(apierr.Validation, "add asset operation missing payload")
	}
	standards := make(map[model.TokenStandard]struct{}, len(in.Standards))
	for _, s := range in.Standards {
		standards[s] = struct{}{}
	}
	return model.Asset{Symbol: in.Symbol, Name: in.Name, Decimals: in.Decimals, Standards: standards, Metadata: in.Metadata}.Validate()
}

func (x *addAssetExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.AddAsset
	standards := make(map[model.TokenStandard]struct{}, len(in.Standards))
	for _, s := range in.Standards {
		standards[s] = struct{}{}
	}
	a := model.Asset{
		ID:         ids.New(),
		Blockchain: in.Blockchain,
		Symbol:     in.Symbol,
		Name:       in.Name,
		Decimals:   in.Decimals,
		Standards:  standards,
		Metadata:   in.Metadata,
	}
	if err := x.repos.Assets.Insert(a); err != nil {
		return nil, err
	}
	return map[string]string{"asset_id": a.ID.String()}, nil
}

type editAssetExecutor struct {
	repos *repository.Repos
}

func (x *editAssetExecutor) Authorize(op model.Operation) (string, string, *ids.ID) {
	return "Asset", "Update", idOrNil(op.Resource())
}

func (x *editAssetExecutor) Validate(op model.Operation) error {
	in := op.EditAsset
	if in == nil {
		return apierr.New(apierr.Validation, "edit asset operation missing payload")
	}
	if !x.repos.Assets.Exists(in.AssetID) {
		return apierr.NotFoundf("asset", in.AssetID.String())
	}
	return in.Metadata.Validate()
}

func (x *editAssetExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	in := req.Operation.EditAsset
	a, ok := x.repos.Assets.Get(in.AssetID)
	if !ok {
		return nil, apierr.NotFoundf("asset", in.AssetID.String())
	}
	if in.Name != nil {
		a.Name = *in.Name
	}
	if in.Metadata != nil {
		a.Metadata = in.Metadata
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return nil, x.repos.Assets.Insert(a)
}

type removeAssetExecutor struct {
	repos *repository.Repos
}

func (x *removeAssetExecutor) Authorize(op model.Operation) (string, string, *ids.ID) {
	return "Asset", "Delete", idOrNil(op.Resource())
}

func (x *removeAssetExecutor) Validate(op model.Operation) error {
	in := op.RemoveAsset
	if in == nil {
		return apierr.New(apierr.Validation, "remove asset operation missing payload")
	}
	if !x.repos.Assets.Exists(in.ID) {
		return apierr.NotFoundf("asset", in.ID.String())
	}
	for _, account := range x.repos.Accounts.List() {
		if _, held := account.BalanceOf(in.ID); held {
			return apierr.Newf(apierr.Validation, "asset is still held by account %s", account.ID)
		}
	}
	return nil
}

func (x *removeAssetExecutor) Execute(ctx context.Context, req model.Request) (map[string]string, error) {
	return nil, x.repos.Assets.Remove(req.Operation.RemoveAsset.ID)
}
