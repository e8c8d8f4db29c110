package repository

import (
	"github.com/sirupsen/logrus"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/stablekv"
)

type blockchainSymbolKey struct {
	Blockchain model.Blockchain
	Symbol     string
}

// Assets is the C1 repository for model.Asset (spec.md §3: "Symbol within
// a blockchain is unique").
type Assets struct {
	primary  *stablekv.Store[ids.ID, model.Asset]
	bySymbol *stablekv.UniqueIndex[blockchainSymbolKey]
}

func OpenAssets(dir string, log *logrus.Entry) (*Assets, error) {
	primary, err := stablekv.Open[ids.ID, model.Asset](dir, "assets", log)
	if err != nil {
		return nil, err
	}
	bySymbol, err := stablekv.OpenUniqueIndex[blockchainSymbolKey](dir, "assets_by_symbol", log)
	if err != nil {
		return nil, err
	}
	return &Assets{primary: primary, bySymbol: bySymbol}, nil
}

func (r *Assets) key(a model.Asset) blockchainSymbolKey {
	return blockchainSymbolKey{Blockchain: a.Blockchain, Symbol: a.Symbol}
}

func (r *Assets) addIndexes(a model.Asset) error {
	if err := r.bySymbol.Insert(r.key(a), a.ID); err != nil {
		return apierr.Newf(apierr.Duplicate, "asset symbol already in use on this blockchain: %v", err)
	}
	return nil
}

func (r *Assets) removeIndexes(a model.Asset) error { return r.bySymbol.Remove(r.key(a)) }

func (r *Assets) Insert(a model.Asset) error {
	var old *model.Asset
	if existing, ok := r.primary.Get(a.ID); ok {
		old = &existing
	}
	if err := SaveIndexes(a, old, r.addIndexes, r.removeIndexes); err != nil {
		return err
	}
	_, _, err := r.primary.Insert(a.ID, a)
	return err
}

func (r *Assets) Get(id ids.ID) (model.Asset, bool) { return r.primary.Get(id) }
func (r *Assets) Exists(id ids.ID) bool             { return r.primary.Exists(id) }
func (r *Assets) List() []model.Asset               { return r.primary.List() }

func (r *Assets) Remove(id ids.ID) error {
	a, ok := r.primary.Get(id)
	if !ok {
		return apierr.NotFoundf("asset", id.String())
	}
	if err := r.removeIndexes(a); err != nil {
		return err
	}
	_, _, err := r.primary.Remove(id)
	return err
}

func (r *Assets) Rebuild() error {
	for _, a := range r.primary.List() {
		if err := r.removeIndexes(a); err != nil {
			return err
		}
		if err := r.addIndexes(a); err != nil {
			return err
		}
	}
	return nil
}
