package repository

import (
	"github.com/sirupsen/logrus"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/stablekv"
)

// Accounts is the C1 repository for model.Account (spec.md §4.1: unique
// AccountName(normalized) -> AccountId index).
type Accounts struct {
	primary *stablekv.Store[ids.ID, model.Account]
	byName  *stablekv.UniqueIndex[string]
}

func OpenAccounts(dir string, log *logrus.Entry) (*Accounts, error) {
	primary, err := stablekv.Open[ids.ID, model.Account](dir, "accounts", log)
	if err != nil {
		return nil, err
	}
	byName, err := stablekv.OpenUniqueIndex[string](dir, "accounts_by_name", log)
	if err != nil {
		return nil, err
	}
	return &Accounts{primary: primary, byName: byName}, nil
}

func (r *Accounts) addIndexes(a model.Account) error {
	if err := r.byName.Insert(model.NormalizeName(a.Name), a.ID); err != nil {
		return apierr.Newf(apierr.Duplicate, "account name already in use: %v", err)
	}
	return nil
}

func (r *Accounts) removeIndexes(a model.Account) error {
	return r.byName.Remove(model.NormalizeName(a.Name))
}

func (r *Accounts) Insert(a model.Account) error {
	var old *model.Account
	if existing, ok := r.primary.Get(a.ID); ok {
		old = &existing
	}
	if err := SaveIndexes(a, old, r.addIndexes, r.removeIndexes); err != nil {
		return err
	}
	_, _, err := r.primary.Insert(a.ID, a)
	return err
}

func (r *Accounts) Get(id ids.ID) (model.Account, bool) { return r.primary.Get(id) }

func (r *Accounts) GetByName(name string) (model.Account, bool) {
	id, ok := r.byName.Lookup(model.NormalizeName(name))
	if !ok {
		return model.Account{}, false
	}
	return r.primary.Get(id)
}

func (r *Accounts) Exists(id ids.ID) bool { return r.primary.Exists(id) }

func (r *Accounts) List() []model.Account { return r.primary.List() }

func (r *Accounts) Remove(id ids.ID) error {
	a, ok := r.primary.Get(id)
	if !ok {
		return apierr.NotFoundf("account", id.String())
	}
	if err := r.removeIndexes(a); err != nil {
		return err
	}
	_, _, err := r.primary.Remove(id)
	return err
}

func (r *Accounts) Rebuild() error {
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
