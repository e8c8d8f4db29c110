package repository

import (
	"github.com/sirupsen/logrus"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/stablekv"
)

// UserGroups is the C1 repository for model.UserGroup (spec.md §3: name
// globally unique, two well-known groups Admin/Operator always present).
type UserGroups struct {
	primary *stablekv.Store[ids.ID, model.UserGroup]
	byName  *stablekv.UniqueIndex[string]
}

func OpenUserGroups(dir string, log *logrus.Entry) (*UserGroups, error) {
	primary, err := stablekv.Open[ids.ID, model.UserGroup](dir, "user_groups", log)
	if err != nil {
		return nil, err
	}
	byName, err := stablekv.OpenUniqueIndex[string](dir, "user_groups_by_name", log)
	if err != nil {
		return nil, err
	}
	return &UserGroups{primary: primary, byName: byName}, nil
}

func (r *UserGroups) addIndexes(g model.UserGroup) error {
	if err := r.byName.Insert(model.NormalizeName(g.Name), g.ID); err != nil {
		return apierr.Newf(apierr.Duplicate, "user group name already in use: %v", err)
	}
	return nil
}

func (r *UserGroups) removeIndexes(g model.UserGroup) error {
	return r.byName.Remove(model.NormalizeName(g.Name))
}

// Insert routes through SaveIndexes so a rename (re-inserting an existing
// id under a new name) drops the stale byName entry first, matching every
// sibling repository's index-maintenance rule (spec.md §4.1).
func (r *UserGroups) Insert(g model.UserGroup) error {
	var old *model.UserGroup
	if existing, ok := r.primary.Get(g.ID); ok {
		old = &existing
	}
	if err := SaveIndexes(g, old, r.addIndexes, r.removeIndexes); err != nil {
		return err
	}
	_, _, err := r.primary.Insert(g.ID, g)
	return err
}

func (r *UserGroups) Get(id ids.ID) (model.UserGroup, bool) { return r.primary.Get(id) }
func (r *UserGroups) Exists(id ids.ID) bool                 { return r.primary.Exists(id) }
func (r *UserGroups) List() []model.UserGroup               { return r.primary.List() }

func (r *UserGroups) GetByName(name string) (model.UserGroup, bool) {
	id, ok := r.byName.Lookup(model.NormalizeName(name))
	if !ok {
		return model.UserGroup{}, false
	}
	return r.primary.Get(id)
}

func (r *UserGroups) Remove(id ids.ID) error {
	g, ok := r.primary.Get(id)
	if !ok {
		return apierr.NotFoundf("user group", id.String())
	}
	if id == model.AdminGroupID || id == model.OperatorGroupID {
		return apierr.New(apierr.Validation, "the well-known Admin/Operator groups cannot be removed")
	}
	if err := r.removeIndexes(g); err != nil {
		return err
	}
	_, _, err := r.primary.Remove(id)
	return err
}

// Rebuild regenerates every secondary index (spec.md §4.1), symmetric with
// every sibling repository's Rebuild.
func (r *UserGroups) Rebuild() error {
	for _, g := range r.primary.List() {
		if err := r.removeIndexes(g); err != nil {
			return err
		}
		if err := r.addIndexes(g); err != nil {
			return err
		}
	}
	return nil
}
