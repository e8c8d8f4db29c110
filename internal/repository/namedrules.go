package repository

import (
	"github.com/sirupsen/logrus"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/stablekv"
)

// NamedRules is the C1 repository for model.NamedRule (spec.md §3: name
// globally unique). Reference-integrity ("deleting a referenced NamedRule
// is rejected if any live policy references it") is enforced by the
// executor layer, which alone has visibility into both the policy and
// named-rule repositories without creating an import cycle.
type NamedRules struct {
	primary *stablekv.Store[ids.ID, model.NamedRule]
	byName  *stablekv.UniqueIndex[string]
}

func OpenNamedRules(dir string, log *logrus.Entry) (*NamedRules, error) {
	primary, err := stablekv.Open[ids.ID, model.NamedRule](dir, "named_rules", log)
	if err != nil {
		return nil, err
	}
	byName, err := stablekv.OpenUniqueIndex[string](dir, "named_rules_by_name", log)
	if err != nil {
		return nil, err
	}
	return &NamedRules{primary: primary, byName: byName}, nil
}

func (r *NamedRules) addIndexes(n model.NamedRule) error {
	if err := r.byName.Insert(model.NormalizeName(n.Name), n.ID); err != nil {
		return apierr.Newf(apierr.Duplicate, "named rule name already in use: %v", err)
	}
	return nil
}

func (r *NamedRules) removeIndexes(n model.NamedRule) error {
	return r.byName.Remove(model.NormalizeName(n.Name))
}

func (r *NamedRules) Insert(n model.NamedRule) error {
	var old *model.NamedRule
	if existing, ok := r.primary.Get(n.ID); ok {
		old = &existing
	}
	if err := SaveIndexes(n, old, r.addIndexes, r.removeIndexes); err != nil {
		return err
	}
	_, _, err := r.primary.Insert(n.ID, n)
	return err
}

func (r *NamedRules) Get(id ids.ID) (model.NamedRule, bool) { return r.primary.Get(id) }
func (r *NamedRules) Exists(id ids.ID) bool                 { return r.primary.Exists(id) }
func (r *NamedRules) List() []model.NamedRule               { return r.primary.List() }

func (r *NamedRules) Remove(id ids.ID) error {
	n, ok := r.primary.Get(id)
	if !ok {
		return apierr.NotFoundf("named rule", id.String())
	}
	if err := r.removeIndexes(n); err != nil {
		return err
	}
	_, _, err := r.primary.Remove(id)
	return err
}

func (r *NamedRules) Rebuild() error {
	for _, n := range r.primary.List() {
		if err := r.removeIndexes(n); err != nil {
			return err
		}
		if err := r.addIndexes(n); err != nil {
			return err
		}
	}
	return nil
}
