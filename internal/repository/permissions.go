package repository

import (
	"github.com/sirupsen/logrus"

	"orbit-station/internal/model"
	"orbit-station/internal/stablekv"
)

// Permissions is the C1 repository for model.Permission, keyed directly by
// its resource key (spec.md §3: "Keyed by resource"). No secondary index is
// required: the permission engine always looks up by exact resource key.
type Permissions struct {
	primary *stablekv.Store[string, model.Permission]
}

func OpenPermissions(dir string, log *logrus.Entry) (*Permissions, error) {
	primary, err := stablekv.Open[string, model.Permission](dir, "permissions", log)
	if err != nil {
		return nil, err
	}
	return &Permissions{primary: primary}, nil
}

func (r *Permissions) Insert(p model.Permission) error {
	_, _, err := r.primary.Insert(p.Resource.Key(), p)
	return err
}

func (r *Permissions) Get(resource model.ResourceAction) (model.Permission, bool) {
	return r.primary.Get(resource.Key())
}

func (r *Permissions) List() []model.Permission { return r.primary.List() }

func (r *Permissions) Remove(resource model.ResourceAction) error {
	_, _, err := r.primary.Remove(resource.Key())
	return err
}

// Rebuild is a no-op: Permissions has no secondary indices to regenerate,
// but the method exists so every repository uniformly satisfies the
// rebuildable-on-upgrade contract from spec.md §4.1.
func (r *Permissions) Rebuild() error { return nil }
