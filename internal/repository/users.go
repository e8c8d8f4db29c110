package repository

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/stablekv"
)

// statusGroupKey is the composite index key for UserStatusGroup(status,
// group_id) -> UserId (spec.md §4.1).
type statusGroupKey struct {
	Status  model.UserStatus
	GroupID ids.ID
}

// Users is the C1 repository for model.User, maintaining the three
// required indices from spec.md §4.1. No separate bounded write-through
// cache is kept (spec.md §4.1: "Users: up to 50 000 entries ... reads may
// skip the stable map"): the primary Store's in-memory map holds every
// user, unbounded, and already serves reads without touching disk.
type Users struct {
	primary      *stablekv.Store[ids.ID, model.User]
	byIdentity   *stablekv.UniqueIndex[ids.Principal]
	byName       *stablekv.UniqueIndex[string]
	byStatusGroup *stablekv.NonUniqueIndex[statusGroupKey]
	log          *logrus.Entry
}

func OpenUsers(dir string, log *logrus.Entry) (*Users, error) {
	primary, err := stablekv.Open[ids.ID, model.User](dir, "users", log)
	if err != nil {
		return nil, err
	}
	byIdentity, err := stablekv.OpenUniqueIndex[ids.Principal](dir, "users_by_identity", log)
	if err != nil {
		return nil, err
	}
	byName, err := stablekv.OpenUniqueIndex[string](dir, "users_by_name", log)
	if err != nil {
		return nil, err
	}
	byStatusGroup, err := stablekv.OpenNonUniqueIndex[statusGroupKey](dir, "users_by_status_group", log)
	if err != nil {
		return nil, err
	}
	return &Users{primary: primary, byIdentity: byIdentity, byName: byName, byStatusGroup: byStatusGroup, log: log.WithField("repo", "users")}, nil
}

func (r *Users) addIndexes(u model.User) error {
	for _, p := range u.Identities {
		if err := r.byIdentity.Insert(p, u.ID); err != nil {
			return apierr.Newf(apierr.Duplicate, "identity already claimed by another user: %v", err)
		}
	}
	if u.Name != "" {
		if err := r.byName.Insert(model.NormalizeName(u.Name), u.ID); err != nil {
			return apierr.Newf(apierr.Duplicate, "user name already in use: %v", err)
		}
	}
	for g := range u.Groups {
		if err := r.byStatusGroup.Insert(statusGroupKey{Status: u.Status, GroupID: g}, u.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Users) removeIndexes(u model.User) error {
	for _, p := range u.Identities {
		if err := r.byIdentity.Remove(p); err != nil {
			return err
		}
	}
	if u.Name != "" {
		if err := r.byName.Remove(model.NormalizeName(u.Name)); err != nil {
			return err
		}
	}
	for g := range u.Groups {
		if err := r.byStatusGroup.Remove(statusGroupKey{Status: u.Status, GroupID: g}, u.ID); err != nil {
			return err
		}
	}
	return nil
}

// Insert updates every index and then the primary map. It does not check
// spec.md §8 invariant 7 (see CountActiveAdmins), and the two steps are not
// atomic: a failed primary write leaves the new index entries in place.
func (r *Users) Insert(u model.User) error {
	var old *model.User
	if existing, ok := r.primary.Get(u.ID); ok {
		old = &existing
	}
	if err := SaveIndexes(u, old, r.addIndexes, r.removeIndexes); err != nil {
		return err
	}
	_, _, err := r.primary.Insert(u.ID, u)
	return err
}

func (r *Users) Get(id ids.ID) (model.User, bool) { return r.primary.Get(id) }

func (r *Users) GetByIdentity(p ids.Principal) (model.User, bool) {
	id, ok := r.byIdentity.Lookup(p)
	if !ok {
		return model.User{}, false
	}
	return r.primary.Get(id)
}

func (r *Users) GetByName(name string) (model.User, bool) {
	id, ok := r.byName.Lookup(model.NormalizeName(name))
	if !ok {
		return model.User{}, false
	}
	return r.primary.Get(id)
}

// ListByStatusGroup implements the non-unique UserStatusGroup index lookup
// used by admin-count enforcement (spec.md §8 invariant 7) and group
// membership queries.
func (r *Users) ListByStatusGroup(status model.UserStatus, group ids.ID) []model.User {
	out := make([]model.User, 0)
	for _, id := range r.byStatusGroup.Lookup(statusGroupKey{Status: status, GroupID: group}) {
		if u, ok := r.primary.Get(id); ok {
			out = append(out, u)
		}
	}
	return out
}

// CountActiveAdmins is used to enforce spec.md §8 invariant 7 ("at least
// one Active user is a member of the admin group at all times").
func (r *Users) CountActiveAdmins() int {
	return len(r.ListByStatusGroup(model.UserActive, model.AdminGroupID))
}

func (r *Users) Remove(id ids.ID) error {
	u, ok := r.primary.Get(id)
	if !ok {
		return apierr.NotFoundf("user", id.String())
	}
	if err := r.removeIndexes(u); err != nil {
		return err
	}
	_, _, err := r.primary.Remove(id)
	return err
}

func (r *Users) List() []model.User { return r.primary.List() }

func (r *Users) Exists(id ids.ID) bool { return r.primary.Exists(id) }

// Rebuild walks the primary map and regenerates every secondary index
// (spec.md §4.1 "every repository implements a rebuild()"). Idempotent:
// re-running it after a partial rebuild converges to the same index set.
func (r *Users) Rebuild() error {
	for _, u := range r.primary.List() {
		if err := r.removeIndexes(u); err != nil {
			return fmt.Errorf("users rebuild: %w", err)
		}
		if err := r.addIndexes(u); err != nil {
			return fmt.Errorf("users rebuild: %w", err)
		}
	}
	return nil
}
