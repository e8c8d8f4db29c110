package repository

import (
	"testing"

	"github.com/sirupsen/logrus"

	"orbit-station/internal/ids"
	"orbit-station/internal/model"
)

func newTestUserGroups(t *testing.T) *UserGroups {
	t.Helper()
	dir := t.TempDir()
	log := logrus.NewEntry(logrus.New())
	r, err := OpenUserGroups(dir, log)
	if err != nil {
		t.Fatalf("open user groups: %v", err)
	}
	return r
}

func TestUserGroupsInsertThenGetByName(t *testing.T) {
	r := newTestUserGroups(t)
	g := model.UserGroup{ID: ids.New(), Name: "Treasury Ops"}
	if err := r.Insert(g); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, ok := r.GetByName("treasury ops")
	if !ok || got.ID != g.ID {
		t.Fatalf("expected GetByName to resolve the inserted group, got %+v (ok=%v)", got, ok)
	}
}

// TestUserGroupsRenameDropsStaleIndexEntry exercises the symmetric-difference
// index-maintenance rule from spec.md §4.1: renaming a group (re-inserting
// the same id under a new name) must drop its old byName entry, not leave it
// dangling.
func TestUserGroupsRenameDropsStaleIndexEntry(t *testing.T) {
	r := newTestUserGroups(t)
	g := model.UserGroup{ID: ids.New(), Name: "Old Name"}
	if err := r.Insert(g); err != nil {
		t.Fatalf("insert: %v", err)
	}

	g.Name = "New Name"
	if err := r.Insert(g); err != nil {
		t.Fatalf("rename insert: %v", err)
	}

	if _, ok := r.GetByName("Old Name"); ok {
		t.Fatalf("expected the old name to no longer resolve after rename")
	}
	got, ok := r.GetByName("New Name")
	if !ok || got.ID != g.ID {
		t.Fatalf("expected the new name to resolve to the renamed group, got %+v (ok=%v)", got, ok)
	}

	other := model.UserGroup{ID: ids.New(), Name: "Old Name"}
	if err := r.Insert(other); err != nil {
		t.Fatalf("expected a fresh group to be able to claim the freed old name, got error: %v", err)
	}
}

func TestUserGroupsInsertRejectsDuplicateName(t *testing.T) {
	r := newTestUserGroups(t)
	a := model.UserGroup{ID: ids.New(), Name: "Finance"}
	if err := r.Insert(a); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	b := model.UserGroup{ID: ids.New(), Name: "Finance"}
	if err := r.Insert(b); err == nil {
		t.Fatalf("expected a duplicate name insert to fail")
	}
}

func TestUserGroupsRemoveClearsIndex(t *testing.T) {
	r := newTestUserGroups(t)
	g := model.UserGroup{ID: ids.New(), Name: "Temporary"}
	if err := r.Insert(g); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := r.Remove(g.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := r.GetByName("Temporary"); ok {
		t.Fatalf("expected the name index entry to be gone after removal")
	}
	other := model.UserGroup{ID: ids.New(), Name: "Temporary"}
	if err := r.Insert(other); err != nil {
		t.Fatalf("expected the freed name to be claimable again, got: %v", err)
	}
}

func TestUserGroupsRebuildRestoresIndex(t *testing.T) {
	r := newTestUserGroups(t)
	g := model.UserGroup{ID: ids.New(), Name: "Rebuilt"}
	if err := r.Insert(g); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := r.Rebuild(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	got, ok := r.GetByName("Rebuilt")
	if !ok || got.ID != g.ID {
		t.Fatalf("expected rebuild to preserve the name index, got %+v (ok=%v)", got, ok)
	}
}
