// Package bootstrap seeds a fresh station's initial state at install time
// (spec.md §3 "Lifecycle": "exceptions: the initial admin user and system
// defaults at install time"). Grounded on
// original_source/core/station/impl/src/core/init.rs's default-admin /
// default-permissions / default-policies seeding, rendered in the
// teacher's pkg/config YAML-decode style (gopkg.in/yaml.v3).
package bootstrap

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/repository"
)

// Seed is the decoded install-time seed file. Everything else the station
// needs at first boot (well-known groups, default permissions, a
// fail-open-for-admin policy set) is derived rather than configured,
// mirroring init.rs's hard-coded defaults.
type Seed struct {
	AdminIdentity string `yaml:"admin_identity"`
	AdminName     string `yaml:"admin_name"`
}

// LoadSeed decodes a YAML seed file from path.
func LoadSeed(path string) (Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("bootstrap: read seed %s: %w", path, err)
	}
	var s Seed
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Seed{}, fmt.Errorf("bootstrap: decode seed %s: %w", path, err)
	}
	return s, nil
}

// Install seeds a fresh station's repositories: the two well-known groups,
// the initial admin user, and default permissions/policies. It is a safe
// no-op on an already-seeded station (spec.md §8 invariant 7 is the guard:
// once at least one Active admin exists, Install does nothing further).
func Install(repos *repository.Repos, seed Seed, log *logrus.Entry) error {
	log = log.WithField("component", "bootstrap")

	if err := ensureGroup(repos, model.AdminGroupID, "Admin"); err != nil {
		return err
	}
	if err := ensureGroup(repos, model.OperatorGroupID, "Operator"); err != nil {
		return err
	}

	if repos.Users.CountActiveAdmins() > 0 {
		log.Debug("active admin already present, skipping seed")
		return nil
	}

	admin := model.User{
		ID:         ids.New(),
		Identities: []ids.Principal{ids.Principal(seed.AdminIdentity)},
		Groups:     ids.NewSet(model.AdminGroupID),
		Status:     model.UserActive,
		Name:       seed.AdminName,
	}
	if err := admin.Validate(); err != nil {
		return err
	}
	if err := repos.Users.Insert(admin); err != nil {
		return err
	}
	log.WithField("user_id", admin.ID.String()).Info("seeded initial admin user")

	if err := installDefaultPermissions(repos); err != nil {
		return err
	}
	return installDefaultPolicies(repos)
}

func ensureGroup(repos *repository.Repos, id ids.ID, name string) error {
	if repos.UserGroups.Exists(id) {
		return nil
	}
	return repos.UserGroups.Insert(model.UserGroup{ID: id, Name: name})
}

// installDefaultPermissions grants the Admin group the management actions
// listed in adminManaged (deletes, transfers and the other actions not
// listed there are not granted) and opens read/list queries to any
// Authenticated caller, matching
// init.rs's default permission set.
func installDefaultPermissions(repos *repository.Repos) error {
	adminManaged := []model.ResourceAction{
		{Resource: "Account", Action: "Create", ResourceID: model.AnyResource()},
		{Resource: "Account", Action: "Update", ResourceID: model.AnyResource()},
		{Resource: "User", Action: "Create", ResourceID: model.AnyResource()},
		{Resource: "User", Action: "Update", ResourceID: model.AnyResource()},
		{Resource: "UserGroup", Action: "Create", ResourceID: model.AnyResource()},
		{Resource: "Permission", Action: "Update", ResourceID: model.AnyResource()},
		{Resource: "RequestPolicy", Action: "Create", ResourceID: model.AnyResource()},
		{Resource: "NamedRule", Action: "Create", ResourceID: model.AnyResource()},
		{Resource: "Asset", Action: "Create", ResourceID: model.AnyResource()},
		{Resource: "AddressBookEntry", Action: "Create", ResourceID: model.AnyResource()},
		{Resource: "ExternalCanister", Action: "Change", ResourceID: model.AnyResource()},
		{Resource: "System", Action: "Upgrade", ResourceID: model.AnyResource()},
	}
	for _, ra := range adminManaged {
		if err := repos.Permissions.Insert(model.Permission{
			Resource: ra,
			Allow:    model.Allow{Scope: model.ScopeRestricted, UserGroups: ids.NewSet(model.AdminGroupID)},
		}); err != nil {
			return err
		}
	}

	authenticatedRead := []model.ResourceAction{
		{Resource: "Account", Action: "Read", ResourceID: model.AnyResource()},
		{Resource: "Account", Action: "List", ResourceID: model.AnyResource()},
		{Resource: "Request", Action: "Read", ResourceID: model.AnyResource()},
		{Resource: "Request", Action: "List", ResourceID: model.AnyResource()},
		{Resource: "AddressBook", Action: "List", ResourceID: model.AnyResource()},
	}
	for _, ra := range authenticatedRead {
		if err := repos.Permissions.Insert(model.Permission{
			Resource: ra,
			Allow:    model.Allow{Scope: model.ScopeAuthenticated},
		}); err != nil {
			return err
		}
	}

	// Every caller may propose and approve/cancel requests; the request
	// engine's own eligibility check (the selected policy's RuleTree) is
	// the real gate on whether a vote counts, so Request(Create/Approve/
	// Cancel) stays Authenticated rather than Admin-restricted.
	requestLifecycle := []model.ResourceAction{
		{Resource: "Request", Action: "Create", ResourceID: model.AnyResource()},
		{Resource: "Request", Action: "Approve", ResourceID: model.AnyResource()},
		{Resource: "Request", Action: "Cancel", ResourceID: model.AnyResource()},
	}
	for _, ra := range requestLifecycle {
		if err := repos.Permissions.Insert(model.Permission{
			Resource: ra,
			Allow:    model.Allow{Scope: model.ScopeAuthenticated},
		}); err != nil {
			return err
		}
	}
	return nil
}

// installDefaultPolicies seeds the "system-installed default" fallback
// named in spec.md §4.4 ("the default is Rejected ... unless the operation
// kind is system-installed default with AutoApproved"): every
// administrative operation kind gets a wildcard policy requiring one Admin
// approval, so a freshly installed station is immediately operable by its
// seeded admin without a chicken-and-egg policy-editing request.
func installDefaultPolicies(repos *repository.Repos) error {
	kinds := []model.RequestSpecifierKind{
		model.SpecifierAddAccount, model.SpecifierEditAccount,
		model.SpecifierAddUser, model.SpecifierEditUser,
		model.SpecifierAddUserGroup, model.SpecifierEditUserGroup, model.SpecifierRemoveUserGroup,
		model.SpecifierAddPermission, model.SpecifierEditPermission,
		model.SpecifierAddRequestPolicy, model.SpecifierEditRequestPolicy, model.SpecifierRemoveRequestPolicy,
		model.SpecifierAddNamedRule, model.SpecifierEditNamedRule, model.SpecifierRemoveNamedRule,
		model.SpecifierAddAddressBookEntry, model.SpecifierEditAddressBookEntry, model.SpecifierRemoveAddressBookEntry,
		model.SpecifierAddAsset, model.SpecifierEditAsset, model.SpecifierRemoveAsset,
		model.SpecifierManageSystemInfo,
	}
	rule := model.Quorum(model.GroupUsers(model.AdminGroupID), 1)
	for _, k := range kinds {
		if err := repos.RequestPolicies.Insert(model.RequestPolicy{
			ID:        ids.New(),
			Specifier: model.RequestSpecifier{Kind: k, Resources: model.AnyResourceIDs()},
			Rule:      rule,
		}); err != nil {
			return err
		}
	}
	return nil
}
