package repository

import (
	"github.com/sirupsen/logrus"

	"orbit-station/internal/model"
)

// Repos bundles every C1 repository the station needs, wired once at
// startup and threaded through the permission/policy/engine/executor
// layers.
type Repos struct {
	Users           *Users
	UserGroups      *UserGroups
	Accounts        *Accounts
	Assets          *Assets
	AddressBook     *AddressBook
	NamedRules      *NamedRules
	Permissions     *Permissions
	RequestPolicies *RequestPolicies
	Requests        *Requests
	Transfers       *Transfers
	SystemInfo      *SystemInfo
}

// Open wires every repository against its own stable map files under dir.
func Open(dir string, log *logrus.Entry) (*Repos, error) {
	users, err := OpenUsers(dir, log)
	if err != nil {
		return nil, err
	}
	groups, err := OpenUserGroups(dir, log)
	if err != nil {
		return nil, err
	}
	accounts, err := OpenAccounts(dir, log)
	if err != nil {
		return nil, err
	}
	assets, err := OpenAssets(dir, log)
	if err != nil {
		return nil, err
	}
	addressBook, err := OpenAddressBook(dir, log)
	if err != nil {
		return nil, err
	}
	namedRules, err := OpenNamedRules(dir, log)
	if err != nil {
		return nil, err
	}
	permissions, err := OpenPermissions(dir, log)
	if err != nil {
		return nil, err
	}
	policies, err := OpenRequestPolicies(dir, log)
	if err != nil {
		return nil, err
	}
	requests, err := OpenRequests(dir, log)
	if err != nil {
		return nil, err
	}
	transfers, err := OpenTransfers(dir, log)
	if err != nil {
		return nil, err
	}
	systemInfo, err := OpenSystemInfo(dir, log)
	if err != nil {
		return nil, err
	}
	return &Repos{
		Users: users, UserGroups: groups, Accounts: accounts, Assets: assets,
		AddressBook: addressBook, NamedRules: namedRules, Permissions: permissions,
		RequestPolicies: policies, Requests: requests, Transfers: transfers,
		SystemInfo: systemInfo,
	}, nil
}

// RebuildIfSchemaChanged runs Rebuild only when the persisted schema
// version tag differs from the code's current model.SchemaVersion (spec.md
// §6: "if it differs, the matching rebuild routines run before accepting
// traffic"), then stamps the current version. Idempotent: a second call
// after a successful run is a no-op.
func (r *Repos) RebuildIfSchemaChanged() error {
	info := r.SystemInfo.Get()
	if !info.NeedsRebuild() {
		return nil
	}
	if err := r.Rebuild(); err != nil {
		return err
	}
	info.SchemaVersion = model.SchemaVersion
	return r.SystemInfo.Set(info)
}

// Rebuild regenerates every repository's secondary indices (spec.md §4.1,
// §5/SPEC_FULL.md: run at install/upgrade if schema version tags changed).
func (r *Repos) Rebuild() error {
	for _, rebuildable := range []interface{ Rebuild() error }{
		r.Users, r.UserGroups, r.Accounts, r.Assets, r.AddressBook,
		r.NamedRules, r.Permissions, r.RequestPolicies, r.Requests, r.Transfers,
		r.SystemInfo,
	} {
		if err := rebuildable.Rebuild(); err != nil {
			return err
		}
	}
	return nil
}
