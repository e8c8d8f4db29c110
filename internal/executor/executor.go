// Package executor implements C6: one engine.Executor per operation kind
// (spec.md §4.6), each declaring the resource/action pair checked at
// request-creation time, validating its operation's input against the
// repositories, and performing the mutation once the owning request reaches
// Processing.
package executor

import (
	"orbit-station/internal/blockchain"
	"orbit-station/internal/engine"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/repository"
)

// RegisterAll wires one executor per operation kind into eng, grounded on
// the repositories and blockchain registry the station opened at startup.
// host and upgrader are the external canister-management and
// upgrader-delegation collaborators (spec.md §1: out of scope beyond their
// adapter contracts); either may be nil in deployments that never exercise
// those operation kinds, in which case the corresponding executors fail
// with an Internal error rather than panicking.
func RegisterAll(eng *engine.Engine, repos *repository.Repos, chains *blockchain.Registry, host CanisterHost, upgrader UpgraderHost) {
	eng.RegisterExecutor(model.SpecifierTransfer, &transferExecutor{repos: repos, chains: chains})

	eng.RegisterExecutor(model.SpecifierAddAccount, &addAccountExecutor{repos: repos, chains: chains})
	eng.RegisterExecutor(model.SpecifierEditAccount, &editAccountExecutor{repos: repos, chains: chains})

	eng.RegisterExecutor(model.SpecifierAddUser, &addUserExecutor{repos: repos})
	eng.RegisterExecutor(model.SpecifierEditUser, &editUserExecutor{repos: repos})

	eng.RegisterExecutor(model.SpecifierAddUserGroup, &addUserGroupExecutor{repos: repos})
	eng.RegisterExecutor(model.SpecifierEditUserGroup, &editUserGroupExecutor{repos: repos})
	eng.RegisterExecutor(model.SpecifierRemoveUserGroup, &removeUserGroupExecutor{repos: repos})

	eng.RegisterExecutor(model.SpecifierAddPermission, &addPermissionExecutor{repos: repos})
	eng.RegisterExecutor(model.SpecifierEditPermission, &editPermissionExecutor{repos: repos})

	eng.RegisterExecutor(model.SpecifierAddRequestPolicy, &addRequestPolicyExecutor{repos: repos})
	eng.RegisterExecutor(model.SpecifierEditRequestPolicy, &editRequestPolicyExecutor{repos: repos})
	eng.RegisterExecutor(model.SpecifierRemoveRequestPolicy, &removeRequestPolicyExecutor{repos: repos})

	eng.RegisterExecutor(model.SpecifierAddNamedRule, &addNamedRuleExecutor{repos: repos})
	eng.RegisterExecutor(model.SpecifierEditNamedRule, &editNamedRuleExecutor{repos: repos})
	eng.RegisterExecutor(model.SpecifierRemoveNamedRule, &removeNamedRuleExecutor{repos: repos})

	eng.RegisterExecutor(model.SpecifierAddAddressBookEntry, &addAddressBookEntryExecutor{repos: repos})
	eng.RegisterExecutor(model.SpecifierEditAddressBookEntry, &editAddressBookEntryExecutor{repos: repos})
	eng.RegisterExecutor(model.SpecifierRemoveAddressBookEntry, &removeAddressBookEntryExecutor{repos: repos})

	eng.RegisterExecutor(model.SpecifierAddAsset, &addAssetExecutor{repos: repos})
	eng.RegisterExecutor(model.SpecifierEditAsset, &editAssetExecutor{repos: repos})
	eng.RegisterExecutor(model.SpecifierRemoveAsset, &removeAssetExecutor{repos: repos})

	eng.RegisterExecutor(model.SpecifierChangeExternalCanister, &changeExternalCanisterExecutor{host: host})
	eng.RegisterExecutor(model.SpecifierCreateExternalCanister, &createExternalCanisterExecutor{host: host})
	eng.RegisterExecutor(model.SpecifierConfigureExternalCanister, &configureExternalCanisterExecutor{host: host})
	eng.RegisterExecutor(model.SpecifierCallExternalCanister, &callExternalCanisterExecutor{host: host})

	eng.RegisterExecutor(model.SpecifierSystemUpgrade, &systemUpgradeExecutor{host: upgrader})
	eng.RegisterExecutor(model.SpecifierManageSystemInfo, &manageSystemInfoExecutor{repos: repos.SystemInfo})
}

// idOrNil narrows a non-nil ids.ID into a *ids.ID, or nil for ids.Nil —
// shared by every Authorize implementation below that scopes a permission
// check to a specific, possibly-absent, resource id.
func idOrNil(id ids.ID) *ids.ID {
	if id.IsNil() {
		return nil
	}
	return &id
}
