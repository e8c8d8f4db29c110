package model

import "orbit-station/internal/ids"

// OperationKind reuses RequestSpecifierKind's tag set: every operation kind
// has a matching specifier kind used to select policies (spec.md §4.4).
type OperationKind = RequestSpecifierKind

// Operation is the tagged payload carried by a Request (spec.md §3). As
// with RuleTree, Go's lack of sum types means Kind selects which one
// payload field is meaningful.
type Operation struct {
	Kind OperationKind

	Transfer               *TransferOperation
	AddAccount             *AddAccountOperation
	EditAccount            *EditAccountOperation
	AddUser                *AddUserOperation
	EditUser               *EditUserOperation
	AddUserGroup           *AddUserGroupOperation
	EditUserGroup          *EditUserGroupOperation
	RemoveUserGroup        *RemoveEntityOperation
	AddPermission          *AddPermissionOperation
	EditPermission         *EditPermissionOperation
	AddRequestPolicy       *AddRequestPolicyOperation
	EditRequestPolicy      *EditRequestPolicyOperation
	RemoveRequestPolicy    *RemoveEntityOperation
	AddNamedRule           *AddNamedRuleOperation
	EditNamedRule          *EditNamedRuleOperation
	RemoveNamedRule        *RemoveEntityOperation
	AddAddressBookEntry    *AddAddressBookEntryOperation
	EditAddressBookEntry   *EditAddressBookEntryOperation
	RemoveAddressBookEntry *RemoveEntityOperation
	AddAsset               *AddAssetOperation
	EditAsset              *EditAssetOperation
	RemoveAsset            *RemoveEntityOperation
	ChangeExternalCanister *ChangeExternalCanisterOperation
	CreateExternalCanister *CreateExternalCanisterOperation
	ConfigureExternalCanister *ConfigureExternalCanisterOperation
	CallExternalCanister   *CallExternalCanisterOperation
	SystemUpgrade          *SystemUpgradeOperation
	ManageSystemInfo       *ManageSystemInfoOperation
}

// Resource returns the entity id this operation targets for permission and
// policy resolution, or ids.Nil for operations with no single target
// (e.g. AddAccount, which targets the Account resource family as a whole).
func (op Operation) Resource() ids.ID {
	switch op.Kind {
	case SpecifierTransfer:
		if op.Transfer != nil {
			return op.Transfer.FromAccount
		}
	case SpecifierEditAccount:
		if op.EditAccount != nil {
			return op.EditAccount.AccountID
		}
	case SpecifierEditUser:
		if op.EditUser != nil {
			return op.EditUser.UserID
		}
	case SpecifierEditUserGroup:
		if op.EditUserGroup != nil {
			return op.EditUserGroup.GroupID
		}
	case SpecifierRemoveUserGroup, SpecifierRemoveRequestPolicy, SpecifierRemoveNamedRule,
		SpecifierRemoveAddressBookEntry, SpecifierRemoveAsset:
		if re := op.removeTarget(); re != nil {
			return re.ID
		}
	case SpecifierEditAddressBookEntry:
		if op.EditAddressBookEntry != nil {
			return op.EditAddressBookEntry.EntryID
		}
	case SpecifierEditAsset:
		if op.EditAsset != nil {
			return op.EditAsset.AssetID
		}
	case SpecifierEditRequestPolicy:
		if op.EditRequestPolicy != nil {
			return op.EditRequestPolicy.PolicyID
		}
	case SpecifierEditNamedRule:
		if op.EditNamedRule != nil {
			return op.EditNamedRule.RuleID
		}
	case SpecifierChangeExternalCanister:
		if op.ChangeExternalCanister != nil {
			return op.ChangeExternalCanister.CanisterID
		}
	case SpecifierConfigureExternalCanister:
		if op.ConfigureExternalCanister != nil {
			return op.ConfigureExternalCanister.CanisterID
		}
	case SpecifierCallExternalCanister:
		if op.CallExternalCanister != nil {
			return op.CallExternalCanister.CanisterID
		}
	}
	return ids.Nil
}

func (op Operation) removeTarget() *RemoveEntityOperation {
	switch op.Kind {
	case SpecifierRemoveUserGroup:
		return op.RemoveUserGroup
	case SpecifierRemoveRequestPolicy:
		return op.RemoveRequestPolicy
	case SpecifierRemoveNamedRule:
		return op.RemoveNamedRule
	case SpecifierRemoveAddressBookEntry:
		return op.RemoveAddressBookEntry
	case SpecifierRemoveAsset:
		return op.RemoveAsset
	}
	return nil
}

type TransferOperation struct {
	FromAccount ids.ID
	FromAsset   ids.ID
	WithStandard TokenStandard
	ToAddress   string
	Amount      uint64
	Metadata    Metadata // may carry a "memo" key, spec.md §4.6
}

type AddAccountOperation struct {
	Name             string
	Seed             [16]byte
	Assets           []ids.ID
	Metadata         Metadata
	TransferPolicyID *ids.ID
	ConfigsPolicyID  *ids.ID
}

type EditAccountOperation struct {
	AccountID        ids.ID
	Name             *string
	AddAssets        []ids.ID
	RemoveAssets     []ids.ID
	TransferPolicyID *ids.ID
	ConfigsPolicyID  *ids.ID
}

type AddUserOperation struct {
	Identities []ids.Principal
	Groups     []ids.ID
	Name       string
	Status     UserStatus
}

type EditUserOperation struct {
	UserID     ids.ID
	Identities []ids.Principal
	Groups     []ids.ID
	Name       *string
	Status     *UserStatus
}

type AddUserGroupOperation struct {
	Name string
}

type EditUserGroupOperation struct {
	GroupID ids.ID
	Name    string
}

// RemoveEntityOperation is shared by every Remove* operation kind.
type RemoveEntityOperation struct {
	ID ids.ID
}

type AddPermissionOperation struct {
	Resource ResourceAction
	Allow    Allow
}

type EditPermissionOperation struct {
	Resource ResourceAction
	Allow    Allow
}

type AddRequestPolicyOperation struct {
	Specifier RequestSpecifier
	Rule      RuleTree
}

type EditRequestPolicyOperation struct {
	PolicyID  ids.ID
	Specifier *RequestSpecifier
	Rule      *RuleTree
}

type AddNamedRuleOperation struct {
	Name        string
	Description string
	Rule        RuleTree
}

type EditNamedRuleOperation struct {
	RuleID      ids.ID
	Name        *string
	Description *string
	Rule        *RuleTree
}

type AddAddressBookEntryOperation struct {
	AddressOwner  string
	Address       string
	AddressFormat string
	Blockchain    Blockchain
	Labels        []string
	Metadata      Metadata
}

type EditAddressBookEntryOperation struct {
	EntryID  ids.ID
	Labels   []string
	Metadata Metadata
}

type AddAssetOperation struct {
	Blockchain Blockchain
	Symbol     string
	Name       string
	Decimals   uint32
	Standards  []TokenStandard
	Metadata   Metadata
}

type EditAssetOperation struct {
	AssetID  ids.ID
	Name     *string
	Metadata Metadata
}

// ExternalCanisterInstallMode mirrors spec.md §6's upgrader op install modes.
type ExternalCanisterInstallMode string

const (
	InstallModeInstall   ExternalCanisterInstallMode = "install"
	InstallModeReinstall ExternalCanisterInstallMode = "reinstall"
	InstallModeUpgrade   ExternalCanisterInstallMode = "upgrade"
)

// ModuleExtraChunks describes a chunked module upload (spec.md §4.6).
type ModuleExtraChunks struct {
	BaseModuleHash string
	ChunkAssetIDs  []ids.ID // where to fetch each extra chunk from
}

type ChangeExternalCanisterOperation struct {
	CanisterID ids.ID
	Module     []byte
	ExtraChunks *ModuleExtraChunks
	Arg        []byte
	Mode       ExternalCanisterInstallMode
}

type CreateExternalCanisterOperation struct {
	Name string
}

type ConfigureExternalCanisterOperation struct {
	CanisterID ids.ID
	Metadata   Metadata
}

type CallExternalCanisterOperation struct {
	CanisterID ids.ID
	Method     string
	Arg        []byte
}

type SystemUpgradeOperation struct {
	Target      string // "station" or "upgrader"
	Module      []byte
	ExtraChunks *ModuleExtraChunks
	Arg         []byte
	Mode        ExternalCanisterInstallMode
}

type ManageSystemInfoOperation struct {
	DisplayName       *string
	UpgraderPrincipal *string
}
