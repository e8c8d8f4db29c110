package model

import (
	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
)

// RuleKind tags the variant of a RuleTree node (spec.md §4.4).
type RuleKind string

const (
	RuleAutoApproved          RuleKind = "AutoApproved"
	RuleQuorum                RuleKind = "Quorum"
	RuleQuorumPercentage      RuleKind = "QuorumPercentage"
	RuleAllowListed           RuleKind = "AllowListed"
	RuleAllowListedByMetadata RuleKind = "AllowListedByMetadata"
	RuleAnd                   RuleKind = "And"
	RuleOr                    RuleKind = "Or"
	RuleNot                   RuleKind = "Not"
	RuleNamedRule             RuleKind = "NamedRule"
)

// UserSpecifierKind tags the variant of a UserSpecifier (spec.md §4.4).
type UserSpecifierKind string

const (
	UserSpecAny   UserSpecifierKind = "Any"
	UserSpecGroup UserSpecifierKind = "Group"
	UserSpecID    UserSpecifierKind = "Id"
)

// UserSpecifier resolves to a concrete set of eligible approvers (spec.md
// §4.4).
type UserSpecifier struct {
	Kind   UserSpecifierKind
	Groups []ids.ID
	Users  []ids.ID
}

func AnyUser() UserSpecifier                 { return UserSpecifier{Kind: UserSpecAny} }
func GroupUsers(groups ...ids.ID) UserSpecifier { return UserSpecifier{Kind: UserSpecGroup, Groups: groups} }
func IDUsers(users ...ids.ID) UserSpecifier  { return UserSpecifier{Kind: UserSpecID, Users: users} }

// MetadataItem is a single key/value pair, used by AllowListedByMetadata.
type MetadataItem struct {
	Key   string
	Value string
}

// RuleTree is the recursive policy-rule expression from spec.md §4.4.
// Exactly one of its payload fields is meaningful, selected by Kind; this
// mirrors a tagged union the way the teacher's domain types (e.g.
// core/common_structs.go's request/operation variants) encode closed sets
// of alternatives as a discriminant field plus payload fields, since Go has
// no native sum type.
type RuleTree struct {
	Kind RuleKind

	// Quorum / QuorumPercentage
	Specifier UserSpecifier
	N         int     // Quorum
	Percent   int     // QuorumPercentage, 1..100

	// AllowListedByMetadata
	Metadata MetadataItem

	// And / Or / Not
	Children []RuleTree

	// NamedRule
	NamedRuleID ids.ID
}

func AutoApproved() RuleTree { return RuleTree{Kind: RuleAutoApproved} }

func Quorum(spec UserSpecifier, n int) RuleTree {
	return RuleTree{Kind: RuleQuorum, Specifier: spec, N: n}
}

func QuorumPercentage(spec UserSpecifier, percent int) RuleTree {
	return RuleTree{Kind: RuleQuorumPercentage, Specifier: spec, Percent: percent}
}

func AllowListed() RuleTree { return RuleTree{Kind: RuleAllowListed} }

func AllowListedByMetadata(item MetadataItem) RuleTree {
	return RuleTree{Kind: RuleAllowListedByMetadata, Metadata: item}
}

func And(children ...RuleTree) RuleTree { return RuleTree{Kind: RuleAnd, Children: children} }
func Or(children ...RuleTree) RuleTree  { return RuleTree{Kind: RuleOr, Children: children} }
func Not(child RuleTree) RuleTree       { return RuleTree{Kind: RuleNot, Children: []RuleTree{child}} }
func NamedRuleRef(id ids.ID) RuleTree   { return RuleTree{Kind: RuleNamedRule, NamedRuleID: id} }

// Depth returns the tree's maximum nesting depth, used to enforce the
// policy/rule depth bound from spec.md §4.2 (max 10). NamedRule references
// are not followed here (that requires the NamedRule repository); depth
// validation of a NamedRule's own tree happens when that rule is saved.
func (r RuleTree) Depth() int {
	if len(r.Children) == 0 {
		return 1
	}
	max := 0
	for _, c := range r.Children {
		if d := c.Depth(); d > max {
			max = d
		}
	}
	return 1 + max
}

// validateShape checks structural invariants independent of any repository
// lookups: depth bound and Quorum/QuorumPercentage parameter ranges.
func (r RuleTree) validateShape() error {
	if r.Depth() > MaxRuleDepth {
		return apierr.Newf(apierr.Validation, "rule tree exceeds max depth %d", MaxRuleDepth)
	}
	return r.walk(func(node RuleTree) error {
		switch node.Kind {
		case RuleQuorum:
			if node.N < 0 {
				return apierr.New(apierr.Validation, "quorum n must be >= 0")
			}
		case RuleQuorumPercentage:
			if node.Percent < 1 || node.Percent > 100 {
				return apierr.New(apierr.Validation, "quorum percentage must be in [1,100]")
			}
		}
		return nil
	})
}

// WalkExported applies fn to every node in the tree, short-circuiting on
// the first error. Exported for callers outside this package (e.g. the
// repository package's reference-integrity checks) that need to inspect a
// rule tree's nodes without duplicating the recursion.
func (r RuleTree) WalkExported(fn func(RuleTree) error) error {
	return r.walk(fn)
}

// walk applies fn to every node in the tree, short-circuiting on the first
// error.
func (r RuleTree) walk(fn func(RuleTree) error) error {
	if err := fn(r); err != nil {
		return err
	}
	for _, c := range r.Children {
		if err := c.walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// NamedRule is a reusable, globally named rule referenceable by id from
// other rules (spec.md §3/§4.4).
type NamedRule struct {
	ID          ids.ID
	Name        string
	Description string
	Rule        RuleTree
}

func (n NamedRule) Validate() error {
	if err := validateLen("named rule name", n.Name, UserNameMin, UserNameMax); err != nil {
		return err
	}
	return n.Rule.validateShape()
}

// RequestSpecifierKind tags which operation family a RequestPolicy or
// Permission resource-scoping applies to (spec.md §3/§4.4).
type RequestSpecifierKind string

const (
	SpecifierTransfer           RequestSpecifierKind = "Transfer"
	SpecifierAddAccount         RequestSpecifierKind = "AddAccount"
	SpecifierEditAccount        RequestSpecifierKind = "EditAccount"
	SpecifierAddUser            RequestSpecifierKind = "AddUser"
	SpecifierEditUser           RequestSpecifierKind = "EditUser"
	SpecifierAddAddressBookEntry RequestSpecifierKind = "AddAddressBookEntry"
	SpecifierEditAddressBookEntry RequestSpecifierKind = "EditAddressBookEntry"
	SpecifierRemoveAddressBookEntry RequestSpecifierKind = "RemoveAddressBookEntry"
	SpecifierAddUserGroup        RequestSpecifierKind = "AddUserGroup"
	SpecifierEditUserGroup       RequestSpecifierKind = "EditUserGroup"
	SpecifierRemoveUserGroup     RequestSpecifierKind = "RemoveUserGroup"
	SpecifierAddPermission       RequestSpecifierKind = "AddPermission"
	SpecifierEditPermission      RequestSpecifierKind = "EditPermission"
	SpecifierAddRequestPolicy    RequestSpecifierKind = "AddRequestPolicy"
	SpecifierEditRequestPolicy   RequestSpecifierKind = "EditRequestPolicy"
	SpecifierRemoveRequestPolicy RequestSpecifierKind = "RemoveRequestPolicy"
	SpecifierAddNamedRule        RequestSpecifierKind = "AddNamedRule"
	SpecifierEditNamedRule       RequestSpecifierKind = "EditNamedRule"
	SpecifierRemoveNamedRule     RequestSpecifierKind = "RemoveNamedRule"
	SpecifierAddAsset            RequestSpecifierKind = "AddAsset"
	SpecifierEditAsset           RequestSpecifierKind = "EditAsset"
	SpecifierRemoveAsset         RequestSpecifierKind = "RemoveAsset"
	SpecifierChangeExternalCanister  RequestSpecifierKind = "ChangeExternalCanister"
	SpecifierCreateExternalCanister  RequestSpecifierKind = "CreateExternalCanister"
	SpecifierConfigureExternalCanister RequestSpecifierKind = "ConfigureExternalCanister"
	SpecifierCallExternalCanister RequestSpecifierKind = "CallExternalCanister"
	SpecifierSystemUpgrade        RequestSpecifierKind = "SystemUpgrade"
	SpecifierManageSystemInfo     RequestSpecifierKind = "ManageSystemInfo"
)

// ResourceIDsKind tags whether a RequestSpecifier's resource scoping is a
// wildcard or an explicit id list (spec.md §4.4 "exact-id specifiers ...
// beat wildcard (Any)").
type ResourceIDsKind string

const (
	ResourceIDsAny ResourceIDsKind = "Any"
	ResourceIDsIds ResourceIDsKind = "Ids"
)

// ResourceIDs is either Any (wildcard) or an explicit id list.
type ResourceIDs struct {
	Kind ResourceIDsKind
	Ids  []ids.ID
}

func AnyResourceIDs() ResourceIDs          { return ResourceIDs{Kind: ResourceIDsAny} }
func SpecificResourceIDs(ids ...ids.ID) ResourceIDs { return ResourceIDs{Kind: ResourceIDsIds, Ids: ids} }

// RequestSpecifier selects which requests a policy or permission applies
// to: an operation kind plus (for operations scoped to an entity) a
// resource-id filter.
type RequestSpecifier struct {
	Kind      RequestSpecifierKind
	Resources ResourceIDs
}

// IsWildcard reports whether this specifier matches any resource id for
// its kind.
func (s RequestSpecifier) IsWildcard() bool {
	return s.Resources.Kind == ResourceIDsAny
}

// Matches reports whether this specifier applies to an operation of kind
// with the given resource id (ids.Nil for operations with no single
// resource, e.g. AddAccount).
func (s RequestSpecifier) Matches(kind RequestSpecifierKind, resource ids.ID) bool {
	if s.Kind != kind {
		return false
	}
	if s.Resources.Kind == ResourceIDsAny {
		return true
	}
	for _, id := range s.Resources.Ids {
		if id == resource {
			return true
		}
	}
	return false
}

// RequestPolicy binds a RuleTree to a RequestSpecifier (spec.md §3/§4.4).
type RequestPolicy struct {
	ID        ids.ID
	Specifier RequestSpecifier
	Rule      RuleTree
}

// validateAllowListedScope enforces spec.md §4.4's rule-validation
// invariant: "AllowListed and AllowListedByMetadata are only permitted
// under Transfer specifiers (transitively through NamedRule)". resolve is
// used to follow NamedRule references; a reference it reports as unknown
// (false) is skipped here and left to the policy package's existence check.
func (p RequestPolicy) validateAllowListedScope(resolve func(ids.ID) (RuleTree, bool)) error {
	if p.Specifier.Kind == SpecifierTransfer {
		return nil
	}
	var offending bool
	visited := make(map[ids.ID]bool)
	var check func(RuleTree)
	check = func(tree RuleTree) {
		_ = tree.walk(func(node RuleTree) error {
			switch node.Kind {
			case RuleAllowListed, RuleAllowListedByMetadata:
				offending = true
			case RuleNamedRule:
				if !visited[node.NamedRuleID] {
					visited[node.NamedRuleID] = true
					if inner, ok := resolve(node.NamedRuleID); ok {
						check(inner)
					}
				}
			}
			return nil
		})
	}
	check(p.Rule)
	if offending {
		return apierr.New(apierr.Validation, "AllowListed/AllowListedByMetadata rules are only valid under Transfer policies")
	}
	return nil
}

// Validate enforces RequestPolicy invariants that don't require a
// repository lookup (depth, Quorum ranges). Reference existence and cycle
// detection are performed by the policy package, which has visibility into
// every NamedRule and RequestPolicy being saved together.
func (p RequestPolicy) Validate(resolveNamedRule func(ids.ID) (RuleTree, bool)) error {
	if err := p.Rule.validateShape(); err != nil {
		return err
	}
	return p.validateAllowListedScope(resolveNamedRule)
}
