package model

import "orbit-station/internal/ids"

// PermissionScope is the access tier a Permission grants (spec.md §4.3).
type PermissionScope string

const (
	ScopePublic        PermissionScope = "Public"
	ScopeAuthenticated PermissionScope = "Authenticated"
	ScopeRestricted    PermissionScope = "Restricted"
)

// ResourceAction tags the resource/action pair a Permission governs
// (spec.md §4.3: "Account(Read(ResourceId)), Request(List), ...").
type ResourceAction struct {
	// Resource is the coarse resource family, e.g. "Account", "Request",
	// "User", "ExternalCanister", "System".
	Resource string
	// Action is the operation on that resource, e.g. "Read", "Update",
	// "Create", "List", "Approve", "Cancel", "Upgrade".
	Action string
	// ResourceID scopes the action to a specific entity when the action
	// targets one (ignored for resource-level actions like Request(List)).
	ResourceID ResourceID
}

// Key returns the full resource-tag key used to index Permission records,
// e.g. "Account:Read:Any" or "Account:Read:id:<uuid>" — spec.md §4.3: a
// resource is the tagged variant "Account(Read(ResourceId))" where
// ResourceId is itself Any or Id(uuid), so Any and a specific id are
// distinct, independently stored Permission records. Step 1's "look up the
// exact resource" means this full key; step 7's "tries Id(x) ... then Any"
// fallback is the permission engine trying two Keys in turn (see
// internal/permission).
func (r ResourceAction) Key() string {
	if r.ResourceID.Any {
		return r.Resource + ":" + r.Action + ":Any"
	}
	return r.Resource + ":" + r.Action + ":id:" + r.ResourceID.ID.String()
}

// WithResourceID returns a copy of r scoped to a different ResourceID,
// convenient for trying the Id(x)-then-Any fallback without reconstructing
// every field.
func (r ResourceAction) WithResourceID(id ResourceID) ResourceAction {
	r.ResourceID = id
	return r
}

// Allow describes who is granted access at a given scope (spec.md §4.3).
type Allow struct {
	Scope      PermissionScope
	Users      ids.Set
	UserGroups ids.Set
}

// Permission is keyed by ResourceAction (spec.md §3/§4.3).
type Permission struct {
	Resource ResourceAction
	Allow    Allow
}
