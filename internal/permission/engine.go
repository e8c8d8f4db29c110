// Package permission implements the C3 permission engine from spec.md
// §4.3: resolving (caller, resource, action) to allow/deny, and the
// supplemented capabilities/me queries described in SPEC_FULL.md §2.
package permission

import (
	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/repository"
)

// Engine resolves permission checks against the Users and Permissions
// repositories. It holds no state of its own; every call re-derives its
// answer from the repositories, matching the teacher's access_control.go
// pattern of a thin stateless checker layered over a cached store.
type Engine struct {
	users       *repository.Users
	permissions *repository.Permissions
}

func New(users *repository.Users, permissions *repository.Permissions) *Engine {
	return &Engine{users: users, permissions: permissions}
}

// resolve looks up the Permission governing (resource, action) at the given
// ResourceID, trying the exact resource tag and falling back to a
// Restricted/empty default if no record exists (spec.md §4.3 step 1).
func (e *Engine) resolve(resource string, action string, resourceID model.ResourceID) model.Allow {
	key := model.ResourceAction{Resource: resource, Action: action, ResourceID: resourceID}
	if p, ok := e.permissions.Get(key); ok {
		return p.Allow
	}
	return model.Allow{Scope: model.ScopeRestricted}
}

// Check implements spec.md §4.3's seven-step resolution for a specific
// resource id: try Id(x) first, then fall back to Any (step 7), applying
// the Public/Authenticated/Restricted scope rules (steps 2-6) to whichever
// record is found.
func (e *Engine) Check(caller ids.Principal, resource string, action string, resourceID *ids.ID) (bool, error) {
	allow := e.allowForResourceID(resource, action, resourceID)
	return e.checkAllow(caller, allow)
}

// CheckWildcard implements the same resolution for resource-level actions
// that never carry a specific id, e.g. Request(List) or System(Upgrade):
// only the Any record applies.
func (e *Engine) CheckWildcard(caller ids.Principal, resource string, action string) (bool, error) {
	allow := e.resolve(resource, action, model.AnyResource())
	return e.checkAllow(caller, allow)
}

func (e *Engine) allowForResourceID(resource, action string, resourceID *ids.ID) model.Allow {
	if resourceID != nil {
		key := model.ResourceAction{Resource: resource, Action: action, ResourceID: model.SpecificResource(*resourceID)}
		if p, ok := e.permissions.Get(key); ok {
			return p.Allow
		}
	}
	return e.resolve(resource, action, model.AnyResource())
}

// checkAllow applies spec.md §4.3 steps 2-6 to an already-resolved Allow.
func (e *Engine) checkAllow(caller ids.Principal, allow model.Allow) (bool, error) {
	if allow.Scope == model.ScopePublic {
		return true, nil
	}

	user, ok := e.users.GetByIdentity(caller)
	if !ok {
		// Public was already handled above; Authenticated/Restricted both
		// deny an unresolved caller (spec.md §4.3 step 3).
		return false, nil
	}

	if allow.Scope == model.ScopeAuthenticated {
		return user.Status == model.UserActive, nil
	}

	// Restricted: explicit user or group membership, regardless of status —
	// spec.md §4.3 doesn't gate the allow-list on Active status, only the
	// Authenticated scope does.
	if allow.Users.Contains(user.ID) {
		return true, nil
	}
	for g := range user.Groups {
		if allow.UserGroups.Contains(g) {
			return true, nil
		}
	}
	return false, nil
}

// Require is Check plus turning a deny into an *apierr.Error, the form
// most callers (engine/executor) actually want at a call site.
func (e *Engine) Require(caller ids.Principal, resource string, action string, resourceID *ids.ID) error {
	allowed, err := e.Check(caller, resource, action, resourceID)
	if err != nil {
		return err
	}
	if !allowed {
		return apierr.New(apierr.Forbidden, "caller is not authorized for this action")
	}
	return nil
}

// RequireWildcard is Require for resource-level actions with no specific id.
func (e *Engine) RequireWildcard(caller ids.Principal, resource string, action string) error {
	allowed, err := e.CheckWildcard(caller, resource, action)
	if err != nil {
		return err
	}
	if !allowed {
		return apierr.New(apierr.Forbidden, "caller is not authorized for this action")
	}
	return nil
}

// Capabilities is the supplemented `capabilities` query (SPEC_FULL.md §2):
// the effective set of (resource, action) pairs the caller is granted,
// evaluated across every stored Permission record. Intended for UI
// affordance decisions, not as an authorization boundary in its own right
// — every mutating call still re-checks Require/RequireWildcard itself.
type Capability struct {
	Resource   string
	Action     string
	ResourceID model.ResourceID
}

func (e *Engine) Capabilities(caller ids.Principal) []Capability {
	out := make([]Capability, 0)
	for _, p := range e.permissions.List() {
		allowed, err := e.checkAllow(caller, p.Allow)
		if err != nil || !allowed {
			continue
		}
		out = append(out, Capability{Resource: p.Resource.Resource, Action: p.Resource.Action, ResourceID: p.Resource.ResourceID})
	}
	return out
}

// Me resolves the caller's own User record, backing the `me` query
// (spec.md §6). The bool is false when no User has the caller's identity.
func (e *Engine) Me(caller ids.Principal) (model.User, bool) {
	return e.users.GetByIdentity(caller)
}
