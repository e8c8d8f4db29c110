package model

import (
	"orbit-station/internal/apierr"
	"orbit-station/internal/ids"
)

// UserStatus is the lifecycle status of a User (spec.md §3).
type UserStatus string

const (
	UserActive   UserStatus = "Active"
	UserInactive UserStatus = "Inactive"
)

// Well-known group ids (spec.md §3: "Two well-known groups exist with fixed
// ids: Admin and Operator").
var (
	AdminGroupID    = ids.MustParse("00000000-0000-4000-8000-000000000001")
	OperatorGroupID = ids.MustParse("00000000-0000-4000-8000-000000000002")
)

// UserGroup is a named, globally unique collection users can belong to.
type UserGroup struct {
	ID   ids.ID
	Name string
}

// Validate enforces the UserGroup invariants from spec.md §3.
func (g UserGroup) Validate() error {
	return validateLen("user group name", g.Name, UserNameMin, UserNameMax)
}

// User is a station principal holder (spec.md §3).
type User struct {
	ID         ids.ID
	Identities []ids.Principal
	Groups     ids.Set
	Status     UserStatus
	Name       string // optional; empty means unset
}

// Validate enforces the User invariants from spec.md §3. Uniqueness checks
// (identities globally unique, name unique if present) are enforced by the
// repository's unique indices, not here — Validate only checks
// self-contained, index-independent invariants.
func (u User) Validate() error {
	if len(u.Identities) < UserIdentitiesMin || len(u.Identities) > UserIdentitiesMax {
		return apierr.Newf(apierr.Validation, "user identities must be %d..%d, got %d", UserIdentitiesMin, UserIdentitiesMax, len(u.Identities))
	}
	seen := make(map[ids.Principal]struct{}, len(u.Identities))
	for _, p := range u.Identities {
		if p == "" || p.IsAnonymous() {
			return apierr.New(apierr.Validation, "user identity must not be empty or anonymous")
		}
		if _, dup := seen[p]; dup {
			return apierr.New(apierr.Validation, "user identities must not repeat within a single user")
		}
		seen[p] = struct{}{}
	}
	if u.Name != "" {
		if err := validateLen("user name", u.Name, UserNameMin, UserNameMax); err != nil {
			return err
		}
	}
	switch u.Status {
	case UserActive, UserInactive:
	default:
		return apierr.Newf(apierr.Validation, "unknown user status %q", u.Status)
	}
	return nil
}

// IsAdmin reports whether the user belongs to the well-known Admin group.
func (u User) IsAdmin() bool {
	return u.Groups.Contains(AdminGroupID)
}

// UserListItem is the trimmed projection returned by list endpoints (see
// SPEC_FULL.md §2, supplementing spec.md with the original source's
// summary/full record split).
type UserListItem struct {
	ID     ids.ID
	Name   string
	Status UserStatus
	Groups ids.Set
}

func (u User) ToListItem() UserListItem {
	return UserListItem{ID: u.ID, Name: u.Name, Status: u.Status, Groups: u.Groups}
}
