package permission

import (
	"testing"

	"github.com/sirupsen/logrus"

	"orbit-station/internal/ids"
	"orbit-station/internal/model"
	"orbit-station/internal/repository"
)

func newTestEngine(t *testing.T) (*Engine, *repository.Users, *repository.Permissions) {
	t.Helper()
	dir := t.TempDir()
	log := logrus.NewEntry(logrus.New())
	users, err := repository.OpenUsers(dir, log)
	if err != nil {
		t.Fatalf("open users: %v", err)
	}
	permissions, err := repository.OpenPermissions(dir, log)
	if err != nil {
		t.Fatalf("open permissions: %v", err)
	}
	return New(users, permissions), users, permissions
}

func TestCheckPublicAllowsUnresolvedCaller(t *testing.T) {
	e, _, perms := newTestEngine(t)
	resource := model.ResourceAction{Resource: "Account", Action: "List", ResourceID: model.AnyResource()}
	if err := perms.Insert(model.Permission{Resource: resource, Allow: model.Allow{Scope: model.ScopePublic}}); err != nil {
		t.Fatalf("insert permission: %v", err)
	}
	allowed, err := e.CheckWildcard("anyone", "Account", "List")
	if err != nil || !allowed {
		t.Fatalf("expected public permission to allow, got %v %v", allowed, err)
	}
}

func TestCheckRestrictedDefaultDeniesUnknownResource(t *testing.T) {
	e, _, _ := newTestEngine(t)
	allowed, err := e.CheckWildcard("anyone", "Account", "List")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("expected default-restricted deny for unconfigured resource")
	}
}

func TestCheckAuthenticatedRequiresActiveUser(t *testing.T) {
	e, users, perms := newTestEngine(t)
	resource := model.ResourceAction{Resource: "Request", Action: "List", ResourceID: model.AnyResource()}
	if err := perms.Insert(model.Permission{Resource: resource, Allow: model.Allow{Scope: model.ScopeAuthenticated}}); err != nil {
		t.Fatalf("insert permission: %v", err)
	}

	active := model.User{ID: ids.New(), Identities: []ids.Principal{"active-caller"}, Status: model.UserActive}
	if err := users.Insert(active); err != nil {
		t.Fatalf("insert active user: %v", err)
	}
	inactive := model.User{ID: ids.New(), Identities: []ids.Principal{"inactive-caller"}, Status: model.UserInactive}
	if err := users.Insert(inactive); err != nil {
		t.Fatalf("insert inactive user: %v", err)
	}

	if allowed, err := e.CheckWildcard("active-caller", "Request", "List"); err != nil || !allowed {
		t.Fatalf("expected active user to be allowed, got %v %v", allowed, err)
	}
	if allowed, err := e.CheckWildcard("inactive-caller", "Request", "List"); err != nil || allowed {
		t.Fatalf("expected inactive user to be denied, got %v %v", allowed, err)
	}
	if allowed, err := e.CheckWildcard("stranger", "Request", "List"); err != nil || allowed {
		t.Fatalf("expected unresolved caller to be denied, got %v %v", allowed, err)
	}
}

func TestCheckRestrictedExactIdThenAnyFallback(t *testing.T) {
	e, users, perms := newTestEngine(t)

	accountID := ids.New()
	allowedUser := model.User{ID: ids.New(), Identities: []ids.Principal{"allowed-user"}, Status: model.UserActive}
	otherUser := model.User{ID: ids.New(), Identities: []ids.Principal{"other-user"}, Status: model.UserActive}
	if err := users.Insert(allowedUser); err != nil {
		t.Fatalf("insert allowed user: %v", err)
	}
	if err := users.Insert(otherUser); err != nil {
		t.Fatalf("insert other user: %v", err)
	}

	exactResource := model.ResourceAction{Resource: "Account", Action: "Read", ResourceID: model.SpecificResource(accountID)}
	if err := perms.Insert(model.Permission{
		Resource: exactResource,
		Allow:    model.Allow{Scope: model.ScopeRestricted, Users: ids.NewSet(allowedUser.ID)},
	}); err != nil {
		t.Fatalf("insert exact permission: %v", err)
	}

	if allowed, err := e.Check("allowed-user", "Account", "Read", &accountID); err != nil || !allowed {
		t.Fatalf("expected exact-id allow-listed user to be allowed, got %v %v", allowed, err)
	}
	if allowed, err := e.Check("other-user", "Account", "Read", &accountID); err != nil || allowed {
		t.Fatalf("expected other user to be denied by exact-id permission, got %v %v", allowed, err)
	}

	// A different account id with no exact-id record falls back to Any,
	// which has never been configured, so it stays default-Restricted/deny.
	otherAccountID := ids.New()
	if allowed, err := e.Check("allowed-user", "Account", "Read", &otherAccountID); err != nil || allowed {
		t.Fatalf("expected fallback to Any (unconfigured) to deny, got %v %v", allowed, err)
	}

	// Now grant Any to other-user via group membership and confirm the
	// fallback applies to the unmatched account id.
	groupID := ids.New()
	anyResource := model.ResourceAction{Resource: "Account", Action: "Read", ResourceID: model.AnyResource()}
	if err := perms.Insert(model.Permission{
		Resource: anyResource,
		Allow:    model.Allow{Scope: model.ScopeRestricted, UserGroups: ids.NewSet(groupID)},
	}); err != nil {
		t.Fatalf("insert any permission: %v", err)
	}
	otherUser.Groups = ids.NewSet(groupID)
	if err := users.Insert(otherUser); err != nil {
		t.Fatalf("update other user groups: %v", err)
	}
	if allowed, err := e.Check("other-user", "Account", "Read", &otherAccountID); err != nil || !allowed {
		t.Fatalf("expected group-granted Any fallback to allow, got %v %v", allowed, err)
	}
}

func TestCapabilities(t *testing.T) {
	e, users, perms := newTestEngine(t)
	u := model.User{ID: ids.New(), Identities: []ids.Principal{"caller"}, Status: model.UserActive}
	if err := users.Insert(u); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if err := perms.Insert(model.Permission{
		Resource: model.ResourceAction{Resource: "User", Action: "List", ResourceID: model.AnyResource()},
		Allow:    model.Allow{Scope: model.ScopeAuthenticated},
	}); err != nil {
		t.Fatalf("insert permission: %v", err)
	}
	if err := perms.Insert(model.Permission{
		Resource: model.ResourceAction{Resource: "System", Action: "Upgrade", ResourceID: model.AnyResource()},
		Allow:    model.Allow{Scope: model.ScopeRestricted},
	}); err != nil {
		t.Fatalf("insert permission: %v", err)
	}
	caps := e.Capabilities("caller")
	if len(caps) != 1 || caps[0].Resource != "User" || caps[0].Action != "List" {
		t.Fatalf("expected exactly one capability (User:List), got %+v", caps)
	}
}
